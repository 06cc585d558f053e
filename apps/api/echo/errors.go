package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/studentpakistan/backend/core"
	"github.com/studentpakistan/backend/core/reference"
	"github.com/studentpakistan/backend/core/school"
	"github.com/studentpakistan/backend/core/student"
	"github.com/studentpakistan/backend/core/user"
)

var (
	errUnauthorized         = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errAuthenticationFailed = echo.NewHTTPError(http.StatusBadRequest, "invalid credentials")
	errAccountDeactivated   = echo.NewHTTPError(http.StatusForbidden, "account deactivated")
	errRefreshExpired       = echo.NewHTTPError(http.StatusForbidden, "refresh has expired")
	errHttpForbidden        = echo.NewHTTPError(http.StatusForbidden, "permission denied")
	errNoSchool             = echo.NewHTTPError(http.StatusNotFound, "no school administered")
	errBoardIDRequired      = echo.NewHTTPError(http.StatusBadRequest, "Board ID is required")
	errInvalidEducationType = echo.NewHTTPError(http.StatusBadRequest, "Invalid education type")
	errUsernameRequired     = echo.NewHTTPError(http.StatusBadRequest, "Username is required")
	errNoSecurityQuestion   = echo.NewHTTPError(http.StatusNotFound, "No security question set for this account")

	// domain errors answered with their own message
	domainErrCodes = map[error]int{
		user.ErrNotFound:                  http.StatusNotFound,
		school.ErrNotFound:                http.StatusNotFound,
		school.ErrQueryRequired:           http.StatusBadRequest,
		school.ErrAdminHasSchool:          http.StatusConflict,
		student.ErrNotFound:               http.StatusNotFound,
		student.ErrProfileExists:          http.StatusConflict,
		reference.ErrBoardNotFound:        http.StatusNotFound,
		reference.ErrInvalidEducationType: http.StatusBadRequest,
	}
)

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var (
			code    int
			message interface{}
		)

		cause := errors.Cause(err)
		switch origErr := cause.(type) {
		case *echo.HTTPError:
			if origErr == middleware.ErrJWTMissing {
				code = http.StatusUnauthorized
				message = origErr.Message
				break
			}
			if origErr.Internal != nil {
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
			}
			code = origErr.Code
			message = origErr.Message
		case validator.ValidationErrors, *core.ValidationError:
			code = http.StatusBadRequest
			if fldErrs := core.FieldErrors(origErr); len(fldErrs) > 0 {
				message = fldErrs
			} else {
				message = origErr.Error()
			}
		default:
			if c := domainErrCode(cause); c != 0 {
				code = c
				message = cause.Error()
				break
			}

			// any other error is a server error
			code = http.StatusInternalServerError
			msg := http.StatusText(http.StatusInternalServerError)
			message = msg

			var usr user.User
			if claims, cErr := getContextClaims(ctx); cErr == nil {
				usr.ID = claims.Subject
				usr.Username = claims.Username
				usr.Email = claims.Email
			}
			logger.Error(msg, errors.Wrap(err, msg), usr, map[string]interface{}{
				"method": ctx.Request().Method,
				"path":   ctx.Path(),
			})

			// shutting down...
			if core.IsShutdown(err) && signalShutdown != nil {
				signalShutdown()
			}
		}

		if ctx.Echo().Debug && code == http.StatusInternalServerError {
			message = err.Error()
		}
		if m, ok := message.(string); ok {
			message = echo.Map{"error": m}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, message)
			}
			if err != nil {
				logger.Error("sending error response", err)
			}
		}
	}
}

// domainErrCode returns 0 when `err` is not a known domain error.
func domainErrCode(err error) int {
	for e, code := range domainErrCodes {
		if err == e {
			return code
		}
	}
	return 0
}
