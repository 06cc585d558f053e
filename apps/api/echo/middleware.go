package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/studentpakistan/backend/core/user"
)

// schoolAdminMiddleware lets through the users administering a school with any of `roles`.
// The stored user is checked: the roles of a token issued before the school registration are outdated.
func schoolAdminMiddleware(users *user.Service, roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			usr, err := getContextUser(ctx, users)
			if err != nil {
				return errors.Wrap(err, "getting context user")
			}
			if !usr.IsAdmin() || !hasAnyRole(usr, roles) {
				return errHttpForbidden
			}
			if usr.SchoolID == nil {
				return errNoSchool
			}
			return next(ctx)
		}
	}
}

func hasAnyRole(usr user.User, roles []string) bool {
	if len(roles) == 0 {
		return true
	}
	for _, role := range roles {
		if usr.HasRole(role) {
			return true
		}
	}
	return false
}
