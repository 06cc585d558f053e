package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/studentpakistan/backend/core/school"
	"github.com/studentpakistan/backend/core/user"
)

type schoolApi struct {
	users   *user.Service
	schools *school.Service
}

func registerSchoolAPI(g *echo.Group, jwt echo.MiddlewareFunc, users *user.Service, schools *school.Service) {
	api := schoolApi{users: users, schools: schools}

	sg := g.Group("/schools", jwt)
	sg.GET("/code/:code", api.byCode)
	sg.GET("/mine", api.mine, schoolAdminMiddleware(users, user.RoleAdmin))
}

// byCode finds the school a student joins with its code.
func (api *schoolApi) byCode(ctx echo.Context) error {
	sch, err := api.schools.GetByCode(ctx.Request().Context(), ctx.Param("code"))
	if err != nil {
		return errors.Wrap(err, "getting school by code")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"school": sch})
}

// mine returns the school administered by the authenticated user.
func (api *schoolApi) mine(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	sch, err := api.schools.GetByID(ctx.Request().Context(), *usr.SchoolID)
	if err != nil {
		return errors.Wrap(err, "getting school")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"school": sch})
}
