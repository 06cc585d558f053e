package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/studentpakistan/backend/core"
	"github.com/studentpakistan/backend/core/reference"
)

type boardsApi struct {
	catalog *reference.Catalog
}

// registerBoardsAPI serves the reference catalog, which needs no authentication.
func registerBoardsAPI(g *echo.Group, catalog *reference.Catalog) {
	api := boardsApi{catalog: catalog}

	bg := g.Group("/boards")
	bg.GET("/all", api.all)
	bg.GET("/type/:type", api.byType)
	bg.GET("/province/:province", api.byProvince)
	bg.GET("/board/:id", api.board)
	bg.GET("/subject-groups/:type", api.subjectGroups)
	bg.GET("/grade-levels/:type", api.gradeLevels)
	bg.GET("/subjects/:type", api.subjects)
}

func (api *boardsApi) all(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, echo.Map{"boards": api.catalog.Boards("")})
}

func (api *boardsApi) byType(ctx echo.Context) error {
	typ, err := educationTypeParam(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, echo.Map{"boards": api.catalog.Boards(typ)})
}

func (api *boardsApi) byProvince(ctx echo.Context) error {
	province := core.CleanString(ctx.Param("province"))
	return ctx.JSON(http.StatusOK, echo.Map{"boards": api.catalog.BoardsByProvince(province)})
}

func (api *boardsApi) board(ctx echo.Context) error {
	b, err := api.catalog.Board(core.CleanString(ctx.Param("id"), true /* lower */))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, echo.Map{"board": b})
}

func (api *boardsApi) subjectGroups(ctx echo.Context) error {
	typ, err := educationTypeParam(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, echo.Map{"subjectGroups": api.catalog.SubjectGroups(typ)})
}

func (api *boardsApi) gradeLevels(ctx echo.Context) error {
	typ, err := educationTypeParam(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, echo.Map{"gradeLevels": api.catalog.GradeLevels(typ)})
}

func (api *boardsApi) subjects(ctx echo.Context) error {
	typ, err := educationTypeParam(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, echo.Map{"subjects": api.catalog.SubjectsByType(typ)})
}

func educationTypeParam(ctx echo.Context) (string, error) {
	typ := core.CleanString(ctx.Param("type"), true /* lower */)
	if !reference.IsEducationType(typ) {
		return "", errInvalidEducationType
	}
	return typ, nil
}
