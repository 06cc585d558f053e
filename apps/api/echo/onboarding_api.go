package echoapi

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/studentpakistan/backend/core"
	"github.com/studentpakistan/backend/core/onboarding"
	"github.com/studentpakistan/backend/core/reference"
	"github.com/studentpakistan/backend/core/school"
	"github.com/studentpakistan/backend/core/student"
	"github.com/studentpakistan/backend/core/upload"
	"github.com/studentpakistan/backend/core/user"
)

type onboardingApi struct {
	users    *user.Service
	schools  *school.Service
	students *student.Service
	catalog  *reference.Catalog
	metrics  *metrics
}

func registerOnboardingAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps *Deps, m *metrics) {
	api := onboardingApi{
		users:    deps.UserSvc,
		schools:  deps.SchoolSvc,
		students: deps.StudentSvc,
		catalog:  deps.Catalog,
		metrics:  m,
	}

	og := g.Group("/onboarding")

	// reference data & lookups
	og.GET("/boards", api.boards)
	og.GET("/subjects", api.subjects)
	og.GET("/schools/search", api.searchSchools)
	og.GET("/check-username/:username", api.checkUsername)

	// authed endpoints
	og.POST("/student/profile", api.completeStudentProfile, jwt)
	og.GET("/student/profile", api.studentProfile, jwt)
	og.POST("/school/register", api.registerSchool, jwt)
}

// Handlers

func (api *onboardingApi) boards(ctx echo.Context) error {
	typ := ctx.QueryParam("type")
	if !reference.IsEducationType(typ) {
		typ = "" // unknown types list all the boards
	}
	return ctx.JSON(http.StatusOK, echo.Map{"boards": api.catalog.Boards(typ)})
}

func (api *onboardingApi) subjects(ctx echo.Context) error {
	boardID := core.CleanString(ctx.QueryParam("boardId"), true /* lower */)
	if boardID == "" {
		return errBoardIDRequired
	}
	typ := core.CleanString(ctx.QueryParam("educationType"), true /* lower */)
	if !reference.IsEducationType(typ) {
		return errInvalidEducationType
	}

	subjects, err := api.catalog.Subjects(boardID, typ)
	if err != nil {
		return errors.Wrap(err, "listing subjects")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"subjects": subjects})
}

func (api *onboardingApi) searchSchools(ctx echo.Context) error {
	schools, err := api.schools.Search(ctx.Request().Context(), ctx.QueryParam("query"), ctx.QueryParam("city"))
	if err != nil {
		return errors.Wrap(err, "searching schools")
	}
	if schools == nil {
		schools = []school.School{}
	}
	return ctx.JSON(http.StatusOK, echo.Map{"schools": schools})
}

func (api *onboardingApi) checkUsername(ctx echo.Context) error {
	uname, err := url.PathUnescape(ctx.Param("username"))
	if err != nil || core.CleanString(uname) == "" {
		return errUsernameRequired
	}
	available, err := api.users.IsUsernameAvailable(ctx.Request().Context(), uname)
	if err != nil {
		return errors.Wrap(err, "checking username")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"available": available})
}

// completeStudentProfile accepts JSON, or a multipart form when a profile picture is sent.
func (api *onboardingApi) completeStudentProfile(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data student.CompleteProfile
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to CompleteProfile")
	}
	picture, err := formFile(ctx, onboarding.ProfileImageField, upload.KindImage)
	if err != nil {
		return err
	}

	profile, err := api.students.Complete(ctx.Request().Context(), usr, data, picture)
	if err != nil {
		return errors.Wrap(err, "completing student profile")
	}
	api.metrics.onboardingCompleted(string(onboarding.Student))
	return ctx.JSON(http.StatusCreated, echo.Map{"profile": profile})
}

func (api *onboardingApi) studentProfile(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	profile, err := api.students.GetProfile(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrap(err, "getting student profile")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"profile": profile})
}

// registerSchool reads a multipart form: the school fields, the admin identity fields
// prefixed with school.AdminFieldPrefix, and the registrationProof and logo files.
func (api *onboardingApi) registerSchool(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.users)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var reg school.Registration
	if err = ctx.Bind(&reg.School); err != nil {
		return errors.Wrap(err, "binding to NewSchool")
	}
	if reg.Admin, err = bindAdminIdentity(ctx); err != nil {
		return err
	}
	proof, err := formFile(ctx, onboarding.RegistrationProofField, upload.KindDocument)
	if err != nil {
		return err
	}
	if proof != nil {
		reg.RegistrationProof = *proof
	}
	if reg.Logo, err = formFile(ctx, onboarding.LogoField, upload.KindImage); err != nil {
		return err
	}

	sch, err := api.schools.Register(ctx.Request().Context(), usr, reg)
	if err != nil {
		return errors.Wrap(err, "registering school")
	}
	api.metrics.onboardingCompleted(string(onboarding.School))
	return ctx.JSON(http.StatusCreated, echo.Map{"school": sch})
}

// formFile returns nil when the request holds no file `name`.
func formFile(ctx echo.Context, name string, kind upload.Kind) (*upload.File, error) {
	if !strings.HasPrefix(ctx.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		return nil, nil
	}
	fh, err := ctx.FormFile(name)
	if err != nil {
		if errors.Cause(err) == http.ErrMissingFile {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "reading %s", name)
	}
	f, err := upload.FromMultipart(kind, fh)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", name)
	}
	return &f, nil
}

// bindAdminIdentity returns nil when the form holds no admin field.
func bindAdminIdentity(ctx echo.Context) (*user.Identity, error) {
	params, err := ctx.FormParams()
	if err != nil {
		return nil, errors.Wrap(err, "parsing form")
	}
	fields := make(map[string][]string)
	for key, values := range params {
		if strings.HasPrefix(key, school.AdminFieldPrefix) {
			fields[strings.TrimPrefix(key, school.AdminFieldPrefix)] = values
		}
	}
	if len(fields) == 0 {
		return nil, nil
	}

	first := func(key string) string {
		if v := fields[key]; len(v) > 0 {
			return v[0]
		}
		return ""
	}
	return &user.Identity{
		Name:             first("fullName"),
		Username:         first("username"),
		Email:            first("email"),
		Password:         first("password"),
		DateOfBirth:      first("dateOfBirth"),
		Gender:           first("gender"),
		City:             first("city"),
		Phone:            first("phoneNumber"),
		SecurityQuestion: first("securityQuestion"),
		SecurityAnswer:   first("securityAnswer"),
		Bio:              first("bio"),
		Interests:        fields["interests"],
	}, nil
}
