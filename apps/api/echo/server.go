package echoapi

import (
	"context"
	"net/http"
	"os"
	"strconv"
	"syscall"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/studentpakistan/backend/core"
	"github.com/studentpakistan/backend/core/reference"
	"github.com/studentpakistan/backend/core/school"
	"github.com/studentpakistan/backend/core/student"
	"github.com/studentpakistan/backend/core/user"
)

type (
	Options struct {
		Address        string
		DisableReqLogs bool
		UploadDir      string // served at /uploads when set
		Shutdown       chan os.Signal
	}

	Deps struct {
		Logger     core.Logger
		UserSvc    *user.Service
		SchoolSvc  *school.Service
		StudentSvc *student.Service
		Catalog    *reference.Catalog
	}

	Server interface {
		http.Handler
		Start() error
		Stop(context.Context) error
	}

	server struct {
		opts    *Options
		deps    *Deps
		app     *echo.Echo
		metrics *metrics
	}
)

var _ Server = (*server)(nil)

func NewServer(opts *Options, deps *Deps) Server {
	if deps.Catalog == nil {
		deps.Catalog = reference.Default()
	}
	s := &server{
		opts:    opts,
		deps:    deps,
		app:     echo.New(),
		metrics: newMetrics(),
	}
	s.setup()
	return s
}

func (s *server) setup() {
	debug := core.Conf.Debug

	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.opts.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(debug || core.Conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{core.Conf.FrontendBaseURL},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))
	s.app.Use(s.metrics.middleware())
	s.app.Use(middleware.BodyLimit(bodyLimit(core.Conf.Upload.MaxSize)))

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.signalShutdown)
	s.app.Debug = debug

	s.app.GET("/", home)
	s.app.GET("/metrics", s.metrics.handler())
	if s.opts.UploadDir != "" {
		s.app.Static("/uploads", s.opts.UploadDir)
	}

	api := s.app.Group("/api")
	jwt := middleware.JWTWithConfig(appJWTConfig)

	registerAuthAPI(api, jwt, s.deps.UserSvc)
	registerOnboardingAPI(api, jwt, s.deps, s.metrics)
	registerBoardsAPI(api, s.deps.Catalog)
	registerSchoolAPI(api, jwt, s.deps.UserSvc, s.deps.SchoolSvc)
}

// bodyLimit leaves room for the two files and the fields of a school registration.
func bodyLimit(maxUpload int64) string {
	if maxUpload <= 0 {
		maxUpload = 5 << 20
	}
	return formatMB(2*maxUpload + 1<<20)
}

func formatMB(n int64) string {
	return strconv.FormatInt((n+1<<20-1)>>20, 10) + "M"
}

func (s *server) Start() error {
	return s.app.Start(s.opts.Address)
}

func (s *server) Stop(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *server) signalShutdown() {
	if s.opts.Shutdown != nil {
		s.opts.Shutdown <- syscall.SIGTERM
	}
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to "+core.Conf.AppName+" API!")
}
