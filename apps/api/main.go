package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"

	"github.com/studentpakistan/backend/apps/api/echo"
	"github.com/studentpakistan/backend/core"
	"github.com/studentpakistan/backend/core/reference"
	"github.com/studentpakistan/backend/core/school"
	"github.com/studentpakistan/backend/core/student"
	"github.com/studentpakistan/backend/core/user"
	"github.com/studentpakistan/backend/services/cache"
	"github.com/studentpakistan/backend/services/email"
	"github.com/studentpakistan/backend/services/filestore"
	"github.com/studentpakistan/backend/services/logger"
	"github.com/studentpakistan/backend/storage/database"
	"github.com/studentpakistan/backend/storage/database/inmem"
	"github.com/studentpakistan/backend/storage/database/sqlx"
)

const (
	engineMemory    = "memory"
	shutdownTimeout = 10 * time.Second
)

type repositories struct {
	users    user.Repository
	schools  school.Repository
	students student.Repository
	close    func() error
}

func main() {
	conf := core.Conf
	logger := logsvc.NewLogger(conf)
	defer logger.Sync()

	if err := run(conf, logger); err != nil {
		logger.Fatal("api stopped", err)
	}
}

func run(conf *core.Config, logger *logsvc.Logger) error {
	logger.Info(fmt.Sprintf("Application initializing : %s", conf))
	defer logger.Info("Application stopped")

	// =========================================================================
	// Set up Dependencies

	repos, err := setUpRepositories(conf)
	if err != nil {
		return errors.Wrap(err, "setting up database")
	}
	defer func() {
		if err := repos.close(); err != nil {
			logger.Error("closing database", err)
		}
	}()

	var mailSvc core.EmailService
	if conf.SendgridApiKey == "" {
		mailSvc = emailsvc.NewConsoleService(logger)
	} else {
		mailSvc = emailsvc.NewSendgridService(logger)
	}

	files, err := filestore.NewDiskStore(conf.Upload.Dir, conf.Upload.BaseURL)
	if err != nil {
		return errors.Wrap(err, "setting up file store")
	}

	usrSvc := user.NewService(repos.users, mailSvc)
	schSvc := school.NewService(repos.schools, usrSvc, files, mailSvc, logger)
	if conf.Redis.URL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		rdb, err := cache.Open(ctx, conf.Redis.URL, conf.Redis.SearchTTL)
		cancel()
		if err != nil {
			return errors.Wrap(err, "connecting to redis")
		}
		defer func() { _ = rdb.Close() }()
		schSvc.UseCache(rdb)
	}
	stdSvc := student.NewService(repos.students, usrSvc, schSvc, files)

	// =========================================================================
	// Start API Service

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	server := echoapi.NewServer(
		&echoapi.Options{
			Address:        conf.Server.Address,
			DisableReqLogs: conf.Server.DisableReqLogs,
			UploadDir:      files.Dir(),
			Shutdown:       shutdown,
		},
		&echoapi.Deps{
			Logger:     logger,
			UserSvc:    usrSvc,
			SchoolSvc:  schSvc,
			StudentSvc: stdSvc,
			Catalog:    reference.Default(),
		},
	)

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("API listening on " + conf.Server.Address)
		serverErrors <- server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			return errors.Wrap(err, "server error")
		}
		return nil

	case sig := <-shutdown:
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := server.Stop(ctx); err != nil {
			return errors.Wrap(err, "could not stop server gracefully")
		}
	}
	return nil
}

// setUpRepositories keeps the data in memory when the database engine is "memory".
func setUpRepositories(conf *core.Config) (repositories, error) {
	if conf.Database.Engine == engineMemory {
		db := inmemdb.Open()
		return repositories{
			users:    inmemdb.NewUserRepository(db),
			schools:  inmemdb.NewSchoolRepository(db),
			students: inmemdb.NewStudentRepository(db),
			close:    func() error { return nil },
		}, nil
	}

	if err := database.CreateIfNotExist(conf); err != nil {
		return repositories{}, err
	}
	db, err := database.Open(conf)
	if err != nil {
		return repositories{}, err
	}
	if err = database.Migrate(db.DB); err != nil {
		_ = db.Close()
		return repositories{}, err
	}
	return repositories{
		users:    sqlxrepos.NewUserRepository(db),
		schools:  sqlxrepos.NewSchoolRepository(db),
		students: sqlxrepos.NewStudentRepository(db),
		close:    db.Close,
	}, nil
}
