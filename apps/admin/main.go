package main

import (
	"os"

	"github.com/studentpakistan/backend/core"
	"github.com/studentpakistan/backend/core/user"
	"github.com/studentpakistan/backend/services/logger"
	"github.com/studentpakistan/backend/storage/database"
	"github.com/studentpakistan/backend/storage/database/sqlx"
)

func main() {
	logger := logsvc.NewLogger(core.Conf)
	defer logger.Sync()

	// set up DB
	if err := database.CreateIfNotExist(core.Conf); err != nil {
		logger.Fatal("creating database", err)
	}
	db, err := database.Open(core.Conf)
	if err != nil {
		logger.Fatal("opening database", err)
	}
	defer func() { _ = db.Close() }()

	// start CLI
	cli := commandLine{
		db:     db.DB,
		usrSvc: user.NewService(sqlxrepos.NewUserRepository(db), nil /* no emails */),
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Error("admin command failed", err)
		}
		logger.Sync()
		os.Exit(1)
	}
}
