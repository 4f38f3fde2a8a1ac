package main

import (
	"log"
	"os"

	"github.com/jmoiron/sqlx"

	"github.com/trezcool/karo/core"
	"github.com/trezcool/karo/core/fee"
	"github.com/trezcool/karo/core/reminder"
	emailsvc "github.com/trezcool/karo/services/email"
	"github.com/trezcool/karo/storage/database"
	sqlxrepos "github.com/trezcool/karo/storage/database/sqlx"
)

var logger *log.Logger

func main() {
	defer os.Exit(0)

	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	// set up DB
	sdb, err := database.Open(core.Conf)
	errAndDie(err)
	defer sdb.Close()
	errAndDie(sdb.Ping())
	db := sqlx.NewDb(sdb, core.Conf.Database.Engine)

	// set up services
	var mailSvc core.EmailService
	if core.Conf.Debug {
		mailSvc = emailsvc.NewConsoleService()
	} else {
		mailSvc = emailsvc.NewSendgridService(core.NewStdLogger(logger))
	}

	feeRepo := sqlxrepos.NewFeeRepository(db)
	directory := sqlxrepos.NewStudentDirectory(db)

	// start CLI
	cli := commandLine{
		db:          sdb,
		feeSvc:      fee.NewService(feeRepo, directory),
		reminderSvc: reminder.NewService(feeRepo, directory, mailSvc, core.NewStdLogger(logger)),
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
