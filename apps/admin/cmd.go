package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"strings"

	"github.com/trezcool/karo/core/fee"
	"github.com/trezcool/karo/core/reminder"
)

var errHelp = errors.New("help provided")

type commandLine struct {
	db          *sql.DB
	feeSvc      *fee.Service
	reminderSvc *reminder.Service
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate COMMAND [args] - run database migrations (up, down, status, ...)")
	fmt.Println("  generatefees -template TEMPLATE_ID [-students ID,ID,...] - materialize fees from a template")
	fmt.Println("  remind - sweep unsettled fees and send due/overdue reminders")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	generateCmd := flag.NewFlagSet("generatefees", flag.ExitOnError)
	generateTpl := generateCmd.String("template", "", "The fee template id to generate from.")
	generateStudents := generateCmd.String("students", "", "Optional comma-separated student ids; defaults to the template's class roster.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "generatefees":
		if err := generateCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *generateTpl == "" {
			generateCmd.Usage()
			return errHelp
		}
		return cli.generateFees(*generateTpl, splitIDs(*generateStudents))
	case "remind":
		return cli.remind()
	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) generateFees(templateID string, studentIDs []string) error {
	res, err := cli.feeSvc.GenerateFees(context.Background(), fee.GenerateFees{
		TemplateID: templateID,
		StudentIDs: studentIDs,
	})
	if err != nil {
		return err
	}
	fmt.Printf("generated %d fee(s), skipped %d existing\n", res.GeneratedCount, res.SkippedCount)
	return nil
}

func (cli *commandLine) remind() error {
	res, err := cli.reminderSvc.Sweep(context.Background())
	if err != nil {
		return err
	}
	fmt.Printf("scanned %d fee(s): sent %d, skipped %d, failed %d\n",
		res.Scanned, res.Sent, res.Skipped, len(res.Failures))
	for _, f := range res.Failures {
		fmt.Printf("  fee %s (student %s): %s\n", f.FeeID, f.StudentID, f.Reason)
	}
	return nil
}

func splitIDs(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	ids := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			ids = append(ids, p)
		}
	}
	return ids
}
