package cmd

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"cleantg/internal/domain"
	"cleantg/internal/report"
	"cleantg/internal/telegram"
)

// ReportCommand returns the report command.
func ReportCommand() *cli.Command {
	return &cli.Command{
		Name:  "report",
		Usage: "Write a listing of the account's dialogs, groups or contacts to a file",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "type",
				Aliases: []string{"t"},
				Usage:   "Report to produce: dialogs, groups, contacts or all",
				Value:   "dialogs",
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Output format: csv, json or txt",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Output file path (single reports only; default: a timestamped file in the reports directory)",
			},
		},
		Action: runReport,
	}
}

func runReport(c *cli.Context) error {
	kind := c.String("type")
	// Positional form kept for muscle memory: `cleantg report contacts`.
	if c.NArg() > 0 {
		kind = c.Args().First()
	}
	switch kind {
	case "dialogs", "groups", "contacts", "all":
	default:
		return fmt.Errorf("unknown report %q (want dialogs, groups, contacts or all)", kind)
	}

	svc, cfg, err := loadService(c)
	if err != nil {
		return err
	}

	formatName := c.String("format")
	if formatName == "" {
		formatName = cfg.Reports.Format
	}
	format, err := report.ParseFormat(formatName)
	if err != nil {
		return err
	}

	explicitPath := c.String("output")
	if kind == "all" && explicitPath != "" {
		return fmt.Errorf("--output cannot be combined with --type all")
	}
	pathFor := func(kind string) string {
		if explicitPath != "" {
			return explicitPath
		}
		return report.DefaultPath(cfg.Reports.Dir, kind, format, time.Now())
	}

	var dialogs []domain.DialogInfo
	if kind == "dialogs" || kind == "groups" || kind == "all" {
		dialogs, err = svc.ListDialogs(c.Context)
		if err != nil {
			return err
		}
	}

	switch kind {
	case "dialogs":
		return writeDialogReport(pathFor("dialogs"), format, dialogs)
	case "groups":
		return writeDialogReport(pathFor("groups"), format, report.FilterGroups(dialogs))
	case "contacts":
		return writeContactReport(c, svc, pathFor("contacts"), format)
	case "all":
		if err := writeDialogReport(pathFor("dialogs"), format, dialogs); err != nil {
			return err
		}
		if err := writeDialogReport(pathFor("groups"), format, report.FilterGroups(dialogs)); err != nil {
			return err
		}
		return writeContactReport(c, svc, pathFor("contacts"), format)
	}
	return nil
}

func writeDialogReport(path string, format report.Format, dialogs []domain.DialogInfo) error {
	if err := report.WriteDialogs(path, format, dialogs); err != nil {
		return err
	}
	fmt.Printf("Wrote %d dialog(s) to %s\n", len(dialogs), path)
	return nil
}

func writeContactReport(c *cli.Context, svc *telegram.Service, path string, format report.Format) error {
	contacts, err := svc.Contacts(c.Context)
	if err != nil {
		return err
	}
	if err := report.WriteContacts(path, format, contacts); err != nil {
		return err
	}
	fmt.Printf("Wrote %d contact(s) to %s\n", len(contacts), path)
	return nil
}
