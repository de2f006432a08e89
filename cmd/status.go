package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

// StatusCommand returns the status command.
func StatusCommand() *cli.Command {
	return &cli.Command{
		Name:   "status",
		Usage:  "Show whether this machine holds an authorized session",
		Action: runStatus,
	}
}

func runStatus(c *cli.Context) error {
	svc, _, err := loadService(c)
	if err != nil {
		return err
	}

	status, err := svc.Status(c.Context)
	if err != nil {
		return err
	}
	if !status.Authorized {
		fmt.Println("Not logged in. Run `cleantg login` first.")
		return nil
	}
	fmt.Printf("Logged in as %s", status.UserDisplay)
	if status.Username != "" {
		fmt.Printf(" (@%s)", status.Username)
	}
	fmt.Println()
	fmt.Printf("Session file: %s\n", svc.SessionPath())
	return nil
}
