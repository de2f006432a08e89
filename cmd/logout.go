package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

// LogoutCommand returns the logout command.
func LogoutCommand() *cli.Command {
	return &cli.Command{
		Name:   "logout",
		Usage:  "Terminate the session and remove the local session file",
		Action: runLogout,
	}
}

func runLogout(c *cli.Context) error {
	svc, _, err := loadService(c)
	if err != nil {
		return err
	}
	if err := svc.Logout(c.Context); err != nil {
		return err
	}
	fmt.Println("Logged out.")
	return nil
}
