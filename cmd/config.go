package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"cleantg/internal/config"
)

// ConfigCommand returns the config command.
func ConfigCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Manage the cleantg configuration file",
		Subcommands: []*cli.Command{
			{
				Name:   "init",
				Usage:  "Write a sample configuration file",
				Action: runConfigInit,
			},
			{
				Name:   "path",
				Usage:  "Print the default configuration file path",
				Action: runConfigPath,
			},
		},
	}
}

func runConfigInit(c *cli.Context) error {
	path := c.String("config")
	if path == "" {
		path = filepath.Join(config.DefaultDir(), "config.json")
	}
	if err := config.Init(path); err != nil {
		return err
	}
	fmt.Printf("Wrote sample configuration to %s\n", path)
	fmt.Println("Fill in api.id and api.hash from https://my.telegram.org before logging in.")
	return nil
}

func runConfigPath(c *cli.Context) error {
	fmt.Println(filepath.Join(config.DefaultDir(), "config.json"))
	return nil
}
