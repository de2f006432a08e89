package main

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"cleantg/cmd"
)

const (
	version = "0.1.0"
)

func main() {
	godotenv.Load()

	app := &cli.App{
		Name:    "cleantg",
		Usage:   "Bulk-clean a Telegram account: leave channels and groups, delete private chats",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Load configuration from `FILE`",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Enable debug logging",
			},
		},
		Before: func(c *cli.Context) error {
			level := zerolog.InfoLevel
			if c.Bool("verbose") {
				level = zerolog.DebugLevel
			}
			log.Logger = zerolog.New(zerolog.ConsoleWriter{
				Out:        os.Stderr,
				TimeFormat: time.Kitchen,
			}).Level(level).With().Timestamp().Logger()
			return nil
		},
		Commands: []*cli.Command{
			cmd.LoginCommand(),
			cmd.LogoutCommand(),
			cmd.StatusCommand(),
			cmd.CleanCommand(),
			cmd.ReportCommand(),
			cmd.ExportCommand(),
			cmd.ConfigCommand(),
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
