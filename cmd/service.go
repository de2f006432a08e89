// Package cmd defines the cleantg CLI commands.
package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"cleantg/internal/config"
	"cleantg/internal/telegram"
)

// loadService builds the Telegram service from config and environment.
func loadService(c *cli.Context) (*telegram.Service, *config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	svc, err := telegram.NewService(cfg.API.ID, cfg.API.Hash, cfg.Session.Path)
	if err != nil {
		return nil, nil, err
	}
	return svc, cfg, nil
}

func promptLine(label string) (string, error) {
	fmt.Print(label)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
