// Package config loads cleantg settings from defaults, an optional JSON
// config file and CLEANTG_-prefixed environment variables, in that order.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "CLEANTG_"

// Config represents the application configuration.
type Config struct {
	API struct {
		ID   int    `koanf:"id"`
		Hash string `koanf:"hash"`
	} `koanf:"api"`

	Clean struct {
		DryRun  bool     `koanf:"dry_run"`
		Limit   int      `koanf:"limit"`
		Exclude []string `koanf:"exclude"`
	} `koanf:"clean"`

	Reports struct {
		Dir    string `koanf:"dir"`
		Format string `koanf:"format"`
	} `koanf:"reports"`

	Backups struct {
		Dir         string `koanf:"dir"`
		Concurrency int    `koanf:"concurrency"`
	} `koanf:"backups"`

	Session struct {
		Path string `koanf:"path"`
	} `koanf:"session"`
}

// DefaultDir returns the per-user settings directory (~/.cleantg).
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".cleantg"
	}
	return filepath.Join(home, ".cleantg")
}

// Load reads configuration from configPath, or from the default locations
// when configPath is empty. A missing config file is not an error.
func Load(configPath string) (*Config, error) {
	var k = koanf.New(".")

	k.Load(confmap.Provider(map[string]interface{}{
		"clean.dry_run":       false,
		"clean.limit":         0,
		"reports.dir":         "reports",
		"reports.format":      "csv",
		"backups.dir":         "backups",
		"backups.concurrency": 5,
		"session.path":        filepath.Join(DefaultDir(), "session.json"),
	}, "."), nil)

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), json.Parser()); err != nil {
			return nil, fmt.Errorf("error loading config: %w", err)
		}
	} else {
		defaultPaths := []string{
			"./cleantg.json",
			filepath.Join(DefaultDir(), "config.json"),
		}
		for _, path := range defaultPaths {
			if _, err := os.Stat(path); err == nil {
				if err := k.Load(file.Provider(path), json.Parser()); err == nil {
					break
				}
			}
		}
	}

	k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "_", ".", -1)
	}), nil)

	var config Config
	if err := k.Unmarshal("", &config); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	applyCredentialEnv(&config)
	return &config, nil
}

// applyCredentialEnv honors the conventional gotd variable names so creds
// set for other Telegram tooling keep working here.
func applyCredentialEnv(config *Config) {
	if config.API.ID == 0 {
		if raw := os.Getenv("APP_ID"); raw != "" {
			fmt.Sscanf(raw, "%d", &config.API.ID)
		}
	}
	if config.API.Hash == "" {
		config.API.Hash = os.Getenv("APP_HASH")
	}
}

// Init writes a sample configuration file at configPath.
func Init(configPath string) error {
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("configuration file already exists at %s", configPath)
	}
	if err := os.MkdirAll(filepath.Dir(configPath), 0o700); err != nil {
		return err
	}

	sampleConfig := `{
  "api": {
    "id": 0,
    "hash": ""
  },
  "clean": {
    "dry_run": false,
    "limit": 0,
    "exclude": []
  },
  "reports": {
    "dir": "reports",
    "format": "csv"
  },
  "backups": {
    "dir": "backups",
    "concurrency": 5
  }
}
`
	return os.WriteFile(configPath, []byte(sampleConfig), 0o600)
}

// Validate checks that the API credentials needed to talk to Telegram are
// present.
func Validate(config *Config) error {
	if config.API.ID == 0 {
		return fmt.Errorf("api id is required (set api.id or the CLEANTG_API_ID / APP_ID environment variable)")
	}
	if config.API.Hash == "" {
		return fmt.Errorf("api hash is required (set api.hash or the CLEANTG_API_HASH / APP_HASH environment variable)")
	}
	if config.Backups.Concurrency <= 0 {
		return fmt.Errorf("backups concurrency must be positive")
	}
	return nil
}
