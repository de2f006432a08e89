package cmd

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"cleantg/internal/cleaner"
)

// CleanCommand returns the clean command.
func CleanCommand() *cli.Command {
	return &cli.Command{
		Name:  "clean",
		Usage: "Leave channels and groups and delete private chats",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "dry-run",
				Aliases: []string{"d"},
				Usage:   "Show what would be removed without touching anything",
			},
			&cli.BoolFlag{
				Name:    "yes",
				Aliases: []string{"y"},
				Usage:   "Skip the confirmation prompt",
			},
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Usage:   "Stop after removing this many dialogs (0 = no limit)",
			},
			&cli.StringSliceFlag{
				Name:    "keep",
				Aliases: []string{"k"},
				Usage:   "Dialog to keep, by ID, @username or exact title (repeatable)",
			},
			&cli.StringFlag{
				Name:    "types",
				Aliases: []string{"t"},
				Usage:   "Comma-separated dialog types to remove: channel, group, private",
			},
			&cli.StringFlag{
				Name:  "older-than",
				Usage: "Only remove dialogs with no activity since this age (720h, 90d, 6m, 1y) or date (2006-01-02)",
			},
			&cli.StringFlag{
				Name:  "match",
				Usage: "Only remove dialogs whose name contains this text",
			},
		},
		Action: runClean,
	}
}

func runClean(c *cli.Context) error {
	svc, cfg, err := loadService(c)
	if err != nil {
		return err
	}

	filter := cleaner.Filter{
		Match:   c.String("match"),
		Exclude: append([]string{}, cfg.Clean.Exclude...),
	}
	filter.Exclude = append(filter.Exclude, c.StringSlice("keep")...)

	if raw := c.String("types"); raw != "" {
		for _, name := range strings.Split(raw, ",") {
			kind, err := cleaner.ParseKind(strings.TrimSpace(name))
			if err != nil {
				return err
			}
			filter.Kinds = append(filter.Kinds, kind)
		}
	}
	if raw := c.String("older-than"); raw != "" {
		cutoff, err := parseCutoff(raw, time.Now())
		if err != nil {
			return err
		}
		filter.Cutoff = cutoff
	}

	dryRun := c.Bool("dry-run") || cfg.Clean.DryRun
	limit := c.Int("limit")
	if limit == 0 {
		limit = cfg.Clean.Limit
	}

	if !dryRun && !c.Bool("yes") {
		fmt.Println("This will permanently leave channels/groups and delete private chats.")
		answer, err := promptLine(`Type "DELETE ALL" to continue: `)
		if err != nil {
			return err
		}
		if answer != "DELETE ALL" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	opts := cleaner.Options{
		Filter: filter,
		Limit:  limit,
		DryRun: dryRun,
		OnFloodWait: func(label string, wait time.Duration, attempt, max int) {
			fmt.Printf("Rate limited on %s: waiting %s (attempt %d/%d)\n", label, wait, attempt, max)
		},
	}

	outcome, err := svc.Clean(c.Context, opts)
	if err != nil {
		log.Error().Err(err).Msg("cleanup run failed")
		return err
	}

	verb := "Removed"
	if dryRun {
		verb = "Would remove"
	}
	fmt.Printf("%s %d dialog(s), kept %d.\n", verb, outcome.Processed, outcome.Skipped)
	return nil
}

// parseCutoff turns the --older-than value into an activity cutoff. It
// accepts an absolute date (2006-01-02) or an age relative to now.
func parseCutoff(raw string, now time.Time) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if date, err := time.Parse("2006-01-02", raw); err == nil {
		return date, nil
	}
	age, err := parseAge(raw)
	if err != nil {
		return time.Time{}, err
	}
	return now.Add(-age), nil
}

// parseAge reads ages like 90d, 12w, 6m or 1y, plus any plain Go duration
// such as 720h. A bare number means days.
func parseAge(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(strings.ToLower(raw))
	if raw == "" {
		return 0, fmt.Errorf("empty duration")
	}
	// A trailing m means months here, not minutes, so Go duration syntax
	// is only tried for values that spell out hours or seconds.
	if strings.ContainsAny(raw, "hs") {
		if d, err := time.ParseDuration(raw); err == nil {
			if d <= 0 {
				return 0, fmt.Errorf("duration %q must be positive", raw)
			}
			return d, nil
		}
	}

	unit := time.Duration(24) * time.Hour
	digits := raw
	switch raw[len(raw)-1] {
	case 'd':
		digits = raw[:len(raw)-1]
	case 'w':
		unit *= 7
		digits = raw[:len(raw)-1]
	case 'm':
		unit *= 30
		digits = raw[:len(raw)-1]
	case 'y':
		unit *= 365
		digits = raw[:len(raw)-1]
	}

	n, err := strconv.Atoi(digits)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid duration %q (want e.g. 90d, 12w, 6m, 1y)", raw)
	}
	return time.Duration(n) * unit, nil
}
