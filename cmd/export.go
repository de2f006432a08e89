package cmd

import (
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	"cleantg/internal/export"
	"cleantg/internal/telegram"
)

// ExportCommand returns the export command.
func ExportCommand() *cli.Command {
	return &cli.Command{
		Name:    "export",
		Aliases: []string{"backup"},
		Usage:   "Export a chat's messages, members and media before removing it",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "messages",
				Usage: "Export the message history",
				Value: true,
			},
			&cli.BoolFlag{
				Name:  "members",
				Usage: "Export the member list (groups and channels only)",
			},
			&cli.BoolFlag{
				Name:  "media",
				Usage: "Download photo and document attachments",
			},
			&cli.StringSliceFlag{
				Name:  "media-type",
				Usage: "Restrict media downloads to a type: photo, video, document, audio, voice, sticker, gif (repeatable)",
			},
			&cli.IntFlag{
				Name:  "max-messages",
				Usage: "Only look at the most recent N messages (0 = all)",
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Output format: json, csv or both",
				Value:   "json",
			},
			&cli.BoolFlag{
				Name:  "cloud",
				Usage: "Also send the written export files to Saved Messages",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Base export directory (default: from config)",
			},
			&cli.IntFlag{
				Name:  "concurrency",
				Usage: "Parallel media downloads (default: from config)",
			},
		},
		ArgsUsage: "CHAT",
		Action:    runExport,
	}
}

func runExport(c *cli.Context) error {
	if c.NArg() < 1 {
		return fmt.Errorf("missing required argument: chat ID, @username or title")
	}
	ref := c.Args().First()

	format := strings.ToLower(strings.TrimSpace(c.String("format")))
	switch format {
	case "json", "csv", "both":
	default:
		return fmt.Errorf("unknown export format %q (want json, csv or both)", format)
	}

	svc, cfg, err := loadService(c)
	if err != nil {
		return err
	}

	baseDir := c.String("output")
	if baseDir == "" {
		baseDir = cfg.Backups.Dir
	}

	result, err := svc.Export(c.Context, ref, telegram.ExportOptions{
		Messages:     c.Bool("messages"),
		Participants: c.Bool("members"),
		MaxMessages:  c.Int("max-messages"),
	})
	if err != nil {
		return err
	}

	dir := export.ChatDir(baseDir, result)
	var written []string

	if format == "json" || format == "both" {
		path, err := export.WriteJSON(dir, result)
		if err != nil {
			return err
		}
		written = append(written, path)
	}
	if format == "csv" || format == "both" {
		if len(result.Messages) > 0 {
			path, err := export.WriteMessagesCSV(dir, result.Messages)
			if err != nil {
				return err
			}
			written = append(written, path)
		}
		if len(result.Participants) > 0 {
			path, err := export.WriteParticipantsCSV(dir, result.Participants)
			if err != nil {
				return err
			}
			written = append(written, path)
		}
	}
	fmt.Printf("Wrote %d message(s) and %d member(s) to %s\n", len(result.Messages), len(result.Participants), dir)

	if c.Bool("media") {
		concurrency := c.Int("concurrency")
		if concurrency == 0 {
			concurrency = cfg.Backups.Concurrency
		}
		stats, err := svc.DownloadMedia(c.Context, ref, telegram.MediaOptions{
			Types:       c.StringSlice("media-type"),
			MaxMessages: c.Int("max-messages"),
			Concurrency: concurrency,
			OutputDir:   dir,
		})
		if err != nil {
			return err
		}
		fmt.Printf("Downloaded %d file(s)", stats.Total)
		if stats.Failed > 0 {
			fmt.Printf(", %d failed", stats.Failed)
		}
		fmt.Println()
		for mediaKind, count := range stats.ByType {
			fmt.Printf("  %s: %d\n", mediaKind, count)
		}
	}

	if c.Bool("cloud") {
		if err := svc.SendBackupToCloud(c.Context, result.Title, written); err != nil {
			return err
		}
		fmt.Printf("Sent %d file(s) to Saved Messages\n", len(written))
	}
	return nil
}
