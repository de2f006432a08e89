package telegram

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	tdtelegram "github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/message"
	"github.com/gotd/td/telegram/uploader"
	"github.com/rs/zerolog/log"
)

// SendBackupToCloud uploads the written backup files to the account's
// Saved Messages so the export survives the local machine. Files are sent
// one at a time; a failed upload aborts the batch.
func (s *Service) SendBackupToCloud(ctx context.Context, chatTitle string, paths []string) error {
	if len(paths) == 0 {
		return fmt.Errorf("no backup files to upload")
	}

	return s.withAuthorizedClient(ctx, func(runCtx context.Context, client *tdtelegram.Client) error {
		api := client.API()
		up := uploader.NewUploader(api)
		sender := message.NewSender(api).WithUploader(up)

		for _, path := range paths {
			name := filepath.Base(path)
			file, err := up.FromPath(runCtx, path)
			if err != nil {
				return fmt.Errorf("upload %s: %w", name, err)
			}
			document := message.UploadedDocument(file).
				Filename(name).
				ForceFile(true)
			if _, err := sender.Self().Media(runCtx, document); err != nil {
				return fmt.Errorf("send %s: %w", name, err)
			}
			log.Info().Str("file", name).Msg("backup file sent to saved messages")
		}

		caption := backupNotice(chatTitle, len(paths), time.Now())
		if _, err := sender.Self().Text(runCtx, caption); err != nil {
			return fmt.Errorf("send backup notice: %w", err)
		}
		return nil
	})
}

// backupNotice is the summary message that follows the uploaded files.
func backupNotice(chatTitle string, files int, now time.Time) string {
	return fmt.Sprintf("Backup of %q: %d file(s), %s", chatTitle, files, now.UTC().Format("2006-01-02 15:04 UTC"))
}
