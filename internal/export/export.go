// Package export persists chat backups to disk.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"cleantg/internal/domain"
)

// ChatDir builds the per-chat backup directory name under baseDir, keeping
// it unique by chat ID even when titles collide.
func ChatDir(baseDir string, export *domain.ChatExport) string {
	title := SafeName(export.Title)
	if title == "" {
		title = "chat"
	}
	return filepath.Join(baseDir, fmt.Sprintf("%s_%d", title, export.ChatID))
}

// SafeName strips characters that are unsafe in file names.
func SafeName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ':
			b.WriteRune('_')
		}
	}
	return strings.Trim(b.String(), "_")
}

// WriteJSON writes the full export as a single JSON document.
func WriteJSON(dir string, export *domain.ChatExport) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, "export.json")
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(export); err != nil {
		f.Close()
		return "", err
	}
	return path, f.Close()
}

// WriteMessagesCSV writes the message history as CSV.
func WriteMessagesCSV(dir string, messages []domain.Message) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, "messages.csv")
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"id", "date", "sender_id", "sender", "text", "media", "views", "forwards", "outgoing"}); err != nil {
		return "", err
	}
	for _, m := range messages {
		row := []string{
			strconv.FormatInt(m.ID, 10),
			time.Unix(m.Timestamp, 0).UTC().Format(time.RFC3339),
			strconv.FormatInt(m.SenderID, 10),
			m.SenderDisplay,
			m.Text,
			m.MediaType,
			strconv.Itoa(m.Views),
			strconv.Itoa(m.Forwards),
			strconv.FormatBool(m.IsOutgoing),
		}
		if err := w.Write(row); err != nil {
			return "", err
		}
	}
	w.Flush()
	return path, w.Error()
}

// WriteParticipantsCSV writes the member list as CSV.
func WriteParticipantsCSV(dir string, participants []domain.Participant) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, "participants.csv")
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"id", "first_name", "last_name", "username", "phone", "bot", "admin", "creator"}); err != nil {
		return "", err
	}
	for _, p := range participants {
		row := []string{
			strconv.FormatInt(p.ID, 10),
			p.FirstName,
			p.LastName,
			p.Username,
			p.Phone,
			strconv.FormatBool(p.Bot),
			strconv.FormatBool(p.Admin),
			strconv.FormatBool(p.Creator),
		}
		if err := w.Write(row); err != nil {
			return "", err
		}
	}
	w.Flush()
	return path, w.Error()
}
