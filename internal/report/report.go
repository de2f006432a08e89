// Package report renders dialog and contact listings to CSV, JSON or
// plain-text files.
package report

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

// Format names a report output format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatText Format = "txt"
)

// ParseFormat validates a user-supplied format name.
func ParseFormat(raw string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(raw))) {
	case FormatCSV:
		return FormatCSV, nil
	case FormatJSON:
		return FormatJSON, nil
	case FormatText, "text":
		return FormatText, nil
	default:
		return "", fmt.Errorf("unknown report format %q (want csv, json or txt)", raw)
	}
}

// FilterGroups keeps only the group and channel rows of a dialog listing,
// the membership-focused view of the account.
func FilterGroups(dialogs []domain.DialogInfo) []domain.DialogInfo {
	var out []domain.DialogInfo
	for _, d := range dialogs {
		if d.Type == "group" || d.Type == "channel" {
			out = append(out, d)
		}
	}
	return out
}

// DefaultPath builds a timestamped file name under dir for the given report
// kind, e.g. reports/dialogs_20260830_153000.csv.
func DefaultPath(dir, kind string, format Format, now time.Time) string {
	name := fmt.Sprintf("%s_%s.%s", kind, now.Format("20060102_150405"), format)
	return filepath.Join(dir, name)
}

// WriteDialogs writes the dialog report to path in the given format.
func WriteDialogs(path string, format Format, dialogs []domain.DialogInfo) error {
	return writeReport(path, format, func(f *os.File) error {
		switch format {
		case FormatCSV:
			return dialogsCSV(f, dialogs)
		case FormatJSON:
			return encodeJSON(f, dialogs)
		default:
			return dialogsText(f, dialogs)
		}
	})
}

// WriteContacts writes the contact report to path in the given format.
func WriteContacts(path string, format Format, contacts []domain.ContactInfo) error {
	return writeReport(path, format, func(f *os.File) error {
		switch format {
		case FormatCSV:
			return contactsCSV(f, contacts)
		case FormatJSON:
			return encodeJSON(f, contacts)
		default:
			return contactsText(f, contacts)
		}
	})
}

func writeReport(path string, format Format, write func(*os.File) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func encodeJSON(f *os.File, v any) error {
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func dialogsCSV(f *os.File, dialogs []domain.DialogInfo) error {
	w := csv.NewWriter(f)
	if err := w.Write([]string{"id", "title", "type", "username", "participants", "last_activity", "megagroup", "broadcast", "creator", "admin"}); err != nil {
		return err
	}
	for _, d := range dialogs {
		row := []string{
			strconv.FormatInt(d.ID, 10),
			d.Title,
			d.Type,
			d.Username,
			strconv.Itoa(d.ParticipantsCount),
			formatUnix(d.LastActivityUnix),
			strconv.FormatBool(d.Megagroup),
			strconv.FormatBool(d.Broadcast),
			strconv.FormatBool(d.Creator),
			strconv.FormatBool(d.AdminRights),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func contactsCSV(f *os.File, contacts []domain.ContactInfo) error {
	w := csv.NewWriter(f)
	if err := w.Write([]string{"id", "first_name", "last_name", "username", "phone", "bot", "verified", "premium"}); err != nil {
		return err
	}
	for _, c := range contacts {
		row := []string{
			strconv.FormatInt(c.ID, 10),
			c.FirstName,
			c.LastName,
			c.Username,
			c.Phone,
			strconv.FormatBool(c.Bot),
			strconv.FormatBool(c.Verified),
			strconv.FormatBool(c.Premium),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func dialogsText(f *os.File, dialogs []domain.DialogInfo) error {
	for _, d := range dialogs {
		line := fmt.Sprintf("%-12d  %-8s  %s", d.ID, d.Type, d.Title)
		if d.Username != "" {
			line += " (@" + d.Username + ")"
		}
		if d.ParticipantsCount > 0 {
			line += fmt.Sprintf("  [%d members]", d.ParticipantsCount)
		}
		if last := formatUnix(d.LastActivityUnix); last != "" {
			line += "  last " + last
		}
		if _, err := fmt.Fprintln(f, line); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(f, "\ntotal: %d\n", len(dialogs))
	return err
}

func contactsText(f *os.File, contacts []domain.ContactInfo) error {
	for _, c := range contacts {
		name := strings.TrimSpace(c.FirstName + " " + c.LastName)
		if name == "" {
			name = "(no name)"
		}
		line := fmt.Sprintf("%-12d  %s", c.ID, name)
		if c.Username != "" {
			line += " (@" + c.Username + ")"
		}
		if c.Phone != "" {
			line += "  +" + strings.TrimPrefix(c.Phone, "+")
		}
		if c.Bot {
			line += "  [bot]"
		}
		if _, err := fmt.Fprintln(f, line); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(f, "\ntotal: %d\n", len(contacts))
	return err
}

func formatUnix(ts int64) string {
	if ts <= 0 {
		return ""
	}
	return time.Unix(ts, 0).UTC().Format("2006-01-02")
}
