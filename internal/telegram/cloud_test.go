package telegram

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestBackupNotice(t *testing.T) {
	now := time.Date(2026, 8, 30, 15, 30, 0, 0, time.UTC)
	got := backupNotice("Team Chat", 3, now)
	if !strings.Contains(got, `"Team Chat"`) || !strings.Contains(got, "3 file(s)") {
		t.Fatalf("unexpected notice: %q", got)
	}
	if !strings.Contains(got, "2026-08-30 15:30 UTC") {
		t.Fatalf("expected UTC timestamp, got %q", got)
	}
}

func TestSendBackupToCloudRequiresFiles(t *testing.T) {
	svc, err := NewService(1, "hash", "session.json")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := svc.SendBackupToCloud(context.Background(), "Team Chat", nil); err == nil {
		t.Fatal("expected empty file list to fail")
	}
}
