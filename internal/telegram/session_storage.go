package telegram

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/gotd/td/session"
)

// SessionStorage implements session.Storage for the CLI's session file.
// The file carries the account's authorization keys, so writes are atomic
// (temp file + rename), owner-only and create the settings directory on
// demand. Loads validate the payload and fall back to session.ErrNotFound
// when the file is empty or damaged, forcing a clean re-login instead of a
// confusing decode failure.
type SessionStorage struct {
	Path string
	mux  sync.Mutex
}

func (s *SessionStorage) LoadSession(_ context.Context) ([]byte, error) {
	s.mux.Lock()
	defer s.mux.Unlock()

	data, err := os.ReadFile(s.Path)
	if os.IsNotExist(err) {
		return nil, session.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if len(data) == 0 || !json.Valid(data) {
		return nil, session.ErrNotFound
	}
	return data, nil
}

func (s *SessionStorage) StoreSession(_ context.Context, data []byte) error {
	s.mux.Lock()
	defer s.mux.Unlock()

	dir := filepath.Dir(s.Path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".session-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return os.Rename(tmpPath, s.Path)
}

// Delete removes the session file. A file that is already gone is not an
// error; logout must stay idempotent.
func (s *SessionStorage) Delete() error {
	s.mux.Lock()
	defer s.mux.Unlock()

	err := os.Remove(s.Path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
