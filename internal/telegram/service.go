// Package telegram wraps the gotd MTProto client behind the operations the
// CLI needs: auth, dialog enumeration, destructive cleanup actions, report
// data collection and chat export.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	tdtelegram "github.com/gotd/td/telegram"
	"github.com/gotd/td/tg"
)

var (
	ErrNotConfigured = errors.New("telegram api credentials are not configured")
	ErrUnauthorized  = errors.New("telegram session is not authorized")
)

// Service owns the API credentials and the session file. Every operation
// opens a client, runs its callback and tears the connection down again;
// requests are strictly sequential within one operation.
type Service struct {
	apiID       int
	apiHash     string
	sessionPath string
}

func NewService(apiID int, apiHash string, sessionPath string) (*Service, error) {
	apiHash = strings.TrimSpace(apiHash)
	if apiID <= 0 || apiHash == "" {
		return nil, ErrNotConfigured
	}
	return &Service{
		apiID:       apiID,
		apiHash:     apiHash,
		sessionPath: sessionPath,
	}, nil
}

func (s *Service) SessionPath() string {
	return s.sessionPath
}

func (s *Service) withClient(ctx context.Context, fn func(context.Context, *tdtelegram.Client) error) error {
	return s.withClientUsingOptions(ctx, tdtelegram.Options{
		SessionStorage: &SessionStorage{Path: s.sessionPath},
	}, fn)
}

func (s *Service) withClientUsingOptions(ctx context.Context, opts tdtelegram.Options, fn func(context.Context, *tdtelegram.Client) error) error {
	if err := os.MkdirAll(filepath.Dir(s.sessionPath), 0o700); err != nil {
		return err
	}
	if opts.SessionStorage == nil {
		opts.SessionStorage = &SessionStorage{Path: s.sessionPath}
	}

	client := tdtelegram.NewClient(s.apiID, s.apiHash, opts)
	return client.Run(ctx, func(runCtx context.Context) error {
		return fn(runCtx, client)
	})
}

// withAuthorizedClient is withClient plus an authorization gate; almost
// every operation except login goes through it.
func (s *Service) withAuthorizedClient(ctx context.Context, fn func(context.Context, *tdtelegram.Client) error) error {
	return s.withClient(ctx, func(runCtx context.Context, client *tdtelegram.Client) error {
		status, err := client.Auth().Status(runCtx)
		if err != nil {
			return err
		}
		if !status.Authorized {
			return ErrUnauthorized
		}
		return fn(runCtx, client)
	})
}

func formatUserDisplay(user *tg.User) string {
	if user == nil {
		return ""
	}
	name := strings.TrimSpace(strings.Join([]string{user.FirstName, user.LastName}, " "))
	if name != "" {
		return name
	}
	if user.Username != "" {
		return "@" + user.Username
	}
	return fmt.Sprintf("User %d", user.ID)
}
