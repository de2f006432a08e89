package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tdtelegram "github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/telegram/auth/qrlogin"
	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"

	"cleantg/internal/domain"
)

// LoginPrompts supplies the interactive pieces of the sign-in flow. Code is
// required; Password is only consulted when the account has 2FA enabled.
type LoginPrompts struct {
	Code     func() (string, error)
	Password func() (string, error)
}

// Status reports whether the stored session is authorized and for whom.
func (s *Service) Status(ctx context.Context) (domain.AuthStatus, error) {
	var status domain.AuthStatus
	err := s.withClient(ctx, func(runCtx context.Context, client *tdtelegram.Client) error {
		authStatus, statusErr := client.Auth().Status(runCtx)
		if statusErr != nil {
			return statusErr
		}
		status.Authorized = authStatus.Authorized
		if authStatus.User != nil {
			status.UserID = authStatus.User.ID
			status.UserDisplay = formatUserDisplay(authStatus.User)
			status.Username = authStatus.User.Username
		}
		return nil
	})
	return status, err
}

// Login runs the phone/code sign-in flow against a single connection. An
// already authorized session is left untouched.
func (s *Service) Login(ctx context.Context, phone string, prompts LoginPrompts) (domain.AuthStatus, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return domain.AuthStatus{}, errors.New("telegram phone is required")
	}
	if prompts.Code == nil {
		return domain.AuthStatus{}, errors.New("code prompt is required")
	}

	err := s.withClient(ctx, func(runCtx context.Context, client *tdtelegram.Client) error {
		current, statusErr := client.Auth().Status(runCtx)
		if statusErr != nil {
			return statusErr
		}
		if current.Authorized {
			return nil
		}

		sentCode, sendErr := client.Auth().SendCode(runCtx, phone, auth.SendCodeOptions{})
		if sendErr != nil {
			return sendErr
		}
		sent, ok := sentCode.(*tg.AuthSentCode)
		if !ok {
			// AuthSentCodeSuccess means future-auth tokens signed us in
			// without a code.
			return nil
		}

		code, codeErr := prompts.Code()
		if codeErr != nil {
			return codeErr
		}
		_, signInErr := client.Auth().SignIn(runCtx, phone, strings.TrimSpace(code), sent.PhoneCodeHash)
		if errors.Is(signInErr, auth.ErrPasswordAuthNeeded) {
			if prompts.Password == nil {
				return errors.New("account has 2FA enabled but no password prompt was provided")
			}
			password, pwErr := prompts.Password()
			if pwErr != nil {
				return pwErr
			}
			_, pwdErr := client.Auth().Password(runCtx, password)
			return pwdErr
		}
		return signInErr
	})
	if err != nil {
		return domain.AuthStatus{}, err
	}
	return s.Status(ctx)
}

// QRLogin authorizes the session by QR code. showQR is called with the
// login URL each time Telegram rotates the token; password is consulted
// when the account has 2FA enabled.
func (s *Service) QRLogin(ctx context.Context, showQR func(url string, expires time.Time) error, password func() (string, error)) (domain.AuthStatus, error) {
	if showQR == nil {
		return domain.AuthStatus{}, errors.New("showQR callback is required")
	}

	dispatcher := tg.NewUpdateDispatcher()
	loggedIn := qrlogin.OnLoginToken(dispatcher)

	var result domain.AuthStatus
	err := s.withClientUsingOptions(ctx, tdtelegram.Options{
		UpdateHandler: dispatcher,
	}, func(runCtx context.Context, client *tdtelegram.Client) error {
		status, statusErr := client.Auth().Status(runCtx)
		if statusErr != nil {
			return statusErr
		}
		if !status.Authorized {
			_, authErr := client.QR().Auth(runCtx, loggedIn, func(_ context.Context, token qrlogin.Token) error {
				return showQR(token.URL(), token.Expires())
			})
			if authErr != nil {
				if !isPasswordNeeded(authErr) {
					return authErr
				}
				if password == nil {
					return errors.New("account has 2FA enabled but no password prompt was provided")
				}
				pw, pwErr := password()
				if pwErr != nil {
					return pwErr
				}
				if _, pwdErr := client.Auth().Password(runCtx, pw); pwdErr != nil {
					return pwdErr
				}
			}
		}

		newStatus, statusErr := client.Auth().Status(runCtx)
		if statusErr != nil {
			return statusErr
		}
		result.Authorized = newStatus.Authorized
		if newStatus.User != nil {
			result.UserID = newStatus.User.ID
			result.UserDisplay = formatUserDisplay(newStatus.User)
			result.Username = newStatus.User.Username
		}
		return nil
	})
	if err != nil {
		return domain.AuthStatus{}, err
	}
	return result, nil
}

// Logout invalidates the server-side authorization and removes the local
// session file.
func (s *Service) Logout(ctx context.Context) error {
	err := s.withClient(ctx, func(runCtx context.Context, client *tdtelegram.Client) error {
		status, statusErr := client.Auth().Status(runCtx)
		if statusErr != nil {
			return statusErr
		}
		if !status.Authorized {
			return nil
		}
		if _, logErr := client.API().AuthLogOut(runCtx); logErr != nil {
			return fmt.Errorf("log out: %w", logErr)
		}
		return nil
	})
	if err != nil {
		return err
	}
	storage := &SessionStorage{Path: s.sessionPath}
	return storage.Delete()
}

func isPasswordNeeded(err error) bool {
	if errors.Is(err, auth.ErrPasswordAuthNeeded) {
		return true
	}
	if rpcErr, ok := tgerr.As(err); ok {
		return rpcErr.IsOneOf("SESSION_PASSWORD_NEEDED")
	}
	return false
}
