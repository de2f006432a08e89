package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/urfave/cli/v2"
	"rsc.io/qr"

	"cleantg/internal/domain"
	"cleantg/internal/telegram"
)

// LoginCommand returns the login command.
func LoginCommand() *cli.Command {
	return &cli.Command{
		Name:  "login",
		Usage: "Authorize this machine against a Telegram account",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "phone",
				Aliases: []string{"p"},
				Usage:   "Phone number in international format (+15551234567)",
			},
			&cli.BoolFlag{
				Name:  "qr",
				Usage: "Log in by scanning a QR code from another signed-in device",
			},
		},
		Action: runLogin,
	}
}

func runLogin(c *cli.Context) error {
	svc, _, err := loadService(c)
	if err != nil {
		return err
	}

	var status domain.AuthStatus
	if c.Bool("qr") {
		status, err = svc.QRLogin(c.Context, printTerminalQR, func() (string, error) {
			return promptLine("Two-factor password: ")
		})
	} else {
		phone := strings.TrimSpace(c.String("phone"))
		if phone == "" {
			phone, err = promptLine("Phone number: ")
			if err != nil {
				return err
			}
		}
		status, err = svc.Login(c.Context, phone, loginPrompts())
	}
	if err != nil {
		return err
	}

	if !status.Authorized {
		return fmt.Errorf("login did not complete")
	}
	fmt.Printf("Logged in as %s\n", status.UserDisplay)
	return nil
}

func loginPrompts() telegram.LoginPrompts {
	return telegram.LoginPrompts{
		Code: func() (string, error) {
			return promptLine("Login code: ")
		},
		Password: func() (string, error) {
			return promptLine("Two-factor password: ")
		},
	}
}

func printTerminalQR(url string, expires time.Time) error {
	code, err := qr.Encode(url, qr.M)
	if err != nil {
		return err
	}

	fmt.Println("Scan this code with Telegram on a signed-in device")
	fmt.Println("(Settings > Devices > Link Desktop Device):")
	fmt.Println()

	// Two vertical modules per text row via half-block characters.
	for y := 0; y < code.Size; y += 2 {
		var line strings.Builder
		for x := 0; x < code.Size; x++ {
			top := code.Black(x, y)
			bottom := y+1 < code.Size && code.Black(x, y+1)
			switch {
			case top && bottom:
				line.WriteRune(' ')
			case top:
				line.WriteRune('▄')
			case bottom:
				line.WriteRune('▀')
			default:
				line.WriteRune('█')
			}
		}
		fmt.Println(line.String())
	}
	fmt.Printf("\nCode expires at %s\n", expires.Local().Format("15:04:05"))
	return nil
}
