package cleaner

import (
	"fmt"
	"strings"
	"time"

	"github.com/gotd/td/tg"
)

// Kind is the cleanup category of a dialog. It decides which destructive
// action is used to get rid of the dialog.
type Kind int

const (
	KindUnknown Kind = iota
	KindChannel
	KindLegacyGroup
	KindDirectPeer
)

func (k Kind) String() string {
	switch k {
	case KindChannel:
		return "channel"
	case KindLegacyGroup:
		return "group"
	case KindDirectPeer:
		return "private"
	default:
		return "unknown"
	}
}

// ParseKind maps the user-facing type names (as accepted by --types) back
// to a Kind.
func ParseKind(name string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "channel":
		return KindChannel, nil
	case "group":
		return KindLegacyGroup, nil
	case "private", "user", "bot":
		return KindDirectPeer, nil
	default:
		return KindUnknown, fmt.Errorf("unknown dialog type %q", name)
	}
}

// Conversation is a dialog normalized from the Telegram dialog list. The
// boolean fields mirror the structural markers of the underlying entity
// (tg.Channel flags, tg.Chat, tg.User) so classification never needs the
// original entity or a network call.
type Conversation struct {
	ID       int64
	Title    string
	Username string

	Broadcast  bool
	Megagroup  bool
	Gigagroup  bool
	BasicGroup bool
	User       bool
	Bot        bool

	// LastActivity is the date of the top message; zero when the dialog
	// carried no usable timestamp.
	LastActivity time.Time

	Peer tg.InputPeerClass
}

// Classify decides the cleanup category of a conversation. Channel markers
// are checked first: a megagroup carries both group and channel traits and
// must be left like a channel, not exited like a legacy group.
func Classify(c Conversation) Kind {
	switch {
	case c.Broadcast || c.Megagroup || c.Gigagroup:
		return KindChannel
	case c.BasicGroup:
		return KindLegacyGroup
	case c.User || c.Bot:
		return KindDirectPeer
	default:
		return KindUnknown
	}
}

// Label returns the display name used in logs and progress callbacks.
func (c Conversation) Label() string {
	if strings.TrimSpace(c.Title) != "" {
		return c.Title
	}
	if c.Username != "" {
		return "@" + c.Username
	}
	return fmt.Sprintf("Dialog %d", c.ID)
}
