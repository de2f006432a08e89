package cleaner

import (
	"context"
	"fmt"
	"time"

	"github.com/gotd/td/tg"
)

// Client executes destructive dialog actions. internal/telegram provides
// the gotd-backed implementation; tests use a recording fake. Every method
// returns nil, *FloodWaitError, *RPCError, or an arbitrary error for
// failures outside the Telegram RPC taxonomy.
type Client interface {
	// DeleteHistory wipes the dialog history, revoking it for the other
	// side when revoke is set.
	DeleteHistory(ctx context.Context, peer tg.InputPeerClass, revoke bool) error
	// LeaveChannel leaves a channel or megagroup.
	LeaveChannel(ctx context.Context, peer tg.InputPeerClass) error
	// LeaveGroup removes the own account from a legacy basic group.
	LeaveGroup(ctx context.Context, peer tg.InputPeerClass) error
	// DeleteDialog is the generic best-effort removal used as the
	// fallback when LeaveGroup is rejected outright.
	DeleteDialog(ctx context.Context, peer tg.InputPeerClass) error
}

// Source yields conversations one at a time, gotd iterator style. The
// sequence is lazy: conversations past the point where the run stops are
// never pulled.
type Source interface {
	Next(ctx context.Context) bool
	Conversation() Conversation
	Err() error
}

// FloodWaitError is a Telegram FLOOD_WAIT signal carrying the server
// advised wait.
type FloodWaitError struct {
	Wait time.Duration
}

func (e *FloodWaitError) Error() string {
	return fmt.Sprintf("flood wait %s", e.Wait)
}

// RPCError is a non-recoverable rejection from Telegram, e.g. missing
// rights. It is never retried.
type RPCError struct {
	Code int
	Type string
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Type)
}
