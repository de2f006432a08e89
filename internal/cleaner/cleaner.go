package cleaner

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	// MaxAttempts bounds FLOOD_WAIT retries per conversation.
	MaxAttempts = 5
	// minFloodWait is the floor applied to server advised waits so a
	// zero or tiny advisory does not turn the retry loop into hammering.
	minFloodWait = 5 * time.Second
	// actionPause is a short pacing delay after every successful action
	// to lower the chance of tripping flood control on the next dialog.
	actionPause = 350 * time.Millisecond
)

// ActionKind names the destructive action chosen for a conversation.
type ActionKind int

const (
	ActionDeleteHistory ActionKind = iota
	ActionLeaveChannel
	ActionLeaveGroup
	ActionDeleteDialog
)

func (a ActionKind) String() string {
	switch a {
	case ActionDeleteHistory:
		return "delete history"
	case ActionLeaveChannel:
		return "leave channel"
	case ActionLeaveGroup:
		return "leave group"
	case ActionDeleteDialog:
		return "delete dialog"
	default:
		return "unknown action"
	}
}

// SelectAction maps a classified kind to its cleanup action. Unknown kinds
// get the same best-effort history delete as direct peers.
func SelectAction(kind Kind) ActionKind {
	switch kind {
	case KindChannel:
		return ActionLeaveChannel
	case KindLegacyGroup:
		return ActionLeaveGroup
	default:
		return ActionDeleteHistory
	}
}

// FloodWaitFunc is invoked synchronously before each rate-limit wait.
type FloodWaitFunc func(label string, wait time.Duration, attempt, maxAttempts int)

// Options controls a single clean run.
type Options struct {
	Filter Filter
	// Limit caps how many conversations are processed (not inspected);
	// zero means no cap.
	Limit int
	// DryRun selects the action and logs it but issues no mutating call,
	// including on the legacy-group fallback path.
	DryRun bool
	// OnFloodWait, when set, observes every rate-limit wait.
	OnFloodWait FloodWaitFunc
}

// Outcome accumulates run counters. Every conversation pulled from the
// source lands in exactly one of the two, whether or not its action
// ultimately succeeded.
type Outcome struct {
	Processed int
	Skipped   int
}

// Runner drives a clean run: enumerate, filter, classify, act, retry.
type Runner struct {
	client Client
	sleep  func(ctx context.Context, d time.Duration) error
}

func NewRunner(client Client) *Runner {
	return &Runner{
		client: client,
		sleep:  sleepContext,
	}
}

// Run processes conversations from src until it is exhausted or the
// processed count reaches opts.Limit. Failures of individual conversations
// are logged and absorbed; the returned error only reflects enumeration
// failure or context cancellation.
func (r *Runner) Run(ctx context.Context, src Source, opts Options) (Outcome, error) {
	var out Outcome

	for {
		if opts.Limit > 0 && out.Processed >= opts.Limit {
			log.Info().Int("limit", opts.Limit).Msg("processing limit reached")
			break
		}
		if ctx.Err() != nil {
			return out, ctx.Err()
		}
		if !src.Next(ctx) {
			break
		}

		conv := src.Conversation()
		if !opts.Filter.Matches(conv) {
			out.Skipped++
			log.Debug().Str("dialog", conv.Label()).Msg("skipped by filter")
			continue
		}

		r.processOne(ctx, conv, out.Processed+1, opts)
		out.Processed++
	}

	if err := src.Err(); err != nil {
		return out, err
	}
	return out, nil
}

// processOne runs one conversation through the retry state machine. The
// action is selected once; retries repeat it without re-classifying.
func (r *Runner) processOne(ctx context.Context, conv Conversation, index int, opts Options) {
	kind := Classify(conv)
	action := SelectAction(kind)
	label := conv.Label()

	log.Info().
		Int("index", index).
		Str("dialog", label).
		Str("kind", kind.String()).
		Str("action", action.String()).
		Bool("dry_run", opts.DryRun).
		Msg("processing dialog")

	attempt := 0
	for {
		err := r.execute(ctx, conv, action, opts.DryRun)
		if err == nil {
			if sleepErr := r.sleep(ctx, actionPause); sleepErr != nil {
				return
			}
			return
		}

		var flood *FloodWaitError
		if errors.As(err, &flood) {
			attempt++
			wait := flood.Wait
			if wait < minFloodWait {
				wait = minFloodWait
			}
			log.Warn().
				Str("dialog", label).
				Dur("wait", wait).
				Int("attempt", attempt).
				Int("max_attempts", MaxAttempts).
				Msg("rate limited, waiting before retry")
			if opts.OnFloodWait != nil {
				opts.OnFloodWait(label, wait, attempt, MaxAttempts)
			}
			if sleepErr := r.sleep(ctx, wait); sleepErr != nil {
				return
			}
			if attempt >= MaxAttempts {
				log.Error().Str("dialog", label).Msg("max retries reached, giving up on dialog")
				return
			}
			continue
		}

		var rpc *RPCError
		if errors.As(err, &rpc) {
			log.Error().
				Str("dialog", label).
				Int("code", rpc.Code).
				Str("type", rpc.Type).
				Msg("telegram rejected the action, giving up on dialog")
			return
		}

		log.Error().
			Err(err).
			Str("dialog", label).
			Str("action", action.String()).
			Msg("unexpected error, giving up on dialog")
		return
	}
}

// execute performs the action once. In dry-run mode nothing reaches the
// client. A legacy-group exit rejected with an RPC error falls back to the
// generic dialog delete within the same attempt; a flood wait does not.
func (r *Runner) execute(ctx context.Context, conv Conversation, action ActionKind, dryRun bool) error {
	if dryRun {
		return nil
	}

	switch action {
	case ActionLeaveChannel:
		return r.client.LeaveChannel(ctx, conv.Peer)
	case ActionLeaveGroup:
		err := r.client.LeaveGroup(ctx, conv.Peer)
		var rpc *RPCError
		if errors.As(err, &rpc) {
			log.Warn().
				Str("dialog", conv.Label()).
				Str("type", rpc.Type).
				Msg("leave group rejected, falling back to dialog delete")
			return r.client.DeleteDialog(ctx, conv.Peer)
		}
		return err
	case ActionDeleteDialog:
		return r.client.DeleteDialog(ctx, conv.Peer)
	default:
		return r.client.DeleteHistory(ctx, conv.Peer, true)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
