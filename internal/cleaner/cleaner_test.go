package cleaner

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/gotd/td/tg"
)

type call struct {
	op     string
	id     int64
	revoke bool
}

type fakeClient struct {
	calls            []call
	deleteHistoryErr error
	leaveChannelErr  error
	leaveGroupErr    error
	deleteDialogErr  error
}

func peerID(peer tg.InputPeerClass) int64 {
	switch p := peer.(type) {
	case *tg.InputPeerUser:
		return p.UserID
	case *tg.InputPeerChat:
		return p.ChatID
	case *tg.InputPeerChannel:
		return p.ChannelID
	default:
		return 0
	}
}

func (f *fakeClient) DeleteHistory(_ context.Context, peer tg.InputPeerClass, revoke bool) error {
	f.calls = append(f.calls, call{op: "deleteHistory", id: peerID(peer), revoke: revoke})
	return f.deleteHistoryErr
}

func (f *fakeClient) LeaveChannel(_ context.Context, peer tg.InputPeerClass) error {
	f.calls = append(f.calls, call{op: "leaveChannel", id: peerID(peer)})
	return f.leaveChannelErr
}

func (f *fakeClient) LeaveGroup(_ context.Context, peer tg.InputPeerClass) error {
	f.calls = append(f.calls, call{op: "leaveGroup", id: peerID(peer)})
	return f.leaveGroupErr
}

func (f *fakeClient) DeleteDialog(_ context.Context, peer tg.InputPeerClass) error {
	f.calls = append(f.calls, call{op: "deleteDialog", id: peerID(peer)})
	return f.deleteDialogErr
}

type sliceSource struct {
	items  []Conversation
	pos    int
	cur    Conversation
	pulled int
}

func (s *sliceSource) Next(_ context.Context) bool {
	if s.pos >= len(s.items) {
		return false
	}
	s.cur = s.items[s.pos]
	s.pos++
	s.pulled++
	return true
}

func (s *sliceSource) Conversation() Conversation { return s.cur }

func (s *sliceSource) Err() error { return nil }

func newTestRunner(client Client) (*Runner, *[]time.Duration) {
	r := NewRunner(client)
	waits := &[]time.Duration{}
	r.sleep = func(_ context.Context, d time.Duration) error {
		*waits = append(*waits, d)
		return nil
	}
	return r, waits
}

func channelConv(id int64) Conversation {
	return Conversation{
		ID:        id,
		Title:     fmt.Sprintf("Channel %d", id),
		Broadcast: true,
		Peer:      &tg.InputPeerChannel{ChannelID: id},
	}
}

func groupConv(id int64) Conversation {
	return Conversation{
		ID:         id,
		Title:      fmt.Sprintf("Group %d", id),
		BasicGroup: true,
		Peer:       &tg.InputPeerChat{ChatID: id},
	}
}

func userConv(id int64) Conversation {
	return Conversation{
		ID:    id,
		Title: fmt.Sprintf("User %d", id),
		User:  true,
		Peer:  &tg.InputPeerUser{UserID: id},
	}
}

func TestRunActionsPerKind(t *testing.T) {
	client := &fakeClient{}
	runner, _ := newTestRunner(client)
	src := &sliceSource{items: []Conversation{channelConv(1), groupConv(2), userConv(3)}}

	out, err := runner.Run(context.Background(), src, Options{})
	if err != nil {
		t.Fatalf("unexpected run error: %v", err)
	}
	if out.Processed != 3 || out.Skipped != 0 {
		t.Fatalf("expected processed=3, skipped=0, got %+v", out)
	}

	want := []call{
		{op: "leaveChannel", id: 1},
		{op: "leaveGroup", id: 2},
		{op: "deleteHistory", id: 3, revoke: true},
	}
	if len(client.calls) != len(want) {
		t.Fatalf("expected %d calls, got %d: %+v", len(want), len(client.calls), client.calls)
	}
	for i, w := range want {
		if client.calls[i] != w {
			t.Fatalf("call %d: expected %+v, got %+v", i, w, client.calls[i])
		}
	}
}

func TestRunDryRunIssuesNoCalls(t *testing.T) {
	client := &fakeClient{
		// Would trigger the legacy-group fallback if any call got through.
		leaveGroupErr: &RPCError{Code: 400, Type: "USER_NOT_PARTICIPANT"},
	}
	runner, _ := newTestRunner(client)
	unknown := Conversation{ID: 4, Peer: &tg.InputPeerUser{UserID: 4}}
	src := &sliceSource{items: []Conversation{channelConv(1), groupConv(2), userConv(3), unknown}}

	out, err := runner.Run(context.Background(), src, Options{DryRun: true})
	if err != nil {
		t.Fatalf("unexpected run error: %v", err)
	}
	if out.Processed != 4 {
		t.Fatalf("expected 4 processed, got %d", out.Processed)
	}
	if len(client.calls) != 0 {
		t.Fatalf("expected zero client calls in dry run, got %+v", client.calls)
	}
}

func TestRunLimitCountsProcessedNotInspected(t *testing.T) {
	items := make([]Conversation, 0, 10)
	exclude := []string{}
	for i := int64(1); i <= 10; i++ {
		conv := channelConv(i)
		// 4 whitelisted dialogs interleaved among the first seven; the
		// third processed dialog is number 7, so the limit stops the
		// pull right there.
		if i == 2 || i == 4 || i == 5 || i == 6 {
			exclude = append(exclude, conv.Title)
		}
		items = append(items, conv)
	}
	client := &fakeClient{}
	runner, _ := newTestRunner(client)
	src := &sliceSource{items: items}

	out, err := runner.Run(context.Background(), src, Options{
		Filter: Filter{Exclude: exclude},
		Limit:  3,
	})
	if err != nil {
		t.Fatalf("unexpected run error: %v", err)
	}
	if out.Processed != 3 {
		t.Fatalf("expected processed=3, got %d", out.Processed)
	}
	if out.Skipped != 4 {
		t.Fatalf("expected skipped=4, got %d", out.Skipped)
	}
	if src.pulled != 7 {
		t.Fatalf("expected exactly 7 dialogs pulled from the source, got %d", src.pulled)
	}
	if out.Processed+out.Skipped != src.pulled {
		t.Fatalf("accounting broken: %d processed + %d skipped != %d pulled",
			out.Processed, out.Skipped, src.pulled)
	}
}

func TestRunRetryBoundOnFloodWait(t *testing.T) {
	client := &fakeClient{leaveChannelErr: &FloodWaitError{Wait: 7 * time.Second}}
	runner, _ := newTestRunner(client)
	src := &sliceSource{items: []Conversation{channelConv(1)}}

	type waitEvent struct {
		label    string
		wait     time.Duration
		attempt  int
		maxTries int
	}
	var events []waitEvent
	out, err := runner.Run(context.Background(), src, Options{
		OnFloodWait: func(label string, wait time.Duration, attempt, maxAttempts int) {
			events = append(events, waitEvent{label, wait, attempt, maxAttempts})
		},
	})
	if err != nil {
		t.Fatalf("unexpected run error: %v", err)
	}
	if out.Processed != 1 {
		t.Fatalf("expected abandoned dialog to count as processed, got %+v", out)
	}
	if len(client.calls) != MaxAttempts {
		t.Fatalf("expected exactly %d attempts, got %d", MaxAttempts, len(client.calls))
	}
	if len(events) != MaxAttempts {
		t.Fatalf("expected %d flood-wait callbacks, got %d", MaxAttempts, len(events))
	}
	for i, ev := range events {
		if ev.attempt != i+1 {
			t.Fatalf("callback %d: expected attempt=%d, got %d", i, i+1, ev.attempt)
		}
		if ev.maxTries != MaxAttempts {
			t.Fatalf("callback %d: expected maxAttempts=%d, got %d", i, MaxAttempts, ev.maxTries)
		}
		if ev.label != "Channel 1" {
			t.Fatalf("callback %d: unexpected label %q", i, ev.label)
		}
		if ev.wait != 7*time.Second {
			t.Fatalf("callback %d: expected wait=7s, got %s", i, ev.wait)
		}
	}
}

func TestRunFloodWaitMinimumClamp(t *testing.T) {
	client := &fakeClient{deleteHistoryErr: &FloodWaitError{Wait: 0}}
	runner, waits := newTestRunner(client)
	src := &sliceSource{items: []Conversation{userConv(9)}}

	var observed []time.Duration
	_, err := runner.Run(context.Background(), src, Options{
		OnFloodWait: func(_ string, wait time.Duration, _, _ int) {
			observed = append(observed, wait)
		},
	})
	if err != nil {
		t.Fatalf("unexpected run error: %v", err)
	}
	if len(observed) == 0 {
		t.Fatal("expected at least one flood-wait callback")
	}
	for i, w := range observed {
		if w < minFloodWait {
			t.Fatalf("callback %d: wait %s below minimum %s", i, w, minFloodWait)
		}
	}
	for i, w := range *waits {
		if w < minFloodWait {
			t.Fatalf("sleep %d: wait %s below minimum %s", i, w, minFloodWait)
		}
	}
}

func TestRunPermanentErrorNoRetry(t *testing.T) {
	client := &fakeClient{leaveChannelErr: &RPCError{Code: 403, Type: "CHANNEL_PRIVATE"}}
	runner, _ := newTestRunner(client)
	src := &sliceSource{items: []Conversation{channelConv(1), userConv(2)}}

	callbacks := 0
	out, err := runner.Run(context.Background(), src, Options{
		OnFloodWait: func(string, time.Duration, int, int) { callbacks++ },
	})
	if err != nil {
		t.Fatalf("unexpected run error: %v", err)
	}
	if callbacks != 0 {
		t.Fatalf("expected no flood-wait callbacks, got %d", callbacks)
	}
	if out.Processed != 2 {
		t.Fatalf("expected the loop to continue past the failure, got %+v", out)
	}

	leaveAttempts := 0
	for _, c := range client.calls {
		if c.op == "leaveChannel" {
			leaveAttempts++
		}
	}
	if leaveAttempts != 1 {
		t.Fatalf("expected exactly one leaveChannel attempt, got %d", leaveAttempts)
	}
	last := client.calls[len(client.calls)-1]
	if last.op != "deleteHistory" || last.id != 2 {
		t.Fatalf("expected the next dialog to be processed, last call %+v", last)
	}
}

func TestRunUnexpectedErrorAbandons(t *testing.T) {
	client := &fakeClient{deleteHistoryErr: errors.New("connection reset")}
	runner, _ := newTestRunner(client)
	src := &sliceSource{items: []Conversation{userConv(1), userConv(2)}}

	out, err := runner.Run(context.Background(), src, Options{})
	if err != nil {
		t.Fatalf("unexpected run error: %v", err)
	}
	if out.Processed != 2 || out.Skipped != 0 {
		t.Fatalf("expected both dialogs counted as processed, got %+v", out)
	}
	if len(client.calls) != 2 {
		t.Fatalf("expected one attempt per dialog, got %+v", client.calls)
	}
}

func TestRunLegacyGroupFallback(t *testing.T) {
	client := &fakeClient{leaveGroupErr: &RPCError{Code: 400, Type: "USER_NOT_PARTICIPANT"}}
	runner, _ := newTestRunner(client)
	src := &sliceSource{items: []Conversation{groupConv(2)}}

	callbacks := 0
	out, err := runner.Run(context.Background(), src, Options{
		OnFloodWait: func(string, time.Duration, int, int) { callbacks++ },
	})
	if err != nil {
		t.Fatalf("unexpected run error: %v", err)
	}
	if out.Processed != 1 {
		t.Fatalf("expected the dialog to count as processed, got %+v", out)
	}
	if callbacks != 0 {
		t.Fatalf("expected no retry loop, got %d flood-wait callbacks", callbacks)
	}

	want := []call{
		{op: "leaveGroup", id: 2},
		{op: "deleteDialog", id: 2},
	}
	if len(client.calls) != len(want) {
		t.Fatalf("expected %d calls, got %+v", len(want), client.calls)
	}
	for i, w := range want {
		if client.calls[i] != w {
			t.Fatalf("call %d: expected %+v, got %+v", i, w, client.calls[i])
		}
	}
}

func TestRunFallbackFloodWaitRetriesWholeAttempt(t *testing.T) {
	client := &fakeClient{
		leaveGroupErr:   &RPCError{Code: 400, Type: "PEER_ID_INVALID"},
		deleteDialogErr: &FloodWaitError{Wait: 6 * time.Second},
	}
	runner, _ := newTestRunner(client)
	src := &sliceSource{items: []Conversation{groupConv(3)}}

	out, err := runner.Run(context.Background(), src, Options{})
	if err != nil {
		t.Fatalf("unexpected run error: %v", err)
	}
	if out.Processed != 1 {
		t.Fatalf("expected processed=1, got %+v", out)
	}
	// Each retry replays the primary action, which again triggers the
	// fallback; MaxAttempts rounds of both calls in total.
	leave, del := 0, 0
	for _, c := range client.calls {
		switch c.op {
		case "leaveGroup":
			leave++
		case "deleteDialog":
			del++
		}
	}
	if leave != MaxAttempts || del != MaxAttempts {
		t.Fatalf("expected %d leaveGroup and deleteDialog calls, got %d and %d",
			MaxAttempts, leave, del)
	}
}

func TestRunProcessedPlusSkippedEqualsPulled(t *testing.T) {
	client := &fakeClient{leaveChannelErr: &RPCError{Code: 403, Type: "CHAT_ADMIN_REQUIRED"}}
	runner, _ := newTestRunner(client)
	src := &sliceSource{items: []Conversation{
		channelConv(1),
		userConv(2),
		groupConv(3),
		channelConv(4),
	}}

	out, err := runner.Run(context.Background(), src, Options{
		Filter: Filter{Exclude: []string{"2"}},
	})
	if err != nil {
		t.Fatalf("unexpected run error: %v", err)
	}
	if out.Processed+out.Skipped != src.pulled {
		t.Fatalf("accounting broken: %d processed + %d skipped != %d pulled",
			out.Processed, out.Skipped, src.pulled)
	}
	if out.Skipped != 1 {
		t.Fatalf("expected skipped=1, got %d", out.Skipped)
	}
}
