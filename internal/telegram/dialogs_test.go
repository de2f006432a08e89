package telegram

import (
	"errors"
	"testing"

	"github.com/gotd/td/tg"

	"cleantg/internal/cleaner"
)

func TestNormalizeDialogsResponse(t *testing.T) {
	full := &tg.MessagesDialogs{Dialogs: []tg.DialogClass{&tg.Dialog{}}}
	got, err := normalizeDialogsResponse(full)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != full {
		t.Fatal("expected full response to pass through")
	}

	slice := &tg.MessagesDialogsSlice{
		Dialogs:  []tg.DialogClass{&tg.Dialog{TopMessage: 5}},
		Messages: []tg.MessageClass{&tg.Message{ID: 5}},
	}
	got, err = normalizeDialogsResponse(slice)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got.Dialogs) != 1 || len(got.Messages) != 1 {
		t.Fatalf("expected slice contents to carry over, got %+v", got)
	}

	_, err = normalizeDialogsResponse(&tg.MessagesDialogsNotModified{})
	if !errors.Is(err, errDialogsNotModified) {
		t.Fatalf("expected not-modified sentinel, got %v", err)
	}
}

func TestMessageDate(t *testing.T) {
	messages := []tg.MessageClass{
		&tg.Message{ID: 10, Date: 1700000000},
		&tg.MessageService{ID: 11, Date: 1700000100},
	}
	if got := messageDate(messages, 10); got != 1700000000 {
		t.Fatalf("expected message date, got %d", got)
	}
	if got := messageDate(messages, 11); got != 1700000100 {
		t.Fatalf("expected service message date, got %d", got)
	}
	if got := messageDate(messages, 99); got != 0 {
		t.Fatalf("expected zero for unknown message, got %d", got)
	}
	if got := messageDate(messages, 0); got != 0 {
		t.Fatalf("expected zero for empty top message, got %d", got)
	}
}

func TestEntryFromDialogUser(t *testing.T) {
	src := newDialogSource(nil)
	dlg := &tg.Dialog{Peer: &tg.PeerUser{UserID: 42}, TopMessage: 7}
	messages := []tg.MessageClass{&tg.Message{ID: 7, Date: 1700000000}}
	users := map[int64]*tg.User{
		42: {ID: 42, FirstName: "Alice", LastName: "Smith", AccessHash: 99},
	}

	entry, ok := src.entryFromDialog(dlg, messages, users, map[int64]*tg.Chat{}, map[int64]*tg.Channel{})
	if !ok {
		t.Fatal("expected dialog to normalize")
	}
	if entry.conv.Title != "Alice Smith" || !entry.conv.User || entry.conv.Bot {
		t.Fatalf("unexpected conversation: %+v", entry.conv)
	}
	if entry.conv.LastActivity.Unix() != 1700000000 {
		t.Fatalf("expected last activity from top message, got %v", entry.conv.LastActivity)
	}
	if entry.info.Type != "private" || entry.info.LastActivityUnix != 1700000000 {
		t.Fatalf("unexpected dialog info: %+v", entry.info)
	}
	peer, ok := entry.conv.Peer.(*tg.InputPeerUser)
	if !ok || peer.AccessHash != 99 {
		t.Fatalf("expected input peer with access hash, got %#v", entry.conv.Peer)
	}
}

func TestEntryFromDialogSavedMessages(t *testing.T) {
	src := newDialogSource(nil)
	dlg := &tg.Dialog{Peer: &tg.PeerUser{UserID: 1}}
	users := map[int64]*tg.User{1: {ID: 1, Self: true, FirstName: "Me"}}

	entry, ok := src.entryFromDialog(dlg, nil, users, map[int64]*tg.Chat{}, map[int64]*tg.Channel{})
	if !ok {
		t.Fatal("expected dialog to normalize")
	}
	if entry.conv.Title != "Saved Messages" {
		t.Fatalf("expected saved messages title, got %q", entry.conv.Title)
	}
	if !entry.conv.LastActivity.IsZero() {
		t.Fatal("expected missing top message to leave last activity unset")
	}
}

func TestEntryFromDialogBot(t *testing.T) {
	src := newDialogSource(nil)
	dlg := &tg.Dialog{Peer: &tg.PeerUser{UserID: 5}}
	users := map[int64]*tg.User{5: {ID: 5, Bot: true, Username: "helperbot"}}

	entry, ok := src.entryFromDialog(dlg, nil, users, map[int64]*tg.Chat{}, map[int64]*tg.Channel{})
	if !ok {
		t.Fatal("expected dialog to normalize")
	}
	if !entry.conv.Bot || entry.conv.User {
		t.Fatalf("expected bot flags, got %+v", entry.conv)
	}
	if cleaner.Classify(entry.conv) != cleaner.KindDirectPeer {
		t.Fatal("expected bot dialogs to classify as private")
	}
}

func TestEntryFromDialogLegacyGroup(t *testing.T) {
	src := newDialogSource(nil)
	dlg := &tg.Dialog{Peer: &tg.PeerChat{ChatID: 77}}
	chats := map[int64]*tg.Chat{77: {ID: 77, Title: "Old Crew", ParticipantsCount: 12, Creator: true}}

	entry, ok := src.entryFromDialog(dlg, nil, map[int64]*tg.User{}, chats, map[int64]*tg.Channel{})
	if !ok {
		t.Fatal("expected dialog to normalize")
	}
	if !entry.conv.BasicGroup || cleaner.Classify(entry.conv) != cleaner.KindLegacyGroup {
		t.Fatalf("expected legacy group, got %+v", entry.conv)
	}
	if entry.info.Type != "group" || entry.info.ParticipantsCount != 12 || !entry.info.Creator {
		t.Fatalf("unexpected dialog info: %+v", entry.info)
	}
}

func TestEntryFromDialogChannelAndMegagroup(t *testing.T) {
	src := newDialogSource(nil)
	channels := map[int64]*tg.Channel{
		100: {ID: 100, Title: "News", Username: "newsfeed", Broadcast: true, AccessHash: 7},
		200: {ID: 200, Title: "Community", Megagroup: true},
	}

	entry, ok := src.entryFromDialog(&tg.Dialog{Peer: &tg.PeerChannel{ChannelID: 100}}, nil, map[int64]*tg.User{}, map[int64]*tg.Chat{}, channels)
	if !ok {
		t.Fatal("expected broadcast channel to normalize")
	}
	if cleaner.Classify(entry.conv) != cleaner.KindChannel || entry.info.Type != "channel" {
		t.Fatalf("expected channel, got %+v / %+v", entry.conv, entry.info)
	}
	peer, ok := entry.conv.Peer.(*tg.InputPeerChannel)
	if !ok || peer.AccessHash != 7 {
		t.Fatalf("expected channel input peer with access hash, got %#v", entry.conv.Peer)
	}

	entry, ok = src.entryFromDialog(&tg.Dialog{Peer: &tg.PeerChannel{ChannelID: 200}}, nil, map[int64]*tg.User{}, map[int64]*tg.Chat{}, channels)
	if !ok {
		t.Fatal("expected megagroup to normalize")
	}
	if cleaner.Classify(entry.conv) != cleaner.KindChannel {
		t.Fatal("expected megagroup to classify as channel")
	}
	if entry.info.Type != "group" {
		t.Fatalf("expected megagroup report type group, got %q", entry.info.Type)
	}
}

func TestEntryFromDialogMissingEntity(t *testing.T) {
	src := newDialogSource(nil)
	_, ok := src.entryFromDialog(&tg.Dialog{Peer: &tg.PeerUser{UserID: 9}}, nil, map[int64]*tg.User{}, map[int64]*tg.Chat{}, map[int64]*tg.Channel{})
	if ok {
		t.Fatal("expected dialog without entity to be skipped")
	}
}

func TestIndexEntities(t *testing.T) {
	users, chats, channels := indexEntities(
		[]tg.UserClass{&tg.User{ID: 1}, &tg.UserEmpty{ID: 2}},
		[]tg.ChatClass{&tg.Chat{ID: 3}, &tg.Channel{ID: 4}, &tg.ChatEmpty{ID: 5}},
	)
	if len(users) != 1 || users[1] == nil {
		t.Fatalf("expected one indexed user, got %v", users)
	}
	if len(chats) != 1 || chats[3] == nil {
		t.Fatalf("expected one indexed chat, got %v", chats)
	}
	if len(channels) != 1 || channels[4] == nil {
		t.Fatalf("expected one indexed channel, got %v", channels)
	}
}

func TestFormatUserDisplay(t *testing.T) {
	if got := formatUserDisplay(&tg.User{FirstName: "Alice", LastName: "Smith"}); got != "Alice Smith" {
		t.Fatalf("expected full name, got %q", got)
	}
	if got := formatUserDisplay(&tg.User{Username: "alice"}); got != "@alice" {
		t.Fatalf("expected username fallback, got %q", got)
	}
	if got := formatUserDisplay(&tg.User{ID: 17}); got != "User 17" {
		t.Fatalf("expected ID fallback, got %q", got)
	}
	if got := formatUserDisplay(nil); got != "" {
		t.Fatalf("expected empty display for nil user, got %q", got)
	}
}
