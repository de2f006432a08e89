package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	tdtelegram "github.com/gotd/td/telegram"
	"github.com/gotd/td/tg"

	"cleantg/internal/cleaner"
	"cleantg/internal/domain"
)

const dialogPageSize = 100

var errDialogsNotModified = errors.New("dialogs not modified")

// dialogSource walks the account's dialog list page by page and yields
// normalized conversations lazily: dialogs past the point where a run stops
// are never requested. It implements cleaner.Source.
type dialogSource struct {
	api *tg.Client

	buf []dialogEntry
	pos int
	cur dialogEntry

	offsetDate int
	offsetID   int
	offsetPeer tg.InputPeerClass

	userHashes    map[int64]int64
	channelHashes map[int64]int64

	done bool
	err  error
}

type dialogEntry struct {
	conv cleaner.Conversation
	info domain.DialogInfo
}

func newDialogSource(api *tg.Client) *dialogSource {
	return &dialogSource{
		api:           api,
		offsetPeer:    &tg.InputPeerEmpty{},
		userHashes:    map[int64]int64{},
		channelHashes: map[int64]int64{},
	}
}

func (s *dialogSource) Next(ctx context.Context) bool {
	for {
		if s.pos < len(s.buf) {
			s.cur = s.buf[s.pos]
			s.pos++
			return true
		}
		if s.done || s.err != nil {
			return false
		}
		if err := s.fetchPage(ctx); err != nil {
			s.err = err
			return false
		}
	}
}

func (s *dialogSource) Conversation() cleaner.Conversation { return s.cur.conv }

func (s *dialogSource) Info() domain.DialogInfo { return s.cur.info }

func (s *dialogSource) Err() error { return s.err }

func (s *dialogSource) fetchPage(ctx context.Context) error {
	resp, err := s.api.MessagesGetDialogs(ctx, &tg.MessagesGetDialogsRequest{
		OffsetDate: s.offsetDate,
		OffsetID:   s.offsetID,
		OffsetPeer: s.offsetPeer,
		Limit:      dialogPageSize,
	})
	if err != nil {
		return fmt.Errorf("get dialogs: %w", err)
	}

	batch, err := normalizeDialogsResponse(resp)
	if err != nil {
		if errors.Is(err, errDialogsNotModified) {
			s.done = true
			return nil
		}
		return err
	}
	if len(batch.Dialogs) == 0 {
		s.done = true
		return nil
	}

	s.recordAccessHashes(batch)

	users, chats, channels := indexEntities(batch.Users, batch.Chats)
	s.buf = s.buf[:0]
	s.pos = 0
	for _, dialogClass := range batch.Dialogs {
		dlg, ok := dialogClass.(*tg.Dialog)
		if !ok {
			continue
		}
		entry, ok := s.entryFromDialog(dlg, batch.Messages, users, chats, channels)
		if !ok {
			continue
		}
		s.buf = append(s.buf, entry)
	}

	s.advanceOffsets(batch)
	if len(batch.Dialogs) < dialogPageSize {
		s.done = true
	}
	return nil
}

func (s *dialogSource) recordAccessHashes(batch *tg.MessagesDialogs) {
	for _, entity := range batch.Users {
		if user, ok := entity.(*tg.User); ok {
			s.userHashes[user.ID] = user.AccessHash
		}
	}
	for _, entity := range batch.Chats {
		if channel, ok := entity.(*tg.Channel); ok {
			s.channelHashes[channel.ID] = channel.AccessHash
		}
	}
}

func (s *dialogSource) advanceOffsets(batch *tg.MessagesDialogs) {
	last := batch.Dialogs[len(batch.Dialogs)-1]
	prevDate, prevID := s.offsetDate, s.offsetID

	var peer tg.PeerClass
	switch dlg := last.(type) {
	case *tg.Dialog:
		s.offsetID = dlg.TopMessage
		s.offsetDate = messageDate(batch.Messages, dlg.TopMessage)
		peer = dlg.Peer
	case *tg.DialogFolder:
		s.offsetID = dlg.TopMessage
		s.offsetDate = messageDate(batch.Messages, dlg.TopMessage)
		peer = dlg.Peer
	}

	if peer != nil {
		s.offsetPeer = s.inputPeerFor(peer)
	} else {
		s.offsetPeer = &tg.InputPeerEmpty{}
	}
	if s.offsetDate == 0 {
		s.offsetDate = prevDate
	}
	if s.offsetID == 0 {
		s.offsetID = prevID
	}
}

func (s *dialogSource) inputPeerFor(peer tg.PeerClass) tg.InputPeerClass {
	switch p := peer.(type) {
	case *tg.PeerUser:
		return &tg.InputPeerUser{UserID: p.UserID, AccessHash: s.userHashes[p.UserID]}
	case *tg.PeerChat:
		return &tg.InputPeerChat{ChatID: p.ChatID}
	case *tg.PeerChannel:
		return &tg.InputPeerChannel{ChannelID: p.ChannelID, AccessHash: s.channelHashes[p.ChannelID]}
	default:
		return &tg.InputPeerEmpty{}
	}
}

func (s *dialogSource) entryFromDialog(
	dlg *tg.Dialog,
	messages []tg.MessageClass,
	users map[int64]*tg.User,
	chats map[int64]*tg.Chat,
	channels map[int64]*tg.Channel,
) (dialogEntry, bool) {
	var entry dialogEntry

	lastDate := messageDate(messages, dlg.TopMessage)
	var lastActivity time.Time
	if lastDate > 0 {
		lastActivity = time.Unix(int64(lastDate), 0)
	}

	switch peer := dlg.Peer.(type) {
	case *tg.PeerUser:
		user, ok := users[peer.UserID]
		if !ok {
			return entry, false
		}
		entry.conv = cleaner.Conversation{
			ID:           user.ID,
			Title:        formatUserDisplay(user),
			Username:     user.Username,
			User:         !user.Bot,
			Bot:          user.Bot,
			LastActivity: lastActivity,
			Peer:         &tg.InputPeerUser{UserID: user.ID, AccessHash: user.AccessHash},
		}
		if user.Self {
			entry.conv.Title = "Saved Messages"
		}
		entry.info = domain.DialogInfo{
			ID:       user.ID,
			Title:    entry.conv.Title,
			Type:     "private",
			Username: user.Username,
		}

	case *tg.PeerChat:
		chat, ok := chats[peer.ChatID]
		if !ok {
			return entry, false
		}
		entry.conv = cleaner.Conversation{
			ID:           chat.ID,
			Title:        chat.Title,
			BasicGroup:   true,
			LastActivity: lastActivity,
			Peer:         &tg.InputPeerChat{ChatID: chat.ID},
		}
		entry.info = domain.DialogInfo{
			ID:                chat.ID,
			Title:             chat.Title,
			Type:              "group",
			ParticipantsCount: chat.ParticipantsCount,
			Creator:           chat.Creator,
		}

	case *tg.PeerChannel:
		channel, ok := channels[peer.ChannelID]
		if !ok {
			return entry, false
		}
		entry.conv = cleaner.Conversation{
			ID:           channel.ID,
			Title:        channel.Title,
			Username:     channel.Username,
			Broadcast:    channel.Broadcast,
			Megagroup:    channel.Megagroup,
			Gigagroup:    channel.Gigagroup,
			LastActivity: lastActivity,
			Peer:         &tg.InputPeerChannel{ChannelID: channel.ID, AccessHash: channel.AccessHash},
		}
		dialogType := "channel"
		if channel.Megagroup {
			dialogType = "group"
		}
		participants, _ := channel.GetParticipantsCount()
		_, hasAdmin := channel.GetAdminRights()
		entry.info = domain.DialogInfo{
			ID:                channel.ID,
			Title:             channel.Title,
			Type:              dialogType,
			Username:          channel.Username,
			ParticipantsCount: participants,
			Megagroup:         channel.Megagroup,
			Broadcast:         channel.Broadcast,
			Creator:           channel.Creator,
			AdminRights:       hasAdmin,
		}

	default:
		return entry, false
	}

	if !lastActivity.IsZero() {
		entry.info.LastActivityUnix = lastActivity.Unix()
	}
	return entry, true
}

func normalizeDialogsResponse(resp tg.MessagesDialogsClass) (*tg.MessagesDialogs, error) {
	switch data := resp.(type) {
	case *tg.MessagesDialogs:
		return data, nil
	case *tg.MessagesDialogsSlice:
		return &tg.MessagesDialogs{
			Dialogs:  data.Dialogs,
			Messages: data.Messages,
			Chats:    data.Chats,
			Users:    data.Users,
		}, nil
	case *tg.MessagesDialogsNotModified:
		return nil, errDialogsNotModified
	default:
		return nil, fmt.Errorf("unexpected dialogs response: %T", resp)
	}
}

func indexEntities(userClasses []tg.UserClass, chatClasses []tg.ChatClass) (map[int64]*tg.User, map[int64]*tg.Chat, map[int64]*tg.Channel) {
	users := make(map[int64]*tg.User, len(userClasses))
	chats := map[int64]*tg.Chat{}
	channels := map[int64]*tg.Channel{}
	for _, userClass := range userClasses {
		if user, ok := userClass.(*tg.User); ok && user != nil {
			users[user.ID] = user
		}
	}
	for _, chatClass := range chatClasses {
		switch entry := chatClass.(type) {
		case *tg.Chat:
			if entry != nil {
				chats[entry.ID] = entry
			}
		case *tg.Channel:
			if entry != nil {
				channels[entry.ID] = entry
			}
		}
	}
	return users, chats, channels
}

func messageDate(messages []tg.MessageClass, id int) int {
	if id <= 0 {
		return 0
	}
	for _, msgClass := range messages {
		switch msg := msgClass.(type) {
		case *tg.Message:
			if msg.ID == id {
				return msg.Date
			}
		case *tg.MessageService:
			if msg.ID == id {
				return msg.Date
			}
		}
	}
	return 0
}

// Clean runs the dialog cleanup over the live dialog list.
func (s *Service) Clean(ctx context.Context, opts cleaner.Options) (cleaner.Outcome, error) {
	var out cleaner.Outcome
	err := s.withAuthorizedClient(ctx, func(runCtx context.Context, client *tdtelegram.Client) error {
		runner := cleaner.NewRunner(&actionClient{api: client.API()})
		var runErr error
		out, runErr = runner.Run(runCtx, newDialogSource(client.API()), opts)
		return runErr
	})
	return out, err
}

// ListDialogs collects report rows for every dialog on the account.
func (s *Service) ListDialogs(ctx context.Context) ([]domain.DialogInfo, error) {
	var infos []domain.DialogInfo
	err := s.withAuthorizedClient(ctx, func(runCtx context.Context, client *tdtelegram.Client) error {
		src := newDialogSource(client.API())
		for src.Next(runCtx) {
			infos = append(infos, src.Info())
		}
		return src.Err()
	})
	if err != nil {
		return nil, err
	}
	return infos, nil
}

// Contacts returns the account's contact list for the contacts report.
func (s *Service) Contacts(ctx context.Context) ([]domain.ContactInfo, error) {
	var contacts []domain.ContactInfo
	err := s.withAuthorizedClient(ctx, func(runCtx context.Context, client *tdtelegram.Client) error {
		resp, listErr := client.API().ContactsGetContacts(runCtx, 0)
		if listErr != nil {
			return listErr
		}
		full, ok := resp.(*tg.ContactsContacts)
		if !ok {
			return nil
		}
		for _, userClass := range full.Users {
			user, ok := userClass.(*tg.User)
			if !ok || user == nil {
				continue
			}
			contacts = append(contacts, domain.ContactInfo{
				ID:        user.ID,
				FirstName: user.FirstName,
				LastName:  user.LastName,
				Username:  user.Username,
				Phone:     user.Phone,
				Bot:       user.Bot,
				Verified:  user.Verified,
				Premium:   user.Premium,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return contacts, nil
}

// findDialog resolves a chat reference (numeric ID, @username or exact
// title) against the dialog list.
func findDialog(ctx context.Context, api *tg.Client, ref string) (dialogEntry, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return dialogEntry{}, errors.New("chat reference is required")
	}
	id, idErr := strconv.ParseInt(ref, 10, 64)
	username := strings.TrimPrefix(ref, "@")

	src := newDialogSource(api)
	for src.Next(ctx) {
		entry := src.cur
		if idErr == nil && entry.conv.ID == id {
			return entry, nil
		}
		if entry.conv.Username != "" && entry.conv.Username == username {
			return entry, nil
		}
		if entry.conv.Title == ref {
			return entry, nil
		}
	}
	if err := src.Err(); err != nil {
		return dialogEntry{}, err
	}
	return dialogEntry{}, fmt.Errorf("chat %q not found in dialogs", ref)
}
