package telegram

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	tdtelegram "github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/downloader"
	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"cleantg/internal/domain"
)

const (
	historyPageSize      = 100
	participantsPageSize = 200
	exportFloodRetries   = 5
)

// ExportOptions controls what Export fetches for a chat.
type ExportOptions struct {
	Messages     bool
	Participants bool
	// MaxMessages caps the history fetch; zero means everything.
	MaxMessages int
}

// Export fetches a chat's messages and/or participants for backup.
func (s *Service) Export(ctx context.Context, ref string, opts ExportOptions) (*domain.ChatExport, error) {
	var result *domain.ChatExport
	err := s.withAuthorizedClient(ctx, func(runCtx context.Context, client *tdtelegram.Client) error {
		api := client.API()
		entry, findErr := findDialog(runCtx, api, ref)
		if findErr != nil {
			return findErr
		}

		result = &domain.ChatExport{
			ChatID:       entry.conv.ID,
			Title:        entry.conv.Label(),
			ExportedUnix: time.Now().Unix(),
		}

		if opts.Messages {
			messages, msgErr := fetchHistory(runCtx, api, entry.conv.Peer, opts.MaxMessages)
			if msgErr != nil {
				return msgErr
			}
			result.Messages = messages
		}
		if opts.Participants {
			participants, partErr := fetchParticipants(runCtx, api, entry.conv.Peer)
			if partErr != nil {
				return partErr
			}
			result.Participants = participants
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// fetchHistory pages through a chat's history newest-first. Flood waits are
// honored in place; this path is independent of the cleanup retry engine.
func fetchHistory(ctx context.Context, api *tg.Client, peer tg.InputPeerClass, maxMessages int) ([]domain.Message, error) {
	var messages []domain.Message
	offsetID := 0
	floodRetries := 0

	for {
		limit := historyPageSize
		if maxMessages > 0 {
			remaining := maxMessages - len(messages)
			if remaining <= 0 {
				break
			}
			if remaining < limit {
				limit = remaining
			}
		}

		page, err := api.MessagesGetHistory(ctx, &tg.MessagesGetHistoryRequest{
			Peer:     peer,
			OffsetID: offsetID,
			Limit:    limit,
		})
		if err != nil {
			if wait, ok := tgerr.AsFloodWait(err); ok && floodRetries < exportFloodRetries {
				floodRetries++
				log.Warn().Dur("wait", wait).Int("attempt", floodRetries).Msg("rate limited while exporting history")
				if sleepErr := sleepFor(ctx, wait); sleepErr != nil {
					return messages, sleepErr
				}
				continue
			}
			return messages, fmt.Errorf("get history: %w", err)
		}
		floodRetries = 0

		modified, ok := page.AsModified()
		if !ok {
			break
		}
		pageMessages := modified.GetMessages()
		if len(pageMessages) == 0 {
			break
		}
		users, chats, channels := indexEntities(modified.GetUsers(), modified.GetChats())

		pageMinID := 0
		for _, msgClass := range pageMessages {
			msg, ok := msgClass.(*tg.Message)
			if !ok {
				continue
			}
			if msg.ID > 0 && (pageMinID == 0 || msg.ID < pageMinID) {
				pageMinID = msg.ID
			}
			messages = append(messages, exportedMessage(msg, users, chats, channels))
			if maxMessages > 0 && len(messages) >= maxMessages {
				return messages, nil
			}
		}

		if pageMinID <= 0 || pageMinID == offsetID || len(pageMessages) < limit {
			break
		}
		offsetID = pageMinID
	}
	return messages, nil
}

func exportedMessage(msg *tg.Message, users map[int64]*tg.User, chats map[int64]*tg.Chat, channels map[int64]*tg.Channel) domain.Message {
	senderID, senderDisplay := messageSender(msg, users, chats, channels)
	views, _ := msg.GetViews()
	forwards, _ := msg.GetForwards()
	return domain.Message{
		ID:            int64(msg.ID),
		Timestamp:     int64(msg.Date),
		SenderID:      senderID,
		SenderDisplay: senderDisplay,
		Text:          msg.Message,
		MediaType:     mediaType(msg),
		Views:         views,
		Forwards:      forwards,
		IsOutgoing:    msg.Out,
	}
}

func messageSender(msg *tg.Message, users map[int64]*tg.User, chats map[int64]*tg.Chat, channels map[int64]*tg.Channel) (int64, string) {
	if peer, ok := msg.GetFromID(); ok {
		switch from := peer.(type) {
		case *tg.PeerUser:
			if user, ok := users[from.UserID]; ok && user != nil {
				if user.Self {
					return from.UserID, "You"
				}
				return from.UserID, formatUserDisplay(user)
			}
			return from.UserID, fmt.Sprintf("User %d", from.UserID)
		case *tg.PeerChat:
			if chat, ok := chats[from.ChatID]; ok && chat != nil {
				return from.ChatID, chat.Title
			}
			return from.ChatID, fmt.Sprintf("Chat %d", from.ChatID)
		case *tg.PeerChannel:
			if channel, ok := channels[from.ChannelID]; ok && channel != nil {
				return from.ChannelID, channel.Title
			}
			return from.ChannelID, fmt.Sprintf("Channel %d", from.ChannelID)
		}
	}
	if msg.Out {
		return 0, "You"
	}
	if postAuthor, ok := msg.GetPostAuthor(); ok && strings.TrimSpace(postAuthor) != "" {
		return 0, postAuthor
	}
	return 0, ""
}

func mediaType(msg *tg.Message) string {
	switch media := msg.Media.(type) {
	case nil:
		return ""
	case *tg.MessageMediaPhoto:
		return "photo"
	case *tg.MessageMediaDocument:
		if doc, ok := media.GetDocument(); ok {
			if concrete, ok := doc.(*tg.Document); ok {
				return documentKind(concrete)
			}
		}
		return "document"
	case *tg.MessageMediaWebPage:
		return "webpage"
	case *tg.MessageMediaGeo, *tg.MessageMediaGeoLive, *tg.MessageMediaVenue:
		return "geo"
	case *tg.MessageMediaContact:
		return "contact"
	case *tg.MessageMediaPoll:
		return "poll"
	default:
		return "other"
	}
}

func fetchParticipants(ctx context.Context, api *tg.Client, peer tg.InputPeerClass) ([]domain.Participant, error) {
	switch p := peer.(type) {
	case *tg.InputPeerChannel:
		return fetchChannelParticipants(ctx, api, p)
	case *tg.InputPeerChat:
		return fetchChatParticipants(ctx, api, p.ChatID)
	default:
		return nil, nil
	}
}

func fetchChannelParticipants(ctx context.Context, api *tg.Client, peer *tg.InputPeerChannel) ([]domain.Participant, error) {
	var participants []domain.Participant
	offset := 0
	for {
		resp, err := api.ChannelsGetParticipants(ctx, &tg.ChannelsGetParticipantsRequest{
			Channel: &tg.InputChannel{
				ChannelID:  peer.ChannelID,
				AccessHash: peer.AccessHash,
			},
			Filter: &tg.ChannelParticipantsRecent{},
			Offset: offset,
			Limit:  participantsPageSize,
		})
		if err != nil {
			return participants, fmt.Errorf("get participants: %w", err)
		}
		page, ok := resp.AsModified()
		if !ok || len(page.Participants) == 0 {
			break
		}

		users, _, _ := indexEntities(page.Users, nil)
		for _, partClass := range page.Participants {
			userID, admin, creator := participantRole(partClass)
			if userID == 0 {
				continue
			}
			participants = append(participants, participantRow(userID, admin, creator, users))
		}

		offset += len(page.Participants)
		if len(page.Participants) < participantsPageSize {
			break
		}
	}
	return participants, nil
}

func participantRole(partClass tg.ChannelParticipantClass) (userID int64, admin, creator bool) {
	switch part := partClass.(type) {
	case *tg.ChannelParticipant:
		return part.UserID, false, false
	case *tg.ChannelParticipantSelf:
		return part.UserID, false, false
	case *tg.ChannelParticipantCreator:
		return part.UserID, true, true
	case *tg.ChannelParticipantAdmin:
		return part.UserID, true, false
	default:
		return 0, false, false
	}
}

func fetchChatParticipants(ctx context.Context, api *tg.Client, chatID int64) ([]domain.Participant, error) {
	full, err := api.MessagesGetFullChat(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("get full chat: %w", err)
	}
	chatFull, ok := full.FullChat.(*tg.ChatFull)
	if !ok {
		return nil, nil
	}
	chatParticipants, ok := chatFull.Participants.(*tg.ChatParticipants)
	if !ok {
		return nil, nil
	}

	users, _, _ := indexEntities(full.Users, nil)
	var participants []domain.Participant
	for _, partClass := range chatParticipants.Participants {
		var userID int64
		var admin, creator bool
		switch part := partClass.(type) {
		case *tg.ChatParticipant:
			userID = part.UserID
		case *tg.ChatParticipantCreator:
			userID, admin, creator = part.UserID, true, true
		case *tg.ChatParticipantAdmin:
			userID, admin = part.UserID, true
		default:
			continue
		}
		participants = append(participants, participantRow(userID, admin, creator, users))
	}
	return participants, nil
}

func participantRow(userID int64, admin, creator bool, users map[int64]*tg.User) domain.Participant {
	row := domain.Participant{
		ID:      userID,
		Admin:   admin,
		Creator: creator,
	}
	if user, ok := users[userID]; ok && user != nil {
		row.FirstName = user.FirstName
		row.LastName = user.LastName
		row.Username = user.Username
		row.Phone = user.Phone
		row.Bot = user.Bot
	}
	return row
}

// MediaOptions controls the media download pass of a chat backup.
type MediaOptions struct {
	// Types restricts downloads to the listed media types
	// (photo, video, document, audio, voice, sticker, gif); empty means all.
	Types []string
	// MaxMessages caps how much history is scanned for attachments.
	MaxMessages int
	// Concurrency bounds parallel downloads.
	Concurrency int
	OutputDir   string
}

// DownloadMedia scans a chat's history and downloads its attachments into
// OutputDir. Downloads run in parallel, bounded by Concurrency; this path
// never shares the cleanup action/retry machinery.
func (s *Service) DownloadMedia(ctx context.Context, ref string, opts MediaOptions) (domain.MediaStats, error) {
	stats := domain.MediaStats{ByType: map[string]int{}}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 5
	}
	if opts.OutputDir == "" {
		opts.OutputDir = "backups"
	}

	allowed := map[string]bool{}
	for _, mediaKind := range opts.Types {
		mediaKind = strings.ToLower(strings.TrimSpace(mediaKind))
		if mediaKind != "" {
			allowed[mediaKind] = true
		}
	}

	err := s.withAuthorizedClient(ctx, func(runCtx context.Context, client *tdtelegram.Client) error {
		api := client.API()
		entry, findErr := findDialog(runCtx, api, ref)
		if findErr != nil {
			return findErr
		}
		if mkErr := os.MkdirAll(opts.OutputDir, 0o755); mkErr != nil {
			return mkErr
		}

		targets, scanErr := collectMediaTargets(runCtx, api, entry.conv.Peer, opts.MaxMessages, allowed)
		if scanErr != nil {
			return scanErr
		}
		log.Info().Int("files", len(targets)).Str("chat", entry.conv.Label()).Msg("downloading media")

		group, groupCtx := errgroup.WithContext(runCtx)
		group.SetLimit(opts.Concurrency)
		results := make([]error, len(targets))
		for i, target := range targets {
			group.Go(func() error {
				results[i] = downloadOne(groupCtx, api, target, opts.OutputDir)
				if results[i] != nil {
					log.Warn().Err(results[i]).Str("file", target.fileName).Msg("media download failed")
				}
				return nil
			})
		}
		if waitErr := group.Wait(); waitErr != nil {
			return waitErr
		}

		for i, target := range targets {
			if results[i] != nil {
				stats.Failed++
				continue
			}
			stats.Total++
			stats.ByType[target.mediaKind]++
		}
		return nil
	})
	return stats, err
}

type mediaTarget struct {
	msgID     int
	mediaKind string
	fileName  string
	location  tg.InputFileLocationClass
}

func collectMediaTargets(ctx context.Context, api *tg.Client, peer tg.InputPeerClass, maxMessages int, allowed map[string]bool) ([]mediaTarget, error) {
	var targets []mediaTarget
	offsetID := 0
	scanned := 0

	for {
		limit := historyPageSize
		if maxMessages > 0 {
			remaining := maxMessages - scanned
			if remaining <= 0 {
				break
			}
			if remaining < limit {
				limit = remaining
			}
		}

		page, err := api.MessagesGetHistory(ctx, &tg.MessagesGetHistoryRequest{
			Peer:     peer,
			OffsetID: offsetID,
			Limit:    limit,
		})
		if err != nil {
			if wait, ok := tgerr.AsFloodWait(err); ok {
				if sleepErr := sleepFor(ctx, wait); sleepErr != nil {
					return targets, sleepErr
				}
				continue
			}
			return targets, fmt.Errorf("scan history: %w", err)
		}
		modified, ok := page.AsModified()
		if !ok {
			break
		}
		pageMessages := modified.GetMessages()
		if len(pageMessages) == 0 {
			break
		}

		pageMinID := 0
		for _, msgClass := range pageMessages {
			msg, ok := msgClass.(*tg.Message)
			if !ok {
				continue
			}
			scanned++
			if msg.ID > 0 && (pageMinID == 0 || msg.ID < pageMinID) {
				pageMinID = msg.ID
			}
			target, ok := mediaTargetFromMessage(msg)
			if !ok {
				continue
			}
			if len(allowed) > 0 && !allowed[target.mediaKind] {
				continue
			}
			targets = append(targets, target)
		}

		if pageMinID <= 0 || pageMinID == offsetID || len(pageMessages) < limit {
			break
		}
		offsetID = pageMinID
	}
	return targets, nil
}

func mediaTargetFromMessage(msg *tg.Message) (mediaTarget, bool) {
	if msg == nil || msg.Media == nil {
		return mediaTarget{}, false
	}

	switch media := msg.Media.(type) {
	case *tg.MessageMediaPhoto:
		photoClass, ok := media.GetPhoto()
		if !ok {
			return mediaTarget{}, false
		}
		photo, ok := photoClass.(*tg.Photo)
		if !ok {
			return mediaTarget{}, false
		}
		thumbType := largestPhotoSize(photo.Sizes)
		if thumbType == "" {
			return mediaTarget{}, false
		}
		return mediaTarget{
			msgID:     msg.ID,
			mediaKind: "photo",
			fileName:  fmt.Sprintf("%d_photo.jpg", msg.ID),
			location: &tg.InputPhotoFileLocation{
				ID:            photo.ID,
				AccessHash:    photo.AccessHash,
				FileReference: photo.FileReference,
				ThumbSize:     thumbType,
			},
		}, true

	case *tg.MessageMediaDocument:
		docClass, ok := media.GetDocument()
		if !ok {
			return mediaTarget{}, false
		}
		doc, ok := docClass.(*tg.Document)
		if !ok {
			return mediaTarget{}, false
		}
		kind := documentKind(doc)
		name := documentFilename(doc.Attributes)
		if name == "" {
			name = fmt.Sprintf("%s%s", kind, extensionForMime(doc.MimeType))
		}
		return mediaTarget{
			msgID:     msg.ID,
			mediaKind: kind,
			fileName:  fmt.Sprintf("%d_%s", msg.ID, sanitizeFilename(name)),
			location: &tg.InputDocumentFileLocation{
				ID:            doc.ID,
				AccessHash:    doc.AccessHash,
				FileReference: doc.FileReference,
			},
		}, true
	}
	return mediaTarget{}, false
}

func largestPhotoSize(sizes []tg.PhotoSizeClass) string {
	best := ""
	bestBytes := -1
	for _, sizeClass := range sizes {
		switch size := sizeClass.(type) {
		case *tg.PhotoSize:
			if size.Size > bestBytes {
				best = size.Type
				bestBytes = size.Size
			}
		case *tg.PhotoSizeProgressive:
			total := 0
			for _, n := range size.Sizes {
				if n > total {
					total = n
				}
			}
			if total > bestBytes {
				best = size.Type
				bestBytes = total
			}
		}
	}
	return best
}

func documentKind(doc *tg.Document) string {
	isVideo := false
	for _, attrClass := range doc.Attributes {
		switch attr := attrClass.(type) {
		case *tg.DocumentAttributeSticker:
			return "sticker"
		case *tg.DocumentAttributeAnimated:
			return "gif"
		case *tg.DocumentAttributeAudio:
			if attr.Voice {
				return "voice"
			}
			return "audio"
		case *tg.DocumentAttributeVideo:
			isVideo = true
		}
	}
	if isVideo {
		return "video"
	}
	return "document"
}

func documentFilename(attrs []tg.DocumentAttributeClass) string {
	for _, attrClass := range attrs {
		if named, ok := attrClass.(*tg.DocumentAttributeFilename); ok && named != nil {
			return named.FileName
		}
	}
	return ""
}

func extensionForMime(mime string) string {
	switch strings.ToLower(strings.TrimSpace(mime)) {
	case "video/mp4":
		return ".mp4"
	case "audio/ogg":
		return ".ogg"
	case "audio/mpeg":
		return ".mp3"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	case "application/pdf":
		return ".pdf"
	default:
		return ".bin"
	}
}

func sanitizeFilename(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.', r == '-', r == '_', r == ' ':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return strings.TrimSpace(b.String())
}

func downloadOne(ctx context.Context, api *tg.Client, target mediaTarget, outputDir string) error {
	path := filepath.Join(outputDir, target.fileName)
	d := downloader.NewDownloader()
	_, err := d.Download(api, target.location).ToPath(ctx, path)
	return err
}

func sleepFor(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
