package telegram

import (
	"context"
	"fmt"

	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"

	"cleantg/internal/cleaner"
)

// actionClient adapts raw tg.Client calls to the cleaner.Client surface.
// RPC failures are translated into the cleaner error taxonomy so the retry
// controller can switch on typed values instead of probing tgerr itself.
type actionClient struct {
	api *tg.Client
}

var _ cleaner.Client = (*actionClient)(nil)

func (c *actionClient) DeleteHistory(ctx context.Context, peer tg.InputPeerClass, revoke bool) error {
	_, err := c.api.MessagesDeleteHistory(ctx, &tg.MessagesDeleteHistoryRequest{
		Peer:   peer,
		Revoke: revoke,
		MaxID:  0,
	})
	return wrapRPCError(err)
}

func (c *actionClient) LeaveChannel(ctx context.Context, peer tg.InputPeerClass) error {
	channel, ok := peer.(*tg.InputPeerChannel)
	if !ok {
		return fmt.Errorf("leave channel: unexpected peer type %T", peer)
	}
	_, err := c.api.ChannelsLeaveChannel(ctx, &tg.InputChannel{
		ChannelID:  channel.ChannelID,
		AccessHash: channel.AccessHash,
	})
	return wrapRPCError(err)
}

func (c *actionClient) LeaveGroup(ctx context.Context, peer tg.InputPeerClass) error {
	chat, ok := peer.(*tg.InputPeerChat)
	if !ok {
		return fmt.Errorf("leave group: unexpected peer type %T", peer)
	}
	_, err := c.api.MessagesDeleteChatUser(ctx, &tg.MessagesDeleteChatUserRequest{
		ChatID: chat.ChatID,
		UserID: &tg.InputUserSelf{},
	})
	return wrapRPCError(err)
}

// DeleteDialog is the generic removal: channels are left, everything else
// gets a plain non-revoking history delete.
func (c *actionClient) DeleteDialog(ctx context.Context, peer tg.InputPeerClass) error {
	if channel, ok := peer.(*tg.InputPeerChannel); ok {
		_, err := c.api.ChannelsLeaveChannel(ctx, &tg.InputChannel{
			ChannelID:  channel.ChannelID,
			AccessHash: channel.AccessHash,
		})
		return wrapRPCError(err)
	}
	_, err := c.api.MessagesDeleteHistory(ctx, &tg.MessagesDeleteHistoryRequest{
		Peer:  peer,
		MaxID: 0,
	})
	return wrapRPCError(err)
}

func wrapRPCError(err error) error {
	if err == nil {
		return nil
	}
	if wait, ok := tgerr.AsFloodWait(err); ok {
		return &cleaner.FloodWaitError{Wait: wait}
	}
	if rpcErr, ok := tgerr.As(err); ok {
		return &cleaner.RPCError{Code: rpcErr.Code, Type: rpcErr.Type}
	}
	return err
}
