package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"slackpost/internal/model"
	"slackpost/internal/token"
)

// ProcessDue drives one batch of due messages to a terminal state.
// Safe to invoke repeatedly and concurrently: every terminal write is
// conditional on the message still being pending, so overlapping runs
// at worst perform redundant sends of distinct claims, never duplicate
// status transitions.
//
// An error is returned only when the claim itself fails; per-message
// failures become the message's own failed status.
func (s *Service) ProcessDue(ctx context.Context) error {
	msgs, err := s.messages.ClaimDue(ctx, s.now(), s.batchSize)
	if err != nil {
		return fmt.Errorf("claim due messages: %w", err)
	}
	if len(msgs) == 0 {
		return nil
	}

	slog.Info("processing due messages", "count", len(msgs))

	for i := range msgs {
		s.deliver(ctx, &msgs[i])
	}
	return nil
}

func (s *Service) deliver(ctx context.Context, msg *model.ScheduledMessage) {
	accessToken, err := s.tokens.AccessToken(ctx, msg.AccountID, msg.WorkspaceID)
	if err != nil {
		if errors.Is(err, token.ErrCredentialUnavailable) {
			s.markFailed(ctx, msg.ID, "credential unavailable")
			return
		}
		// Store-level failure: leave the message pending for the next
		// invocation.
		slog.Error("credential lookup failed", "message_id", msg.ID, "err", err)
		return
	}

	res, err := s.slack.SendMessage(ctx, accessToken, msg.ChannelID, msg.Text)
	if err != nil {
		s.markFailed(ctx, msg.ID, err.Error())
		return
	}
	if !res.OK {
		s.markFailed(ctx, msg.ID, res.Error)
		return
	}

	ok, err := s.messages.MarkSent(ctx, msg.ID, s.now(), res.TS)
	if err != nil {
		slog.Error("failed to record sent message", "message_id", msg.ID, "err", err)
		return
	}
	if !ok {
		// Lost the conditional write: another run or a cancel got
		// there first. Not an error.
		slog.Info("message no longer pending, skipping status write", "message_id", msg.ID)
		return
	}

	slog.Info("scheduled message sent", "message_id", msg.ID, "channel_id", msg.ChannelID, "ts", res.TS)
}

func (s *Service) markFailed(ctx context.Context, id, reason string) {
	ok, err := s.messages.MarkFailed(ctx, id, reason)
	if err != nil {
		slog.Error("failed to record failed message", "message_id", id, "err", err)
		return
	}
	if !ok {
		slog.Info("message no longer pending, skipping failure write", "message_id", id)
		return
	}
	slog.Error("scheduled message failed", "message_id", id, "reason", reason)
}
