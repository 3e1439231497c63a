package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"slackpost/internal/cache"
	"slackpost/internal/model"
)

// ListChannels returns the workspace's non-archived channels,
// preferring the cache. Cache failures degrade to a live API call and
// never fail the request.
func (s *Service) ListChannels(ctx context.Context, accountID, workspaceID string) ([]model.Channel, error) {
	if _, err := s.workspaces.GetByID(ctx, workspaceID, accountID); err != nil {
		return nil, err
	}

	if s.channels != nil {
		channels, err := s.channels.Get(ctx, workspaceID)
		if err == nil {
			return activeChannels(channels), nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			slog.Warn("channel cache read failed", "workspace_id", workspaceID, "err", err)
		}
	}

	accessToken, err := s.tokens.AccessToken(ctx, accountID, workspaceID)
	if err != nil {
		return nil, err
	}

	channels, err := s.slack.ListChannels(ctx, accessToken)
	if err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}

	if s.channels != nil {
		if err := s.channels.Set(ctx, workspaceID, channels); err != nil {
			slog.Warn("channel cache write failed", "workspace_id", workspaceID, "err", err)
		}
	}

	return activeChannels(channels), nil
}

// ConnectWorkspace completes authorization: it exchanges the OAuth
// code, stores the credential record for (account, team), and warms
// the channel cache best-effort.
func (s *Service) ConnectWorkspace(ctx context.Context, accountID, code string) (*model.Workspace, error) {
	tr, err := s.slack.ExchangeCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", err)
	}
	if !tr.OK {
		return nil, fmt.Errorf("%w: %s", ErrDeliveryRejected, tr.Error)
	}

	ws := &model.Workspace{
		ID:          uuid.NewString(),
		AccountID:   accountID,
		TeamID:      tr.Team.ID,
		TeamName:    tr.Team.Name,
		AccessToken: tr.AccessToken,
		Scope:       tr.Scope,
	}
	if tr.RefreshToken != "" {
		ws.RefreshToken = &tr.RefreshToken
	}
	if tr.ExpiresIn > 0 {
		t := s.now().Add(time.Duration(tr.ExpiresIn) * time.Second)
		ws.TokenExpiresAt = &t
	}

	// Upsert keeps the existing record id on conflict and writes it
	// back into ws.
	if err := s.workspaces.Upsert(ctx, ws); err != nil {
		return nil, fmt.Errorf("store workspace: %w", err)
	}

	s.warmChannelCache(ctx, ws.ID, tr.AccessToken)

	return ws, nil
}

func (s *Service) warmChannelCache(ctx context.Context, workspaceID, accessToken string) {
	if s.channels == nil {
		return
	}
	channels, err := s.slack.ListChannels(ctx, accessToken)
	if err != nil {
		slog.Warn("channel cache warm failed", "workspace_id", workspaceID, "err", err)
		return
	}
	if err := s.channels.Set(ctx, workspaceID, channels); err != nil {
		slog.Warn("channel cache write failed", "workspace_id", workspaceID, "err", err)
	}
}

func activeChannels(channels []model.Channel) []model.Channel {
	out := make([]model.Channel, 0, len(channels))
	for _, ch := range channels {
		if !ch.IsArchived {
			out = append(out, ch)
		}
	}
	return out
}

// GetWorkspace looks up one of the account's workspaces.
func (s *Service) GetWorkspace(ctx context.Context, accountID, workspaceID string) (*model.Workspace, error) {
	return s.workspaces.GetByID(ctx, workspaceID, accountID)
}
