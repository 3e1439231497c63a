package cache

import (
	"context"
	"errors"

	"slackpost/internal/model"
)

// ErrCacheMiss means no cached channel list exists for the workspace.
var ErrCacheMiss = errors.New("cache miss")

// ChannelCache holds a workspace's channel list for a bounded time so
// channel listing does not hit the Slack API on every request.
type ChannelCache interface {
	Get(ctx context.Context, workspaceID string) ([]model.Channel, error)
	Set(ctx context.Context, workspaceID string, channels []model.Channel) error
}
