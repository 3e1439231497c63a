package token

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"slackpost/internal/client"
	"slackpost/internal/repo"
)

// ErrCredentialUnavailable means no usable access token could be
// produced: the workspace is unknown, there is no refresh token, or
// the refresh attempt was rejected. The stored record is never mutated
// on this path.
var ErrCredentialUnavailable = errors.New("credential unavailable")

// refreshMargin is how close to expiry a token may get before it is
// refreshed rather than returned.
const refreshMargin = 5 * time.Minute

// TokenRefresher is the remote refresh capability; *client.SlackClient
// satisfies it.
type TokenRefresher interface {
	RefreshToken(ctx context.Context, refreshToken string) (*client.TokenResponse, error)
}

type Manager struct {
	workspaces repo.WorkspaceRepository
	refresher  TokenRefresher

	now func() time.Time
}

func NewManager(workspaces repo.WorkspaceRepository, refresher TokenRefresher) *Manager {
	return &Manager{
		workspaces: workspaces,
		refresher:  refresher,
		now:        time.Now,
	}
}

// AccessToken returns a currently-valid access token for the account's
// workspace, refreshing and persisting the credential pair when the
// stored token is within the refresh margin of expiry.
//
// Store failures are returned as-is so callers can distinguish them
// from ErrCredentialUnavailable; the former is retryable, the latter
// is a terminal delivery outcome.
func (m *Manager) AccessToken(ctx context.Context, accountID, workspaceID string) (string, error) {
	ws, err := m.workspaces.GetByID(ctx, workspaceID, accountID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return "", fmt.Errorf("workspace %s: %w", workspaceID, ErrCredentialUnavailable)
		}
		return "", err
	}

	// No recorded expiry means the token does not expire (or the
	// remote never told us); either way there is nothing to refresh.
	if ws.TokenExpiresAt == nil || ws.TokenExpiresAt.Sub(m.now()) > refreshMargin {
		return ws.AccessToken, nil
	}

	if ws.RefreshToken == nil {
		return "", fmt.Errorf("workspace %s has no refresh token: %w", workspaceID, ErrCredentialUnavailable)
	}

	tr, err := m.refresher.RefreshToken(ctx, *ws.RefreshToken)
	if err != nil {
		slog.Error("token refresh call failed", "workspace_id", workspaceID, "err", err)
		return "", fmt.Errorf("refresh failed: %w", ErrCredentialUnavailable)
	}
	if !tr.OK {
		slog.Error("token refresh rejected", "workspace_id", workspaceID, "reason", tr.Error)
		return "", fmt.Errorf("refresh rejected (%s): %w", tr.Error, ErrCredentialUnavailable)
	}

	// Slack does not always rotate the refresh token; keep the old one
	// when the response omits it.
	newRefresh := ws.RefreshToken
	if tr.RefreshToken != "" {
		newRefresh = &tr.RefreshToken
	}

	var newExpiry *time.Time
	if tr.ExpiresIn > 0 {
		t := m.now().Add(time.Duration(tr.ExpiresIn) * time.Second)
		newExpiry = &t
	}

	if err := m.workspaces.UpdateTokens(ctx, ws.ID, tr.AccessToken, newRefresh, newExpiry, tr.Scope); err != nil {
		return "", err
	}

	slog.Info("access token refreshed", "workspace_id", workspaceID)
	return tr.AccessToken, nil
}
