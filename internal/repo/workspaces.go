package repo

import (
	"context"
	"time"

	"slackpost/internal/model"
)

type WorkspaceRepository interface {
	GetByID(ctx context.Context, id, accountID string) (*model.Workspace, error)
	ListByAccount(ctx context.Context, accountID string) ([]model.Workspace, error)

	// Upsert creates or overwrites the credential record for the
	// workspace's (account_id, team_id) pair and writes the effective
	// record id back into ws.ID. Called on authorization completion.
	Upsert(ctx context.Context, ws *model.Workspace) error

	// UpdateTokens persists a refreshed credential pair in place.
	UpdateTokens(ctx context.Context, id, accessToken string, refreshToken *string, expiresAt *time.Time, scope string) error
}
