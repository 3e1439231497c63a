package repo

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"slackpost/internal/model"
)

type PostgresWorkspaceRepo struct {
	db *sql.DB
}

func NewPostgresWorkspaceRepo(db *sql.DB) *PostgresWorkspaceRepo {
	return &PostgresWorkspaceRepo{db: db}
}

const workspaceColumns = `
	id, account_id, team_id, team_name, access_token, refresh_token,
	token_expires_at, scope, created_at, updated_at`

func (r *PostgresWorkspaceRepo) GetByID(ctx context.Context, id, accountID string) (*model.Workspace, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+workspaceColumns+`
		FROM slack_workspaces
		WHERE id = $1 AND account_id = $2
	`, id, accountID)

	ws, err := scanWorkspace(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return ws, nil
}

func (r *PostgresWorkspaceRepo) ListByAccount(ctx context.Context, accountID string) ([]model.Workspace, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+workspaceColumns+`
		FROM slack_workspaces
		WHERE account_id = $1
		ORDER BY created_at DESC
	`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Workspace
	for rows.Next() {
		ws, err := scanWorkspace(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *ws)
	}
	return out, rows.Err()
}

func (r *PostgresWorkspaceRepo) Upsert(ctx context.Context, ws *model.Workspace) error {
	// On conflict the existing row keeps its id; RETURNING writes the
	// effective id back into ws.
	return r.db.QueryRowContext(ctx, `
		INSERT INTO slack_workspaces
			(id, account_id, team_id, team_name, access_token,
			 refresh_token, token_expires_at, scope, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())
		ON CONFLICT (account_id, team_id) DO UPDATE SET
			team_name = EXCLUDED.team_name,
			access_token = EXCLUDED.access_token,
			refresh_token = EXCLUDED.refresh_token,
			token_expires_at = EXCLUDED.token_expires_at,
			scope = EXCLUDED.scope,
			updated_at = now()
		RETURNING id
	`,
		ws.ID,
		ws.AccountID,
		ws.TeamID,
		ws.TeamName,
		ws.AccessToken,
		ws.RefreshToken,
		nullableExpiry(ws.TokenExpiresAt),
		ws.Scope,
	).Scan(&ws.ID)
}

func (r *PostgresWorkspaceRepo) UpdateTokens(ctx context.Context, id, accessToken string, refreshToken *string, expiresAt *time.Time, scope string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE slack_workspaces
		SET access_token = $2,
		    refresh_token = $3,
		    token_expires_at = $4,
		    scope = $5,
		    updated_at = now()
		WHERE id = $1
	`, id, accessToken, refreshToken, nullableExpiry(expiresAt), scope)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullableExpiry(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func scanWorkspace(row rowScanner) (*model.Workspace, error) {
	var ws model.Workspace
	var refresh sql.NullString
	var expires sql.NullTime

	if err := row.Scan(
		&ws.ID,
		&ws.AccountID,
		&ws.TeamID,
		&ws.TeamName,
		&ws.AccessToken,
		&refresh,
		&expires,
		&ws.Scope,
		&ws.CreatedAt,
		&ws.UpdatedAt,
	); err != nil {
		return nil, err
	}

	if refresh.Valid {
		s := refresh.String
		ws.RefreshToken = &s
	}
	if expires.Valid {
		t := expires.Time
		ws.TokenExpiresAt = &t
	}
	return &ws, nil
}
