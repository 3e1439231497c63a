package repo

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"slackpost/internal/model"
)

type PostgresMessageRepo struct {
	db *sql.DB
}

func NewPostgresMessageRepo(db *sql.DB) *PostgresMessageRepo {
	return &PostgresMessageRepo{db: db}
}

const messageColumns = `
	id, account_id, workspace_id, channel_id, channel_name,
	message_text, scheduled_for, status, sent_at, error_message,
	slack_message_ts, created_at, updated_at`

func (r *PostgresMessageRepo) Create(ctx context.Context, msg *model.ScheduledMessage) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO scheduled_messages
			(id, account_id, workspace_id, channel_id, channel_name,
			 message_text, scheduled_for, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
	`,
		msg.ID,
		msg.AccountID,
		msg.WorkspaceID,
		msg.ChannelID,
		msg.ChannelName,
		msg.Text,
		msg.ScheduledFor.UTC(),
		string(msg.Status),
		msg.CreatedAt.UTC(),
	)
	return err
}

func (r *PostgresMessageRepo) GetByID(ctx context.Context, id, accountID string) (*model.ScheduledMessage, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+messageColumns+`
		FROM scheduled_messages
		WHERE id = $1 AND account_id = $2
	`, id, accountID)

	msg, err := scanMessage(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return msg, nil
}

func (r *PostgresMessageRepo) ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]model.ScheduledMessage, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+messageColumns+`
		FROM scheduled_messages
		WHERE account_id = $1
		ORDER BY scheduled_for ASC
		LIMIT $2 OFFSET $3
	`, accountID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectMessages(rows)
}

func (r *PostgresMessageRepo) ClaimDue(ctx context.Context, now time.Time, limit int) ([]model.ScheduledMessage, error) {
	if limit <= 0 {
		return nil, errors.New("limit must be > 0")
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+messageColumns+`
		FROM scheduled_messages
		WHERE status = 'pending' AND scheduled_for <= $1
		ORDER BY scheduled_for ASC
		LIMIT $2
	`, now.UTC(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectMessages(rows)
}

func (r *PostgresMessageRepo) MarkSent(ctx context.Context, id string, sentAt time.Time, slackTS string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE scheduled_messages
		SET status = 'sent',
		    sent_at = $2,
		    slack_message_ts = $3,
		    updated_at = now()
		WHERE id = $1 AND status = 'pending'
	`, id, sentAt.UTC(), slackTS)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *PostgresMessageRepo) MarkFailed(ctx context.Context, id, reason string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE scheduled_messages
		SET status = 'failed',
		    error_message = $2,
		    updated_at = now()
		WHERE id = $1 AND status = 'pending'
	`, id, reason)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *PostgresMessageRepo) Cancel(ctx context.Context, id, accountID string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE scheduled_messages
		SET status = 'cancelled', updated_at = now()
		WHERE id = $1 AND account_id = $2 AND status = 'pending'
	`, id, accountID)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	// Distinguish a missing record from one that lost the race to a
	// terminal state.
	if _, err := r.GetByID(ctx, id, accountID); err != nil {
		return err
	}
	return ErrInvalidState
}

func (r *PostgresMessageRepo) Update(ctx context.Context, id, accountID string, upd model.MessageUpdate) (*model.ScheduledMessage, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE scheduled_messages
		SET message_text = COALESCE($3, message_text),
		    scheduled_for = COALESCE($4, scheduled_for),
		    updated_at = now()
		WHERE id = $1 AND account_id = $2 AND status = 'pending'
		RETURNING `+messageColumns+`
	`, id, accountID, upd.Text, nullableTime(upd.ScheduledFor))

	msg, err := scanMessage(row)
	if err == nil {
		return msg, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	if _, err := r.GetByID(ctx, id, accountID); err != nil {
		return nil, err
	}
	return nil, ErrInvalidState
}

func nullableTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row rowScanner) (*model.ScheduledMessage, error) {
	var m model.ScheduledMessage
	var status string
	var sentAt sql.NullTime
	var errMsg sql.NullString
	var slackTS sql.NullString

	if err := row.Scan(
		&m.ID,
		&m.AccountID,
		&m.WorkspaceID,
		&m.ChannelID,
		&m.ChannelName,
		&m.Text,
		&m.ScheduledFor,
		&status,
		&sentAt,
		&errMsg,
		&slackTS,
		&m.CreatedAt,
		&m.UpdatedAt,
	); err != nil {
		return nil, err
	}

	m.Status = model.Status(status)
	if sentAt.Valid {
		t := sentAt.Time
		m.SentAt = &t
	}
	if errMsg.Valid {
		s := errMsg.String
		m.ErrorMessage = &s
	}
	if slackTS.Valid {
		s := slackTS.String
		m.SlackMessageTS = &s
	}
	return &m, nil
}

func collectMessages(rows *sql.Rows) ([]model.ScheduledMessage, error) {
	var out []model.ScheduledMessage
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}
