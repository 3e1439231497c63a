package repo

import (
	"context"
	"time"

	"slackpost/internal/model"
)

type MessageRepository interface {
	Create(ctx context.Context, msg *model.ScheduledMessage) error
	GetByID(ctx context.Context, id, accountID string) (*model.ScheduledMessage, error)
	ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]model.ScheduledMessage, error)

	// ClaimDue returns pending messages whose scheduled time has
	// passed, oldest scheduled time first. Claiming does not mutate
	// the records: the terminal writes below are conditional on the
	// status still being pending, which makes concurrent claims safe.
	ClaimDue(ctx context.Context, now time.Time, limit int) ([]model.ScheduledMessage, error)

	// MarkSent and MarkFailed transition a pending message to its
	// terminal state. They return false, without error, when the
	// message was no longer pending (already handled elsewhere).
	MarkSent(ctx context.Context, id string, sentAt time.Time, slackTS string) (bool, error)
	MarkFailed(ctx context.Context, id, reason string) (bool, error)

	// Cancel and Update act on behalf of the owning account and fail
	// with ErrInvalidState when the message is no longer pending.
	Cancel(ctx context.Context, id, accountID string) error
	Update(ctx context.Context, id, accountID string, upd model.MessageUpdate) (*model.ScheduledMessage, error)
}
