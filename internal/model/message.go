package model

import "time"

type Status string

const (
	Pending   Status = "pending"
	Sent      Status = "sent"
	Failed    Status = "failed"
	Cancelled Status = "cancelled"
)

// Terminal reports whether no further status transition is permitted.
func (s Status) Terminal() bool {
	return s == Sent || s == Failed || s == Cancelled
}

type ScheduledMessage struct {
	ID             string
	AccountID      string
	WorkspaceID    string
	ChannelID      string
	ChannelName    string
	Text           string
	ScheduledFor   time.Time
	Status         Status
	SentAt         *time.Time
	ErrorMessage   *string
	SlackMessageTS *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// MessageUpdate carries the fields a pending message may be edited with.
// Nil fields are left unchanged.
type MessageUpdate struct {
	Text         *string
	ScheduledFor *time.Time
}
