package model

import "time"

// Workspace is a connected Slack workspace together with its stored
// credential pair. Exactly one record exists per (account, team).
type Workspace struct {
	ID             string
	AccountID      string
	TeamID         string
	TeamName       string
	AccessToken    string
	RefreshToken   *string
	TokenExpiresAt *time.Time
	Scope          string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type Channel struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	IsPrivate  bool   `json:"is_private"`
	IsArchived bool   `json:"is_archived"`
}
