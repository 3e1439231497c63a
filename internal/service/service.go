package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"slackpost/internal/cache"
	"slackpost/internal/client"
	"slackpost/internal/model"
	"slackpost/internal/repo"
)

// ErrDeliveryRejected wraps a remote decline of an immediate send so
// handlers can map it to a client error instead of a server fault.
var ErrDeliveryRejected = errors.New("delivery rejected")

// SlackAPI is the slice of the Slack client the service needs.
type SlackAPI interface {
	SendMessage(ctx context.Context, accessToken, channelID, text string) (client.SendResult, error)
	ListChannels(ctx context.Context, accessToken string) ([]model.Channel, error)
	ExchangeCode(ctx context.Context, code string) (*client.TokenResponse, error)
}

// TokenSource resolves a valid access token for an account's
// workspace; *token.Manager satisfies it.
type TokenSource interface {
	AccessToken(ctx context.Context, accountID, workspaceID string) (string, error)
}

type Dependencies struct {
	Messages   repo.MessageRepository
	Workspaces repo.WorkspaceRepository
	Tokens     TokenSource
	Slack      SlackAPI

	// Channels may be nil; channel listing then always hits the API.
	Channels cache.ChannelCache
}

type Options struct {
	BatchSize int
}

type Service struct {
	messages   repo.MessageRepository
	workspaces repo.WorkspaceRepository
	tokens     TokenSource
	slack      SlackAPI
	channels   cache.ChannelCache

	batchSize int
	now       func() time.Time
}

func New(deps Dependencies, opts Options) *Service {
	batch := opts.BatchSize
	if batch <= 0 {
		batch = 50
	}
	return &Service{
		messages:   deps.Messages,
		workspaces: deps.Workspaces,
		tokens:     deps.Tokens,
		slack:      deps.Slack,
		channels:   deps.Channels,
		batchSize:  batch,
		now:        time.Now,
	}
}

type SubmitRequest struct {
	WorkspaceID string
	ChannelID   string
	ChannelName string
	Text        string

	// ScheduleFor, when set, stores the message for later delivery
	// instead of sending it now.
	ScheduleFor *time.Time
}

type SubmitResult struct {
	Scheduled    bool
	MessageID    string
	ScheduledFor *time.Time

	// Set only on an immediate send.
	SlackTS string
	Channel string
}

// Submit validates and either schedules the message or delivers it
// immediately. The immediate path never touches the message store.
func (s *Service) Submit(ctx context.Context, accountID string, req SubmitRequest) (*SubmitResult, error) {
	if req.WorkspaceID == "" || req.ChannelID == "" {
		return nil, &model.ValidationError{Field: "request", Reason: "workspace_id and channel_id are required"}
	}

	text := strings.TrimSpace(req.Text)
	if err := model.ValidateText(text); err != nil {
		return nil, err
	}

	if req.ScheduleFor != nil {
		return s.schedule(ctx, accountID, req, text)
	}
	return s.sendNow(ctx, accountID, req, text)
}

func (s *Service) schedule(ctx context.Context, accountID string, req SubmitRequest, text string) (*SubmitResult, error) {
	now := s.now()
	if err := model.ValidateSchedule(now, *req.ScheduleFor); err != nil {
		return nil, err
	}

	channelName := req.ChannelName
	if channelName == "" {
		channelName = "#" + req.ChannelID
	}

	msg := &model.ScheduledMessage{
		ID:           uuid.NewString(),
		AccountID:    accountID,
		WorkspaceID:  req.WorkspaceID,
		ChannelID:    req.ChannelID,
		ChannelName:  channelName,
		Text:         text,
		ScheduledFor: req.ScheduleFor.UTC(),
		Status:       model.Pending,
		CreatedAt:    now.UTC(),
		UpdatedAt:    now.UTC(),
	}

	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("create scheduled message: %w", err)
	}

	scheduledFor := msg.ScheduledFor
	return &SubmitResult{
		Scheduled:    true,
		MessageID:    msg.ID,
		ScheduledFor: &scheduledFor,
	}, nil
}

func (s *Service) sendNow(ctx context.Context, accountID string, req SubmitRequest, text string) (*SubmitResult, error) {
	accessToken, err := s.tokens.AccessToken(ctx, accountID, req.WorkspaceID)
	if err != nil {
		return nil, err
	}

	res, err := s.slack.SendMessage(ctx, accessToken, req.ChannelID, text)
	if err != nil {
		return nil, fmt.Errorf("send message: %w", err)
	}
	if !res.OK {
		return nil, fmt.Errorf("%w: %s", ErrDeliveryRejected, res.Error)
	}

	return &SubmitResult{
		SlackTS: res.TS,
		Channel: res.Channel,
	}, nil
}

// Cancel moves a pending message to cancelled on behalf of its owner.
func (s *Service) Cancel(ctx context.Context, accountID, messageID string) error {
	return s.messages.Cancel(ctx, messageID, accountID)
}

// Edit updates a pending message's text and/or scheduled time after
// re-validating the invariants.
func (s *Service) Edit(ctx context.Context, accountID, messageID string, upd model.MessageUpdate) (*model.ScheduledMessage, error) {
	if upd.Text == nil && upd.ScheduledFor == nil {
		return nil, &model.ValidationError{Field: "request", Reason: "no updates provided"}
	}

	if upd.Text != nil {
		text := strings.TrimSpace(*upd.Text)
		if err := model.ValidateText(text); err != nil {
			return nil, err
		}
		upd.Text = &text
	}
	if upd.ScheduledFor != nil {
		if err := model.ValidateSchedule(s.now(), *upd.ScheduledFor); err != nil {
			return nil, err
		}
	}

	return s.messages.Update(ctx, messageID, accountID, upd)
}

// List returns the account's messages, soonest scheduled first.
func (s *Service) List(ctx context.Context, accountID string, limit, offset int) ([]model.ScheduledMessage, error) {
	return s.messages.ListByAccount(ctx, accountID, limit, offset)
}

// Workspaces returns the account's connected workspaces.
func (s *Service) Workspaces(ctx context.Context, accountID string) ([]model.Workspace, error) {
	return s.workspaces.ListByAccount(ctx, accountID)
}
