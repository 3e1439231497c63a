package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"slackpost/internal/cache"
	"slackpost/internal/client"
	"slackpost/internal/model"
	"slackpost/internal/repo"
)

// memMessageRepo is an in-memory MessageRepository with the same
// conditional-write semantics as the Postgres implementation.
type memMessageRepo struct {
	mu   sync.Mutex
	msgs map[string]*model.ScheduledMessage

	claimErr  error
	createErr error
}

var _ repo.MessageRepository = (*memMessageRepo)(nil)

func newMemMessageRepo() *memMessageRepo {
	return &memMessageRepo{msgs: make(map[string]*model.ScheduledMessage)}
}

func (r *memMessageRepo) Create(ctx context.Context, msg *model.ScheduledMessage) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *msg
	r.msgs[msg.ID] = &cp
	return nil
}

func (r *memMessageRepo) GetByID(ctx context.Context, id, accountID string) (*model.ScheduledMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.msgs[id]
	if !ok || m.AccountID != accountID {
		return nil, repo.ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (r *memMessageRepo) ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]model.ScheduledMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.ScheduledMessage
	for _, m := range r.msgs {
		if m.AccountID == accountID {
			out = append(out, *m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledFor.Before(out[j].ScheduledFor) })
	return out, nil
}

func (r *memMessageRepo) ClaimDue(ctx context.Context, now time.Time, limit int) ([]model.ScheduledMessage, error) {
	if r.claimErr != nil {
		return nil, r.claimErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.ScheduledMessage
	for _, m := range r.msgs {
		if m.Status == model.Pending && !m.ScheduledFor.After(now) {
			out = append(out, *m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledFor.Before(out[j].ScheduledFor) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memMessageRepo) MarkSent(ctx context.Context, id string, sentAt time.Time, slackTS string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.msgs[id]
	if !ok || m.Status != model.Pending {
		return false, nil
	}
	m.Status = model.Sent
	t := sentAt
	m.SentAt = &t
	ts := slackTS
	m.SlackMessageTS = &ts
	return true, nil
}

func (r *memMessageRepo) MarkFailed(ctx context.Context, id, reason string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.msgs[id]
	if !ok || m.Status != model.Pending {
		return false, nil
	}
	m.Status = model.Failed
	s := reason
	m.ErrorMessage = &s
	return true, nil
}

func (r *memMessageRepo) Cancel(ctx context.Context, id, accountID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.msgs[id]
	if !ok || m.AccountID != accountID {
		return repo.ErrNotFound
	}
	if m.Status != model.Pending {
		return repo.ErrInvalidState
	}
	m.Status = model.Cancelled
	return nil
}

func (r *memMessageRepo) Update(ctx context.Context, id, accountID string, upd model.MessageUpdate) (*model.ScheduledMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.msgs[id]
	if !ok || m.AccountID != accountID {
		return nil, repo.ErrNotFound
	}
	if m.Status != model.Pending {
		return nil, repo.ErrInvalidState
	}
	if upd.Text != nil {
		m.Text = *upd.Text
	}
	if upd.ScheduledFor != nil {
		m.ScheduledFor = *upd.ScheduledFor
	}
	cp := *m
	return &cp, nil
}

// get returns the stored record directly, for assertions.
func (r *memMessageRepo) get(id string) *model.ScheduledMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.msgs[id]
	if !ok {
		return nil
	}
	cp := *m
	return &cp
}

func (r *memMessageRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.msgs)
}

type memWorkspaceRepo struct {
	mu  sync.Mutex
	wss map[string]*model.Workspace

	upserted []*model.Workspace
}

var _ repo.WorkspaceRepository = (*memWorkspaceRepo)(nil)

func newMemWorkspaceRepo() *memWorkspaceRepo {
	return &memWorkspaceRepo{wss: make(map[string]*model.Workspace)}
}

func (r *memWorkspaceRepo) GetByID(ctx context.Context, id, accountID string) (*model.Workspace, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ws, ok := r.wss[id]
	if !ok || ws.AccountID != accountID {
		return nil, repo.ErrNotFound
	}
	cp := *ws
	return &cp, nil
}

func (r *memWorkspaceRepo) ListByAccount(ctx context.Context, accountID string) ([]model.Workspace, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Workspace
	for _, ws := range r.wss {
		if ws.AccountID == accountID {
			out = append(out, *ws)
		}
	}
	return out, nil
}

func (r *memWorkspaceRepo) Upsert(ctx context.Context, ws *model.Workspace) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.wss {
		if existing.AccountID == ws.AccountID && existing.TeamID == ws.TeamID {
			ws.ID = existing.ID
			break
		}
	}
	cp := *ws
	r.wss[ws.ID] = &cp
	r.upserted = append(r.upserted, &cp)
	return nil
}

func (r *memWorkspaceRepo) UpdateTokens(ctx context.Context, id, accessToken string, refreshToken *string, expiresAt *time.Time, scope string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ws, ok := r.wss[id]
	if !ok {
		return repo.ErrNotFound
	}
	ws.AccessToken = accessToken
	ws.RefreshToken = refreshToken
	ws.TokenExpiresAt = expiresAt
	ws.Scope = scope
	return nil
}

type fakeTokens struct {
	token string
	err   error
	calls int
}

func (f *fakeTokens) AccessToken(ctx context.Context, accountID, workspaceID string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.token, nil
}

type fakeSlack struct {
	mu sync.Mutex

	sendResult client.SendResult
	sendErr    error
	sendCalls  int
	gotToken   string
	gotChannel string
	gotText    string

	channels     []model.Channel
	channelsErr  error
	listCalls    int
	exchangeResp *client.TokenResponse
	exchangeErr  error
}

var _ SlackAPI = (*fakeSlack)(nil)

func (f *fakeSlack) SendMessage(ctx context.Context, accessToken, channelID, text string) (client.SendResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sendCalls++
	f.gotToken = accessToken
	f.gotChannel = channelID
	f.gotText = text
	if f.sendErr != nil {
		return client.SendResult{}, f.sendErr
	}
	return f.sendResult, nil
}

func (f *fakeSlack) ListChannels(ctx context.Context, accessToken string) ([]model.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.channelsErr != nil {
		return nil, f.channelsErr
	}
	return f.channels, nil
}

func (f *fakeSlack) ExchangeCode(ctx context.Context, code string) (*client.TokenResponse, error) {
	if f.exchangeErr != nil {
		return nil, f.exchangeErr
	}
	return f.exchangeResp, nil
}

type memChannelCache struct {
	mu   sync.Mutex
	data map[string][]model.Channel

	getErr error
	setErr error
}

var _ cache.ChannelCache = (*memChannelCache)(nil)

func newMemChannelCache() *memChannelCache {
	return &memChannelCache{data: make(map[string][]model.Channel)}
}

func (c *memChannelCache) Get(ctx context.Context, workspaceID string) ([]model.Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, c.getErr
	}
	channels, ok := c.data[workspaceID]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	return channels, nil
}

func (c *memChannelCache) Set(ctx context.Context, workspaceID string, channels []model.Channel) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.setErr != nil {
		return c.setErr
	}
	c.data[workspaceID] = channels
	return nil
}

var errBoom = errors.New("boom")
