package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"slackpost/internal/model"
	"slackpost/internal/repo"
	"slackpost/internal/scheduler"
	"slackpost/internal/service"
	"slackpost/internal/token"
)

// MessageService is the slice of the service layer the handlers use.
type MessageService interface {
	Submit(ctx context.Context, accountID string, req service.SubmitRequest) (*service.SubmitResult, error)
	Cancel(ctx context.Context, accountID, messageID string) error
	Edit(ctx context.Context, accountID, messageID string, upd model.MessageUpdate) (*model.ScheduledMessage, error)
	List(ctx context.Context, accountID string, limit, offset int) ([]model.ScheduledMessage, error)
	Workspaces(ctx context.Context, accountID string) ([]model.Workspace, error)
	ListChannels(ctx context.Context, accountID, workspaceID string) ([]model.Channel, error)
	ConnectWorkspace(ctx context.Context, accountID, code string) (*model.Workspace, error)
}

// AuthURLBuilder produces the external authorize redirect target.
type AuthURLBuilder interface {
	AuthorizeURL(state string) string
}

type Handler struct {
	svc   MessageService
	sched *scheduler.Scheduler
	auth  AuthURLBuilder
}

func NewHandler(svc MessageService, s *scheduler.Scheduler, auth AuthURLBuilder) *Handler {
	return &Handler{svc: svc, sched: s, auth: auth}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handler) SchedulerStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"running": h.sched.IsRunning()})
}

func (h *Handler) SchedulerStart(w http.ResponseWriter, r *http.Request) {
	h.sched.Start()
	writeJSON(w, http.StatusOK, map[string]any{"running": h.sched.IsRunning()})
}

func (h *Handler) SchedulerStop(w http.ResponseWriter, r *http.Request) {
	h.sched.Stop()
	writeJSON(w, http.StatusOK, map[string]any{"running": h.sched.IsRunning()})
}

func (h *Handler) SchedulerRun(w http.ResponseWriter, r *http.Request) {
	h.sched.RunOnce(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

type createMessageRequest struct {
	WorkspaceID  string  `json:"workspace_id"`
	ChannelID    string  `json:"channel_id"`
	ChannelName  string  `json:"channel_name"`
	Text         string  `json:"text"`
	ScheduledFor *string `json:"scheduled_for"`
}

func (h *Handler) CreateMessage(w http.ResponseWriter, r *http.Request) {
	accountID, ok := accountID(w, r)
	if !ok {
		return
	}

	var body createMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	req := service.SubmitRequest{
		WorkspaceID: body.WorkspaceID,
		ChannelID:   body.ChannelID,
		ChannelName: body.ChannelName,
		Text:        body.Text,
	}
	if body.ScheduledFor != nil {
		at, err := time.Parse(time.RFC3339, *body.ScheduledFor)
		if err != nil {
			writeError(w, http.StatusBadRequest, "scheduled_for must be RFC 3339")
			return
		}
		req.ScheduleFor = &at
	}

	res, err := h.svc.Submit(r.Context(), accountID, req)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	if res.Scheduled {
		writeJSON(w, http.StatusCreated, map[string]any{
			"id":            res.MessageID,
			"status":        model.Pending,
			"scheduled_for": res.ScheduledFor.Format(time.RFC3339),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":      true,
		"ts":      res.SlackTS,
		"channel": res.Channel,
	})
}

func (h *Handler) ListMessages(w http.ResponseWriter, r *http.Request) {
	accountID, ok := accountID(w, r)
	if !ok {
		return
	}

	limit := parseInt(r.URL.Query().Get("limit"), 50)
	offset := parseInt(r.URL.Query().Get("offset"), 0)

	items, err := h.svc.List(r.Context(), accountID, limit, offset)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	out := make([]messageView, 0, len(items))
	for i := range items {
		out = append(out, newMessageView(&items[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": out})
}

func (h *Handler) CancelMessage(w http.ResponseWriter, r *http.Request) {
	accountID, ok := accountID(w, r)
	if !ok {
		return
	}

	if err := h.svc.Cancel(r.Context(), accountID, r.PathValue("id")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type updateMessageRequest struct {
	Text         *string `json:"text"`
	ScheduledFor *string `json:"scheduled_for"`
}

func (h *Handler) UpdateMessage(w http.ResponseWriter, r *http.Request) {
	accountID, ok := accountID(w, r)
	if !ok {
		return
	}

	var body updateMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	upd := model.MessageUpdate{Text: body.Text}
	if body.ScheduledFor != nil {
		at, err := time.Parse(time.RFC3339, *body.ScheduledFor)
		if err != nil {
			writeError(w, http.StatusBadRequest, "scheduled_for must be RFC 3339")
			return
		}
		upd.ScheduledFor = &at
	}

	msg, err := h.svc.Edit(r.Context(), accountID, r.PathValue("id"), upd)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newMessageView(msg))
}

func (h *Handler) ListWorkspaces(w http.ResponseWriter, r *http.Request) {
	accountID, ok := accountID(w, r)
	if !ok {
		return
	}

	items, err := h.svc.Workspaces(r.Context(), accountID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	out := make([]workspaceView, 0, len(items))
	for i := range items {
		out = append(out, newWorkspaceView(&items[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": out})
}

func (h *Handler) ListWorkspaceChannels(w http.ResponseWriter, r *http.Request) {
	accountID, ok := accountID(w, r)
	if !ok {
		return
	}

	channels, err := h.svc.ListChannels(r.Context(), accountID, r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"channels": channels})
}

// AuthSlack redirects to the authorize URL. The account id rides in the
// OAuth state parameter so the callback can attribute the workspace.
func (h *Handler) AuthSlack(w http.ResponseWriter, r *http.Request) {
	accountID, ok := accountID(w, r)
	if !ok {
		return
	}
	http.Redirect(w, r, h.auth.AuthorizeURL(accountID), http.StatusFound)
}

func (h *Handler) AuthSlackCallback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	accountID := r.URL.Query().Get("state")
	if code == "" || accountID == "" {
		writeError(w, http.StatusBadRequest, "code and state are required")
		return
	}

	ws, err := h.svc.ConnectWorkspace(r.Context(), accountID, code)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newWorkspaceView(ws))
}

// messageView is the external shape of a scheduled message.
type messageView struct {
	ID           string  `json:"id"`
	WorkspaceID  string  `json:"workspace_id"`
	ChannelID    string  `json:"channel_id"`
	ChannelName  string  `json:"channel_name"`
	Text         string  `json:"text"`
	ScheduledFor string  `json:"scheduled_for"`
	Status       string  `json:"status"`
	SentAt       *string `json:"sent_at,omitempty"`
	ErrorMessage *string `json:"error_message,omitempty"`
	SlackTS      *string `json:"slack_message_ts,omitempty"`
	CreatedAt    string  `json:"created_at"`
}

func newMessageView(m *model.ScheduledMessage) messageView {
	v := messageView{
		ID:           m.ID,
		WorkspaceID:  m.WorkspaceID,
		ChannelID:    m.ChannelID,
		ChannelName:  m.ChannelName,
		Text:         m.Text,
		ScheduledFor: m.ScheduledFor.Format(time.RFC3339),
		Status:       string(m.Status),
		ErrorMessage: m.ErrorMessage,
		SlackTS:      m.SlackMessageTS,
		CreatedAt:    m.CreatedAt.Format(time.RFC3339),
	}
	if m.SentAt != nil {
		s := m.SentAt.Format(time.RFC3339)
		v.SentAt = &s
	}
	return v
}

// workspaceView deliberately excludes the credential fields.
type workspaceView struct {
	ID       string `json:"id"`
	TeamID   string `json:"team_id"`
	TeamName string `json:"team_name"`
	Scope    string `json:"scope"`
}

func newWorkspaceView(ws *model.Workspace) workspaceView {
	return workspaceView{
		ID:       ws.ID,
		TeamID:   ws.TeamID,
		TeamName: ws.TeamName,
		Scope:    ws.Scope,
	}
}

// accountID resolves the caller's account from the X-Account-ID header,
// falling back to the account_id query parameter for browser-driven
// flows. Writes a 400 and returns false when absent.
func accountID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := r.Header.Get("X-Account-ID")
	if id == "" {
		id = r.URL.Query().Get("account_id")
	}
	if id == "" {
		writeError(w, http.StatusBadRequest, "X-Account-ID header is required")
		return "", false
	}
	return id, true
}

func writeServiceError(w http.ResponseWriter, err error) {
	var verr *model.ValidationError
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, verr.Error())
	case errors.Is(err, repo.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, repo.ErrInvalidState):
		writeError(w, http.StatusConflict, "message is no longer pending")
	case errors.Is(err, token.ErrCredentialUnavailable):
		writeError(w, http.StatusBadRequest, "workspace credentials unavailable, reauthorize the workspace")
	case errors.Is(err, service.ErrDeliveryRejected):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": msg})
}

func parseInt(raw string, def int) int {
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
