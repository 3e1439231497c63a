package api

import "net/http"

func Router(h *Handler) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /v1/health", h.Health)

	mux.HandleFunc("GET /v1/scheduler/status", h.SchedulerStatus)
	mux.HandleFunc("POST /v1/scheduler/start", h.SchedulerStart)
	mux.HandleFunc("POST /v1/scheduler/stop", h.SchedulerStop)
	mux.HandleFunc("POST /v1/scheduler/run", h.SchedulerRun)

	mux.HandleFunc("POST /v1/messages", h.CreateMessage)
	mux.HandleFunc("GET /v1/messages", h.ListMessages)
	mux.HandleFunc("DELETE /v1/messages/{id}", h.CancelMessage)
	mux.HandleFunc("PATCH /v1/messages/{id}", h.UpdateMessage)

	mux.HandleFunc("GET /v1/workspaces", h.ListWorkspaces)
	mux.HandleFunc("GET /v1/workspaces/{id}/channels", h.ListWorkspaceChannels)

	mux.HandleFunc("GET /v1/auth/slack", h.AuthSlack)
	mux.HandleFunc("GET /v1/auth/slack/callback", h.AuthSlackCallback)

	mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("slackpost"))
	})

	return mux
}
