package api

import (
	"net/http"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Middleware chain
	chain := Chain(
		Recovery(h.logger),
		Logging(h.logger),
	)

	// Titles
	mux.Handle("GET /api/v1/titles", chain(http.HandlerFunc(h.ListTitles)))
	mux.Handle("POST /api/v1/titles", chain(http.HandlerFunc(h.CreateTitle)))
	mux.Handle("GET /api/v1/titles/{id}", chain(http.HandlerFunc(h.GetTitle)))
	mux.Handle("PUT /api/v1/titles/{id}", chain(http.HandlerFunc(h.UpdateTitle)))
	mux.Handle("DELETE /api/v1/titles/{id}", chain(http.HandlerFunc(h.DeleteTitle)))

	// Schedules
	mux.Handle("GET /api/v1/schedules", chain(http.HandlerFunc(h.ListSchedules)))
	mux.Handle("POST /api/v1/titles/{id}/schedules", chain(http.HandlerFunc(h.CreateSchedule)))
	mux.Handle("GET /api/v1/schedules/{id}", chain(http.HandlerFunc(h.GetSchedule)))
	mux.Handle("PUT /api/v1/schedules/{id}/time", chain(http.HandlerFunc(h.UpdateScheduleTime)))
	mux.Handle("PUT /api/v1/schedules/{id}/status", chain(http.HandlerFunc(h.UpdateScheduleStatus)))
	mux.Handle("DELETE /api/v1/schedules/{id}", chain(http.HandlerFunc(h.DeleteSchedule)))

	// Pipeline detail: стадии + логи для status-polling UI
	mux.Handle("GET /api/v1/schedules/{id}/pipeline", chain(http.HandlerFunc(h.GetPipelineDetail)))

	// Channels
	mux.Handle("GET /api/v1/channels", chain(http.HandlerFunc(h.ListChannels)))
	mux.Handle("POST /api/v1/channels", chain(http.HandlerFunc(h.CreateChannel)))
	mux.Handle("GET /api/v1/channels/{id}", chain(http.HandlerFunc(h.GetChannel)))
	mux.Handle("PUT /api/v1/channels/{id}", chain(http.HandlerFunc(h.UpdateChannel)))
	mux.Handle("DELETE /api/v1/channels/{id}", chain(http.HandlerFunc(h.DeleteChannel)))

	// Queue tasks
	mux.Handle("GET /api/v1/tasks", chain(http.HandlerFunc(h.ListTasks)))
	mux.Handle("POST /api/v1/tasks", chain(http.HandlerFunc(h.EnqueueTask)))
	mux.Handle("GET /api/v1/tasks/{id}", chain(http.HandlerFunc(h.GetTask)))
	mux.Handle("POST /api/v1/tasks/{id}/cancel", chain(http.HandlerFunc(h.CancelTask)))

	// Credits
	mux.Handle("GET /api/v1/users/{id}/balance", chain(http.HandlerFunc(h.GetBalance)))
	mux.Handle("POST /api/v1/users/{id}/deposit", chain(http.HandlerFunc(h.Deposit)))
}
