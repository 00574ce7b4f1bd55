package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Fabrika/internal/domain"
	"github.com/shaiso/Fabrika/internal/repo"
)

// ListSchedules возвращает список schedules с метаданными titles.
// GET /api/v1/schedules?title_id=...&channel_id=...&status=...&limit=...&offset=...
func (h *Handler) ListSchedules(w http.ResponseWriter, r *http.Request) {
	filter := repo.ScheduleFilter{}

	if titleIDStr := r.URL.Query().Get("title_id"); titleIDStr != "" {
		titleID, err := uuid.Parse(titleIDStr)
		if err != nil {
			BadRequest(w, "invalid title_id")
			return
		}
		filter.TitleID = &titleID
	}

	if channelIDStr := r.URL.Query().Get("channel_id"); channelIDStr != "" {
		channelID, err := uuid.Parse(channelIDStr)
		if err != nil {
			BadRequest(w, "invalid channel_id")
			return
		}
		filter.ChannelID = &channelID
	}

	if statusStr := r.URL.Query().Get("status"); statusStr != "" {
		status := domain.ScheduleStatus(statusStr)
		filter.Status = &status
	}

	filter.Limit = parseIntParam(r, "limit", 50)
	filter.Offset = parseIntParam(r, "offset", 0)

	schedules, err := h.schedRepo.List(r.Context(), filter)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	List(w, schedules, len(schedules))
}

// CreateSchedule создаёт schedule для title.
// POST /api/v1/titles/{id}/schedules
//
// Прошедшее scheduled_at без force_execute отклоняется синхронно,
// запись не создаётся. Создание списывает кредиты владельца title
// в одной транзакции со вставкой.
func (h *Handler) CreateSchedule(w http.ResponseWriter, r *http.Request) {
	titleID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid title id")
		return
	}

	var req CreateScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	if req.ScheduledAt.IsZero() {
		BadRequest(w, "scheduled_at is required")
		return
	}

	// Past-time rejection: прошедшее время допустимо только с force
	if !req.ForceExecute && req.ScheduledAt.Before(time.Now()) {
		BadRequest(w, "scheduled_at is in the past (use force_execute to override)")
		return
	}

	privacy := domain.Privacy(req.Privacy)
	if privacy == "" {
		privacy = domain.PrivacyPublic
	}
	if !domain.ValidPrivacy(privacy) {
		BadRequest(w, "invalid privacy")
		return
	}

	if req.PublishAt != nil && req.PublishAt.Before(req.ScheduledAt) {
		BadRequest(w, "publish_at must not precede scheduled_at")
		return
	}

	title, err := h.titleRepo.GetByID(r.Context(), titleID)
	if HandleRepoError(w, h.logger, err, "title not found") {
		return
	}

	schedule := &domain.Schedule{
		ID:          uuid.New(),
		TitleID:     title.ID,
		ScheduledAt: req.ScheduledAt.UTC(),
		PublishAt:   req.PublishAt,
		Privacy:     privacy,
		Status:      domain.ScheduleStatusPending,
		UserID:      title.UserID,
		CostCredits: h.costCredits,
	}

	if h.creator != nil {
		err = h.creator.CreateCharged(r.Context(), schedule)
	} else {
		err = h.schedRepo.Create(r.Context(), schedule)
	}
	if HandleRepoError(w, h.logger, err, "title not found") {
		return
	}

	if err := h.titleRepo.UpdateStatus(r.Context(), title.ID, domain.TitleStatusScheduled); err != nil {
		h.logger.Warn("failed to mark title scheduled", "title_id", title.ID, "error", err)
	}

	h.appendScheduleLog(r, schedule.ID, "schedule created", map[string]any{
		"status":       string(schedule.Status),
		"scheduled_at": schedule.ScheduledAt,
		"force":        req.ForceExecute,
	})

	Created(w, schedule)
}

// GetSchedule возвращает schedule по ID.
// GET /api/v1/schedules/{id}
func (h *Handler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid schedule id")
		return
	}

	schedule, err := h.schedRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "schedule not found") {
		return
	}

	Success(w, schedule)
}

// UpdateScheduleTime переносит schedule на другое время.
// PUT /api/v1/schedules/{id}/time
//
// Новое время в прошлом без force отклоняется; перенос прошедшего
// schedule отклоняет репозиторий (append-only история).
func (h *Handler) UpdateScheduleTime(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid schedule id")
		return
	}

	var req UpdateScheduleTimeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	if req.NewTime.IsZero() {
		BadRequest(w, "new_time is required")
		return
	}

	if !req.Force && req.NewTime.Before(time.Now()) {
		BadRequest(w, "new_time is in the past (use force to override)")
		return
	}

	if err := h.schedRepo.UpdateTime(r.Context(), id, req.NewTime.UTC(), req.Force); err != nil {
		if HandleRepoError(w, h.logger, err, "schedule not found") {
			return
		}
	}

	schedule, err := h.schedRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "schedule not found") {
		return
	}

	h.appendScheduleLog(r, id, "schedule rescheduled", map[string]any{
		"new_time": schedule.ScheduledAt,
		"force":    req.Force,
	})

	Success(w, schedule)
}

// UpdateScheduleStatus переводит schedule в другой статус.
// PUT /api/v1/schedules/{id}/status
func (h *Handler) UpdateScheduleStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid schedule id")
		return
	}

	var req UpdateScheduleStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	status := domain.ScheduleStatus(req.Status)
	switch status {
	case domain.ScheduleStatusPending, domain.ScheduleStatusRunning,
		domain.ScheduleStatusCompleted, domain.ScheduleStatusFailed:
	default:
		BadRequest(w, "invalid status")
		return
	}

	if err := h.schedRepo.UpdateStatus(r.Context(), id, status, req.Error); err != nil {
		if HandleRepoError(w, h.logger, err, "schedule not found") {
			return
		}
	}

	h.appendScheduleLog(r, id, "schedule status updated", map[string]any{
		"status": string(status),
	})

	schedule, err := h.schedRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "schedule not found") {
		return
	}

	Success(w, schedule)
}

// DeleteSchedule удаляет schedule.
// DELETE /api/v1/schedules/{id}
func (h *Handler) DeleteSchedule(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid schedule id")
		return
	}

	if err := h.schedRepo.Delete(r.Context(), id); err != nil {
		if HandleRepoError(w, h.logger, err, "schedule not found") {
			return
		}
	}

	NoContent(w)
}

// GetPipelineDetail возвращает стадии и логи schedule.
// GET /api/v1/schedules/{id}/pipeline?limit=...
func (h *Handler) GetPipelineDetail(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid schedule id")
		return
	}

	schedule, err := h.schedRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "schedule not found") {
		return
	}

	stages, err := h.stageRepo.ListBySchedule(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	limit := parseIntParam(r, "limit", 200)
	logs, err := h.logRepo.ListBySchedule(r.Context(), id, limit)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	Success(w, PipelineDetailResponse{
		Schedule: schedule,
		Stages:   stages,
		Logs:     logs,
	})
}

// appendScheduleLog пишет append-only запись о переходе. Не фатально.
func (h *Handler) appendScheduleLog(r *http.Request, scheduleID uuid.UUID, message string, meta map[string]any) {
	if h.logRepo == nil {
		return
	}

	entry := &domain.LogEntry{
		ID:         uuid.New(),
		ScheduleID: &scheduleID,
		Level:      domain.LogLevelInfo,
		Message:    message,
		Meta:       meta,
		CreatedAt:  time.Now(),
	}

	if err := h.logRepo.Append(r.Context(), entry); err != nil {
		h.logger.Warn("failed to append schedule log",
			"schedule_id", scheduleID,
			"error", err,
		)
	}
}
