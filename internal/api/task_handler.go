package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/shaiso/Fabrika/internal/domain"
	"github.com/shaiso/Fabrika/internal/mq"
	"github.com/shaiso/Fabrika/internal/queue"
)

// ListTasks возвращает задачи очереди с фильтрацией.
// GET /api/v1/tasks?kind=...&status=...&limit=...
func (h *Handler) ListTasks(w http.ResponseWriter, r *http.Request) {
	var kind *domain.TaskKind
	if kindStr := r.URL.Query().Get("kind"); kindStr != "" {
		k := domain.TaskKind(kindStr)
		kind = &k
	}

	var status *domain.TaskStatus
	if statusStr := r.URL.Query().Get("status"); statusStr != "" {
		s := domain.TaskStatus(statusStr)
		status = &s
	}

	limit := parseIntParam(r, "limit", 50)

	tasks, err := h.taskRepo.List(r.Context(), kind, status, limit)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	List(w, tasks, len(tasks))
}

// Kinds, которые можно ставить напрямую через API. video-render сюда
// не входит: его задачи порождает только стадия video pipeline.
var enqueueableKinds = map[domain.TaskKind]bool{
	domain.TaskKindImageCrawl: true,
	domain.TaskKindHTTPCall:   true,
}

// EnqueueTask ставит задачу в очередь.
// POST /api/v1/tasks
func (h *Handler) EnqueueTask(w http.ResponseWriter, r *http.Request) {
	var req EnqueueTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	kind := domain.TaskKind(req.Kind)
	if !enqueueableKinds[kind] {
		BadRequest(w, "kind must be one of: image-crawl, http-call")
		return
	}

	maxRetries := -1
	if req.MaxRetries != nil {
		if *req.MaxRetries < 0 {
			BadRequest(w, "max_retries must be non-negative")
			return
		}
		maxRetries = *req.MaxRetries
	}

	if h.queue == nil {
		InvalidState(w, "task queue is unavailable")
		return
	}

	task, err := h.queue.Enqueue(r.Context(), queue.EnqueueParams{
		Kind:       kind,
		Payload:    req.Payload,
		MaxRetries: maxRetries,
	})
	if err != nil {
		InternalError(w, h.logger, err)
		return
	}

	Created(w, task)
}

// GetTask возвращает задачу по ID.
// GET /api/v1/tasks/{id}
func (h *Handler) GetTask(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid task id")
		return
	}

	task, err := h.taskRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "task not found") {
		return
	}

	Success(w, task)
}

// CancelTask отменяет задачу очереди.
// POST /api/v1/tasks/{id}/cancel
//
// Для running-задачи команда уходит в fanout control exchange: её
// получает каждый воркер, а убивает процесс только держатель. API не
// ждёт подтверждения — статус появится в БД, когда воркер завершит
// отмену. Waiting-задачу fanout не достанет (её никто не держит),
// поэтому она переводится в failed условным UPDATE прямо здесь.
func (h *Handler) CancelTask(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid task id")
		return
	}

	task, err := h.taskRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "task not found") {
		return
	}

	if task.Status != domain.TaskStatusRunning && task.Status != domain.TaskStatusWaiting {
		InvalidState(w, "task is already terminal")
		return
	}

	if task.Status == domain.TaskStatusWaiting {
		if h.queue == nil {
			InvalidState(w, "cancellation is unavailable")
			return
		}

		cancelled, err := h.queue.CancelWaiting(r.Context(), task.ID, "cancelled before execution")
		if err == nil {
			h.notifyWaitingCancelled(r.Context(), cancelled)
			Success(w, cancelled)
			return
		}
		if !errors.Is(err, queue.ErrNoTask) {
			InternalError(w, h.logger, err)
			return
		}
		// Задачу успели захватить между GetByID и UPDATE —
		// отменяем уже как running, через control exchange.
	}

	if h.publisher == nil {
		InvalidState(w, "cancellation is unavailable: message broker is not connected")
		return
	}

	if err := h.publisher.PublishTaskCancel(r.Context(), task.ID); err != nil {
		InternalError(w, h.logger, err)
		return
	}

	h.logger.Info("task cancel requested", "task_id", task.ID, "kind", task.Kind)

	JSON(w, http.StatusAccepted, DataResponse{Data: task})
}

// notifyWaitingCancelled шлёт tasks.completed за задачу, отменённую до
// захвата воркером: оркестратор узнаёт о провале stage так же, как от
// воркера. Без брокера событие подберёт его polling fallback.
func (h *Handler) notifyWaitingCancelled(ctx context.Context, task *domain.QueueTask) {
	if h.publisher == nil {
		return
	}

	payload := mq.TaskCompletedPayload{
		TaskID:     task.ID,
		ScheduleID: task.ScheduleID,
		Status:     string(domain.TaskStatusFailed),
		Error:      task.Error,
		Stage:      string(task.Stage),
		Attempt:    task.RetryCount + 1,
	}

	if err := h.publisher.PublishTaskCompleted(ctx, payload); err != nil {
		h.logger.Warn("failed to publish task completion", "task_id", task.ID, "error", err)
	}
}
