package domain

import (
	"time"

	"github.com/google/uuid"
)

// TaskKind — тип задачи в очереди.
type TaskKind string

// Известные типы задач.
const (
	// TaskKindVideoRender — рендеринг видео внешним процессом.
	// Ставится только стадией video pipeline.
	TaskKindVideoRender TaskKind = "video-render"

	// TaskKindImageCrawl — сбор изображений для сцен. Ставится
	// через POST /api/v1/tasks.
	TaskKindImageCrawl TaskKind = "image-crawl"

	// TaskKindHTTPCall — универсальный HTTP-вызов (webhooks и т.п.).
	// Ставится через POST /api/v1/tasks.
	TaskKindHTTPCall TaskKind = "http-call"
)

// QueueTask — единица фоновой работы в durable-очереди.
//
// Инвариант: задачу в running держит не более одного воркера; claim —
// одна неделимая операция read-and-mark (conditional UPDATE в БД).
// In-memory состояние задач авторитетным не является.
type QueueTask struct {
	// ID — уникальный идентификатор задачи.
	ID uuid.UUID `json:"id"`

	// Kind — тип задачи. Воркер дренирует задачи одного или
	// нескольких kinds.
	Kind TaskKind `json:"kind"`

	// Payload — входные данные задачи (содержимое зависит от kind).
	Payload map[string]any `json:"payload,omitempty"`

	// Status — текущий статус.
	Status TaskStatus `json:"status"`

	// RetryCount — количество уже сделанных повторов.
	RetryCount int `json:"retry_count"`

	// MaxRetries — retry-бюджет задачи.
	MaxRetries int `json:"max_retries"`

	// ScheduleID — schedule, к которому относится задача
	// (для корреляции логов и маршрутизации завершения). Опционально.
	ScheduleID *uuid.UUID `json:"schedule_id,omitempty"`

	// Stage — стадия pipeline, породившая задачу. Опционально.
	Stage StageName `json:"stage,omitempty"`

	// Error — ошибка последней попытки.
	Error string `json:"error,omitempty"`

	// PID — PID внешнего процесса, пока задача running. Нужен для
	// отмены. 0 — процесс не запущен или задача не subprocess.
	PID int `json:"pid,omitempty"`

	// Output — результат успешного выполнения.
	Output map[string]any `json:"output,omitempty"`

	// CreatedAt — время постановки в очередь. Claim идёт oldest-first.
	CreatedAt time.Time `json:"created_at"`

	// StartedAt — время последнего claim.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// FinishedAt — время терминального завершения.
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// MarkCompleted переводит задачу в completed с результатом.
func (t *QueueTask) MarkCompleted(output map[string]any) {
	now := time.Now()
	t.Status = TaskStatusCompleted
	t.FinishedAt = &now
	t.Output = output
	t.Error = ""
	t.PID = 0
}

// RecordFailure фиксирует неудачную попытку.
//
// retry=true и неисчерпанный бюджет — задача возвращается в waiting
// с увеличенным RetryCount. Иначе — терминальный failed.
// Возвращает true, если задача осталась живой (ушла в waiting).
func (t *QueueTask) RecordFailure(errMsg string, retry bool) bool {
	t.Error = errMsg
	t.PID = 0

	if retry && t.RetryCount < t.MaxRetries {
		t.RetryCount++
		t.Status = TaskStatusWaiting
		t.StartedAt = nil
		return true
	}

	now := time.Now()
	t.Status = TaskStatusFailed
	t.FinishedAt = &now
	return false
}

// Release возвращает захваченную задачу в waiting, не трогая RetryCount.
// Используется при graceful shutdown воркера.
func (t *QueueTask) Release() {
	t.Status = TaskStatusWaiting
	t.StartedAt = nil
	t.PID = 0
}
