package domain

import (
	"time"

	"github.com/google/uuid"
)

// StageName — имя стадии pipeline.
type StageName string

// Стадии в порядке выполнения.
const (
	StageScript  StageName = "script"
	StageVideo   StageName = "video"
	StageUpload  StageName = "upload"
	StagePublish StageName = "publish"
)

// StageOrder — фиксированный порядок стадий. Стадия не может начаться,
// пока предыдущая не completed.
var StageOrder = []StageName{StageScript, StageVideo, StageUpload, StagePublish}

// StageIndex возвращает позицию стадии в цепочке, -1 если имя неизвестно.
func StageIndex(name StageName) int {
	for i, n := range StageOrder {
		if n == name {
			return i
		}
	}
	return -1
}

// PipelineStage — одна строка на пару (schedule, стадия).
type PipelineStage struct {
	// ID — уникальный идентификатор строки.
	ID uuid.UUID `json:"id"`

	// ScheduleID — ссылка на schedule.
	ScheduleID uuid.UUID `json:"schedule_id"`

	// Name — имя стадии.
	Name StageName `json:"name"`

	// Status — текущий статус стадии.
	Status StageStatus `json:"status"`

	// Output — результат стадии, доступный следующим стадиям.
	// script кладёт сцены, video — путь к файлу, upload — media_id.
	Output map[string]any `json:"output,omitempty"`

	// StartedAt — время начала последней попытки.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// CompletedAt — время успешного завершения.
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Error — ошибка последней неудачной попытки.
	Error string `json:"error,omitempty"`

	// RetryCount — количество уже сделанных повторов.
	RetryCount int `json:"retry_count"`

	// CreatedAt — время создания строки.
	CreatedAt time.Time `json:"created_at"`
}

// MarkRunning переводит стадию в running.
func (p *PipelineStage) MarkRunning() {
	now := time.Now()
	p.Status = StageStatusRunning
	p.StartedAt = &now
}

// MarkCompleted переводит стадию в completed с результатом.
func (p *PipelineStage) MarkCompleted(output map[string]any) {
	now := time.Now()
	p.Status = StageStatusCompleted
	p.CompletedAt = &now
	p.Output = output
	p.Error = ""
}

// MarkFailed переводит стадию в failed с ошибкой.
func (p *PipelineStage) MarkFailed(err string) {
	p.Status = StageStatusFailed
	p.Error = err
}

// ResetForRetry возвращает стадию в pending для повторной попытки.
// RetryCount увеличивает вызывающая сторона после проверки бюджета.
func (p *PipelineStage) ResetForRetry() {
	p.Status = StageStatusPending
	p.StartedAt = nil
	p.CompletedAt = nil
}

// CanRetry проверяет, остался ли retry-бюджет.
func (p *PipelineStage) CanRetry(maxRetries int) bool {
	return p.RetryCount < maxRetries
}
