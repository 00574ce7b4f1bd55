package domain

import (
	"time"

	"github.com/google/uuid"
)

// LogLevel — уровень записи лога.
type LogLevel string

const (
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// LogEntry — append-only запись, привязанная к schedule или задаче.
//
// Записи никогда не мутируются и не удаляются, кроме bulk retention
// cleanup. Это единственный источник истории для status-polling UI.
type LogEntry struct {
	// ID — уникальный идентификатор записи.
	ID uuid.UUID `json:"id"`

	// ScheduleID — schedule, к которому относится запись. Опционально.
	ScheduleID *uuid.UUID `json:"schedule_id,omitempty"`

	// TaskID — задача очереди, к которой относится запись. Опционально.
	TaskID *uuid.UUID `json:"task_id,omitempty"`

	// Level — уровень.
	Level LogLevel `json:"level"`

	// Message — текст записи.
	Message string `json:"message"`

	// Meta — структурированные метаданные (stage, attempt и т.п.).
	Meta map[string]any `json:"meta,omitempty"`

	// CreatedAt — время записи.
	CreatedAt time.Time `json:"created_at"`
}
