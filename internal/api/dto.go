package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Fabrika/internal/domain"
)

// Title DTOs

// CreateTitleRequest — запрос на создание title.
type CreateTitleRequest struct {
	Text        string   `json:"text"`
	ContentType string   `json:"content_type"`
	Category    string   `json:"category,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Priority    int      `json:"priority,omitempty"`
	ChannelID   string   `json:"channel_id"`
	UserID      string   `json:"user_id"`
}

// UpdateTitleRequest — запрос на обновление title.
type UpdateTitleRequest struct {
	Text     *string   `json:"text,omitempty"`
	Category *string   `json:"category,omitempty"`
	Tags     *[]string `json:"tags,omitempty"`
	Priority *int      `json:"priority,omitempty"`
}

// Schedule DTOs

// CreateScheduleRequest — запрос на создание schedule для title.
type CreateScheduleRequest struct {
	ScheduledAt  time.Time  `json:"scheduled_at"`
	PublishAt    *time.Time `json:"publish_at,omitempty"`
	Privacy      string     `json:"privacy,omitempty"`
	ForceExecute bool       `json:"force_execute,omitempty"`
}

// UpdateScheduleTimeRequest — запрос на перенос schedule.
type UpdateScheduleTimeRequest struct {
	NewTime time.Time `json:"new_time"`
	Force   bool      `json:"force,omitempty"`
}

// UpdateScheduleStatusRequest — запрос на смену статуса schedule.
type UpdateScheduleStatusRequest struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Queue task DTOs

// EnqueueTaskRequest — запрос на постановку задачи в очередь.
type EnqueueTaskRequest struct {
	Kind       string         `json:"kind"`
	Payload    map[string]any `json:"payload,omitempty"`
	MaxRetries *int           `json:"max_retries,omitempty"`
}

// PipelineDetailResponse — стадии и логи schedule для status-polling UI.
type PipelineDetailResponse struct {
	Schedule *domain.Schedule       `json:"schedule"`
	Stages   []domain.PipelineStage `json:"stages"`
	Logs     []domain.LogEntry      `json:"logs"`
}

// Channel DTOs

// ChannelRequest — запрос на создание/обновление настроек канала.
type ChannelRequest struct {
	Name          string   `json:"name"`
	PostingMode   string   `json:"posting_mode"`
	IntervalValue int      `json:"interval_value,omitempty"`
	IntervalUnit  string   `json:"interval_unit,omitempty"`
	Weekdays      []int    `json:"weekdays,omitempty"`
	TimeOfDay     string   `json:"time_of_day,omitempty"`
	CronExpr      string   `json:"cron_expr,omitempty"`
	Timezone      string   `json:"timezone,omitempty"`
	Active        *bool    `json:"active,omitempty"`
	Categories    []string `json:"categories,omitempty"`
}

// toSetting конвертирует запрос в domain.ChannelSetting.
func (r *ChannelRequest) toSetting(id uuid.UUID) *domain.ChannelSetting {
	weekdays := make([]time.Weekday, len(r.Weekdays))
	for i, d := range r.Weekdays {
		weekdays[i] = time.Weekday(d)
	}

	active := true
	if r.Active != nil {
		active = *r.Active
	}

	return &domain.ChannelSetting{
		ID:            id,
		Name:          r.Name,
		PostingMode:   domain.PostingMode(r.PostingMode),
		IntervalValue: r.IntervalValue,
		IntervalUnit:  domain.IntervalUnit(r.IntervalUnit),
		Weekdays:      weekdays,
		TimeOfDay:     r.TimeOfDay,
		CronExpr:      r.CronExpr,
		Timezone:      r.Timezone,
		Active:        active,
		Categories:    r.Categories,
	}
}

// Credit DTOs

// DepositRequest — запрос на пополнение баланса.
type DepositRequest struct {
	Amount int64 `json:"amount"`
}

// BalanceResponse — баланс пользователя.
type BalanceResponse struct {
	UserID  uuid.UUID `json:"user_id"`
	Balance int64     `json:"balance"`
}
