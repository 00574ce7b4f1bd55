package domain

import (
	"time"

	"github.com/google/uuid"
)

// Privacy — видимость публикации на целевой платформе.
type Privacy string

const (
	PrivacyPublic   Privacy = "public"
	PrivacyUnlisted Privacy = "unlisted"
	PrivacyPrivate  Privacy = "private"
)

// ValidPrivacy проверяет, что значение входит в закрытый набор.
func ValidPrivacy(p Privacy) bool {
	switch p {
	case PrivacyPublic, PrivacyUnlisted, PrivacyPrivate:
		return true
	default:
		return false
	}
}

// Schedule — одно запланированное исполнение title.
//
// Schedule создаётся вызывающей стороной (или планировщиком по cadence
// канала) и проходит фиксированную цепочку стадий:
// script → video → upload → publish.
//
// Инвариант: прошедший ScheduledAt — append-only история. Обновления
// прошедшего schedule отклоняются, кроме перевода в терминальный статус.
type Schedule struct {
	// ID — уникальный идентификатор schedule.
	ID uuid.UUID `json:"id"`

	// TitleID — ссылка на title.
	TitleID uuid.UUID `json:"title_id"`

	// ScheduledAt — когда запустить pipeline. Должно быть в будущем,
	// если schedule не создан с force-флагом.
	ScheduledAt time.Time `json:"scheduled_at"`

	// PublishAt — время публикации на платформе. Может отличаться от
	// ScheduledAt (рендерим заранее, публикуем позже). Nil — публиковать
	// сразу по завершении upload.
	PublishAt *time.Time `json:"publish_at,omitempty"`

	// Privacy — видимость публикации.
	Privacy Privacy `json:"privacy"`

	// Status — текущий статус.
	Status ScheduleStatus `json:"status"`

	// Error — текст ошибки, если pipeline завершился терминально.
	Error string `json:"error,omitempty"`

	// UserID — владелец (копия Title.UserID для refund без join).
	UserID uuid.UUID `json:"user_id"`

	// CostCredits — списанные при создании кредиты. Возвращаются
	// Refund Handler'ом при терминальной ошибке.
	CostCredits int64 `json:"cost_credits"`

	// CreatedAt — время создания.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt — время последнего обновления.
	UpdatedAt time.Time `json:"updated_at"`
}

// IsDue проверяет, пора ли запускать pipeline.
func (s *Schedule) IsDue(now time.Time) bool {
	if s.Status != ScheduleStatusPending {
		return false
	}
	return !now.Before(s.ScheduledAt)
}

// IsPast возвращает true, если запланированное время уже прошло.
func (s *Schedule) IsPast(now time.Time) bool {
	return s.ScheduledAt.Before(now)
}

// MarkRunning переводит schedule в статус running.
func (s *Schedule) MarkRunning() {
	s.Status = ScheduleStatusRunning
	s.UpdatedAt = time.Now()
}

// MarkCompleted переводит schedule в статус completed.
func (s *Schedule) MarkCompleted() {
	s.Status = ScheduleStatusCompleted
	s.UpdatedAt = time.Now()
}

// MarkFailed переводит schedule в статус failed с ошибкой.
func (s *Schedule) MarkFailed(err string) {
	s.Status = ScheduleStatusFailed
	s.Error = err
	s.UpdatedAt = time.Now()
}
