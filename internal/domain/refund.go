package domain

import (
	"time"

	"github.com/google/uuid"
)

// Refund — возврат кредитов за терминально упавший schedule.
//
// Инвариант: не более одного refund на schedule. Уникальность по
// ScheduleID — идемпотентный барьер против двойного возврата.
type Refund struct {
	// ID — уникальный идентификатор refund.
	ID uuid.UUID `json:"id"`

	// ScheduleID — упавший schedule. Уникален.
	ScheduleID uuid.UUID `json:"schedule_id"`

	// UserID — получатель возврата.
	UserID uuid.UUID `json:"user_id"`

	// Amount — сумма в кредитах.
	Amount int64 `json:"amount"`

	// Reason — причина (текст терминальной ошибки).
	Reason string `json:"reason"`

	// CreatedAt — время возврата.
	CreatedAt time.Time `json:"created_at"`
}

// CreditAccount — баланс кредитов пользователя.
type CreditAccount struct {
	UserID    uuid.UUID `json:"user_id"`
	Balance   int64     `json:"balance"`
	UpdatedAt time.Time `json:"updated_at"`
}
