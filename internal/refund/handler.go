// Package refund возвращает кредиты за терминально упавшие schedules.
//
// Возврат идемпотентен: refunds(schedule_id) уникален, повторный вызов
// для того же schedule — no-op. Запись refund, пополнение баланса и
// перевод schedule в failed происходят в одной транзакции — система не
// может увидеть упавший schedule без возврата или возврат без упавшего
// schedule.
package refund

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Fabrika/internal/domain"
	"github.com/shaiso/Fabrika/internal/telemetry"
)

// Ledger применяет возврат атомарно.
// Продакшн-реализация — repo.LedgerRepo.ApplyRefund: одна транзакция,
// возвращает false, если возврат для schedule уже был.
type Ledger interface {
	ApplyRefund(ctx context.Context, refund *domain.Refund) (bool, error)
}

// AuditLog принимает append-only записи о возвратах.
// Продакшн-реализация — repo.LogRepo. Nil допустим.
type AuditLog interface {
	Append(ctx context.Context, entry *domain.LogEntry) error
}

// Handler — обработчик возвратов. Реализует pipeline.Refunder.
type Handler struct {
	ledger Ledger
	audit  AuditLog
	logger *slog.Logger
}

// NewHandler создаёт Handler.
func NewHandler(ledger Ledger, audit AuditLog, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{ledger: ledger, audit: audit, logger: logger}
}

// Refund возвращает кредиты за schedule и переводит его в failed.
//
// Schedule без стоимости (CostCredits == 0) тоже проходит через Ledger:
// строка refund с нулевой суммой ставит идемпотентный барьер и
// атомарно пишет failed-статус.
func (h *Handler) Refund(ctx context.Context, sched *domain.Schedule, reason string) error {
	ref := &domain.Refund{
		ID:         uuid.New(),
		ScheduleID: sched.ID,
		UserID:     sched.UserID,
		Amount:     sched.CostCredits,
		Reason:     reason,
		CreatedAt:  time.Now(),
	}

	applied, err := h.ledger.ApplyRefund(ctx, ref)
	if err != nil {
		return fmt.Errorf("apply refund: %w", err)
	}

	if !applied {
		// Возврат уже был — повторная доставка terminal-события
		h.logger.Debug("refund already applied",
			"schedule_id", sched.ID,
			"user_id", sched.UserID,
		)
		return nil
	}

	telemetry.RefundsApplied.Inc()

	h.logger.Info("refund applied",
		"schedule_id", sched.ID,
		"user_id", sched.UserID,
		"amount", ref.Amount,
		"reason", reason,
	)

	h.appendAudit(ctx, sched, ref)
	return nil
}

// appendAudit пишет запись о возврате в лог schedule. Не фатально.
func (h *Handler) appendAudit(ctx context.Context, sched *domain.Schedule, ref *domain.Refund) {
	if h.audit == nil {
		return
	}

	scheduleID := sched.ID
	entry := &domain.LogEntry{
		ID:         uuid.New(),
		ScheduleID: &scheduleID,
		Level:      domain.LogLevelInfo,
		Message:    "credits refunded",
		Meta: map[string]any{
			"event":  "refund_applied",
			"amount": ref.Amount,
			"reason": ref.Reason,
		},
		CreatedAt: time.Now(),
	}

	if err := h.audit.Append(ctx, entry); err != nil {
		h.logger.Warn("failed to append refund audit log",
			"schedule_id", sched.ID,
			"error", err,
		)
	}
}
