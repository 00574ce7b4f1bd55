package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/Fabrika/internal/domain"
)

// LedgerRepo — кредитный баланс пользователей и refunds.
//
// Все денежные операции идут в транзакциях: списание вместе с созданием
// schedule, возврат вместе с переводом schedule в failed. Частичных
// состояний (списано, но не создано; возвращено дважды) быть не может.
type LedgerRepo struct {
	pool *pgxpool.Pool
}

// NewLedgerRepo создаёт новый LedgerRepo.
func NewLedgerRepo(pool *pgxpool.Pool) *LedgerRepo {
	return &LedgerRepo{pool: pool}
}

// GetBalance возвращает баланс пользователя (0, если счёта ещё нет).
func (r *LedgerRepo) GetBalance(ctx context.Context, userID uuid.UUID) (int64, error) {
	var balance int64
	err := r.pool.QueryRow(ctx, `
		SELECT balance FROM credit_accounts WHERE user_id = $1
	`, userID).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get balance: %w", err)
	}
	return balance, nil
}

// Deposit пополняет баланс (создаёт счёт при первом пополнении).
func (r *LedgerRepo) Deposit(ctx context.Context, userID uuid.UUID, amount int64) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO credit_accounts (user_id, balance, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (user_id) DO UPDATE
		SET balance = credit_accounts.balance + EXCLUDED.balance, updated_at = now()
	`, userID, amount)
	if err != nil {
		return fmt.Errorf("deposit: %w", err)
	}
	return nil
}

// WithTx выполняет fn в транзакции с commit/rollback.
func (r *LedgerRepo) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// ChargeTx списывает кредиты внутри внешней транзакции.
// Условный UPDATE гарантирует неотрицательный баланс; при нехватке
// средств возвращается ErrInsufficientCredits и транзакция откатывается
// вызывающей стороной.
func (r *LedgerRepo) ChargeTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount int64) error {
	if amount <= 0 {
		return nil
	}

	result, err := tx.Exec(ctx, `
		UPDATE credit_accounts
		SET balance = balance - $2, updated_at = now()
		WHERE user_id = $1 AND balance >= $2
	`, userID, amount)
	if err != nil {
		return fmt.Errorf("charge: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrInsufficientCredits
	}
	return nil
}

// ChargedCreator создаёт schedule и списывает его стоимость в одной
// транзакции: либо кредиты списаны и schedule создан, либо ни то ни
// другое.
type ChargedCreator struct {
	ledger    *LedgerRepo
	schedules *ScheduleRepo
}

// NewChargedCreator создаёт ChargedCreator.
func NewChargedCreator(ledger *LedgerRepo, schedules *ScheduleRepo) *ChargedCreator {
	return &ChargedCreator{ledger: ledger, schedules: schedules}
}

// CreateCharged списывает CostCredits с баланса UserID и создаёт
// schedule. При нехватке средств возвращает ErrInsufficientCredits.
func (c *ChargedCreator) CreateCharged(ctx context.Context, sched *domain.Schedule) error {
	return c.ledger.WithTx(ctx, func(tx pgx.Tx) error {
		if sched.CostCredits > 0 {
			if err := c.ledger.ChargeTx(ctx, tx, sched.UserID, sched.CostCredits); err != nil {
				return err
			}
		}
		return c.schedules.CreateTx(ctx, tx, sched)
	})
}

// ApplyRefund атомарно выполняет возврат за терминально упавший schedule.
//
// В одной транзакции:
//  1. insert в refunds с ON CONFLICT (schedule_id) DO NOTHING —
//     идемпотентный барьер против двойного возврата;
//  2. зачисление на баланс — только если insert прошёл;
//  3. перевод schedule в failed.
//
// Возвращает true, если возврат был зачислен этим вызовом, и false,
// если refund для schedule уже существовал (повторный вызов — no-op,
// баланс не меняется).
func (r *LedgerRepo) ApplyRefund(ctx context.Context, refund *domain.Refund) (bool, error) {
	var applied bool

	err := r.WithTx(ctx, func(tx pgx.Tx) error {
		result, err := tx.Exec(ctx, `
			INSERT INTO refunds (id, schedule_id, user_id, amount, reason, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (schedule_id) DO NOTHING
		`, refund.ID, refund.ScheduleID, refund.UserID, refund.Amount, refund.Reason, refund.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert refund: %w", err)
		}

		applied = result.RowsAffected() == 1
		if applied && refund.Amount > 0 {
			_, err = tx.Exec(ctx, `
				INSERT INTO credit_accounts (user_id, balance, updated_at)
				VALUES ($1, $2, now())
				ON CONFLICT (user_id) DO UPDATE
				SET balance = credit_accounts.balance + EXCLUDED.balance, updated_at = now()
			`, refund.UserID, refund.Amount)
			if err != nil {
				return fmt.Errorf("credit balance: %w", err)
			}
		}

		// Статус schedule пишется в той же транзакции, что и возврат:
		// оба эффекта либо фиксируются вместе, либо откатываются вместе.
		_, err = tx.Exec(ctx, `
			UPDATE schedules
			SET status = 'failed', error = $2, updated_at = now()
			WHERE id = $1
		`, refund.ScheduleID, nullString(refund.Reason))
		if err != nil {
			return fmt.Errorf("mark schedule failed: %w", err)
		}

		return nil
	})
	if err != nil {
		return false, err
	}
	return applied, nil
}
