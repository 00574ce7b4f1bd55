package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/Fabrika/internal/domain"
)

// QueueTaskRepo — репозиторий durable-очереди задач.
//
// Единственный корректностно-критичный примитив здесь — ClaimOldest:
// выборка и пометка running должны быть одной неделимой операцией,
// иначе два конкурирующих воркера исполнят одну задачу дважды.
type QueueTaskRepo struct {
	pool *pgxpool.Pool
}

// NewQueueTaskRepo создаёт новый QueueTaskRepo.
func NewQueueTaskRepo(pool *pgxpool.Pool) *QueueTaskRepo {
	return &QueueTaskRepo{pool: pool}
}

const queueTaskColumns = `
	id, kind, payload, status, retry_count, max_retries, schedule_id,
	stage, error, pid, output, created_at, started_at, finished_at
`

// Insert ставит задачу в очередь.
func (r *QueueTaskRepo) Insert(ctx context.Context, task *domain.QueueTask) error {
	payloadJSON, err := json.Marshal(task.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	query := `
		INSERT INTO queue_tasks (id, kind, payload, status, retry_count, max_retries,
		                         schedule_id, stage, error, pid, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err = r.pool.Exec(ctx, query,
		task.ID,
		task.Kind,
		payloadJSON,
		task.Status,
		task.RetryCount,
		task.MaxRetries,
		task.ScheduleID,
		nullString(string(task.Stage)),
		nullString(task.Error),
		nullInt(task.PID),
		task.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert queue task: %w", err)
	}
	return nil
}

// ClaimOldest атомарно захватывает старейшую waiting задачу данного kind.
//
// Один UPDATE: подзапрос с FOR UPDATE SKIP LOCKED выбирает кандидата и
// блокирует строку, внешний UPDATE помечает её running. Конкурирующий
// воркер пропустит заблокированную строку и возьмёт следующую (или
// ничего). Возвращает ErrNotFound, если очередь пуста — для вызывающего
// это не ошибка, а сигнал поспать и попробовать снова.
func (r *QueueTaskRepo) ClaimOldest(ctx context.Context, kind domain.TaskKind) (*domain.QueueTask, error) {
	query := `
		UPDATE queue_tasks
		SET status = 'running', started_at = now()
		WHERE id = (
			SELECT id FROM queue_tasks
			WHERE status = 'waiting' AND kind = $1
			ORDER BY created_at ASC
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		RETURNING ` + queueTaskColumns
	return r.scanTask(r.pool.QueryRow(ctx, query, kind))
}

// GetByID возвращает задачу по ID.
func (r *QueueTaskRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.QueueTask, error) {
	query := `SELECT ` + queueTaskColumns + ` FROM queue_tasks WHERE id = $1`
	return r.scanTask(r.pool.QueryRow(ctx, query, id))
}

// Update обновляет задачу.
func (r *QueueTaskRepo) Update(ctx context.Context, task *domain.QueueTask) error {
	payloadJSON, err := json.Marshal(task.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	outputJSON, err := json.Marshal(task.Output)
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}

	query := `
		UPDATE queue_tasks
		SET payload = $2, status = $3, retry_count = $4, error = $5,
		    pid = $6, output = $7, started_at = $8, finished_at = $9
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query,
		task.ID,
		payloadJSON,
		task.Status,
		task.RetryCount,
		nullString(task.Error),
		nullInt(task.PID),
		outputJSON,
		task.StartedAt,
		task.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("update queue task: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CancelWaiting терминально отменяет ещё не захваченную задачу.
//
// Условный UPDATE waiting → failed: если задачу успел захватить воркер
// (или она уже завершена), строка не подходит под WHERE и возвращается
// ErrNotFound — отмену тогда нужно доставлять держателю через control
// exchange.
func (r *QueueTaskRepo) CancelWaiting(ctx context.Context, id uuid.UUID, errMsg string) (*domain.QueueTask, error) {
	query := `
		UPDATE queue_tasks
		SET status = 'failed', error = $2, finished_at = now()
		WHERE id = $1 AND status = 'waiting'
		RETURNING ` + queueTaskColumns
	return r.scanTask(r.pool.QueryRow(ctx, query, id, nullString(errMsg)))
}

// SetPID записывает PID внешнего процесса на захваченной задаче.
func (r *QueueTaskRepo) SetPID(ctx context.Context, id uuid.UUID, pid int) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE queue_tasks SET pid = $2 WHERE id = $1 AND status = 'running'
	`, id, nullInt(pid))
	if err != nil {
		return fmt.Errorf("set queue task pid: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// List возвращает задачи с фильтрацией по kind и статусу.
func (r *QueueTaskRepo) List(ctx context.Context, kind *domain.TaskKind, status *domain.TaskStatus, limit int) ([]domain.QueueTask, error) {
	query := `
		SELECT ` + queueTaskColumns + `
		FROM queue_tasks
		WHERE ($1::text IS NULL OR kind = $1)
		  AND ($2::text IS NULL OR status = $2)
		ORDER BY created_at ASC
		LIMIT $3
	`
	var kindArg, statusArg *string
	if kind != nil {
		k := string(*kind)
		kindArg = &k
	}
	if status != nil {
		s := string(*status)
		statusArg = &s
	}

	rows, err := r.pool.Query(ctx, query, kindArg, statusArg, limit)
	if err != nil {
		return nil, fmt.Errorf("list queue tasks: %w", err)
	}
	defer rows.Close()

	var tasks []domain.QueueTask
	for rows.Next() {
		task, err := r.scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}

// --- Helpers ---

func (r *QueueTaskRepo) scanTask(row pgx.Row) (*domain.QueueTask, error) {
	var task domain.QueueTask
	var payloadJSON, outputJSON []byte
	var stage, errText *string
	var pid *int

	err := row.Scan(
		&task.ID,
		&task.Kind,
		&payloadJSON,
		&task.Status,
		&task.RetryCount,
		&task.MaxRetries,
		&task.ScheduleID,
		&stage,
		&errText,
		&pid,
		&outputJSON,
		&task.CreatedAt,
		&task.StartedAt,
		&task.FinishedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan queue task: %w", err)
	}

	if payloadJSON != nil {
		if err := json.Unmarshal(payloadJSON, &task.Payload); err != nil {
			return nil, fmt.Errorf("unmarshal payload: %w", err)
		}
	}
	if outputJSON != nil {
		if err := json.Unmarshal(outputJSON, &task.Output); err != nil {
			return nil, fmt.Errorf("unmarshal output: %w", err)
		}
	}
	if stage != nil {
		task.Stage = domain.StageName(*stage)
	}
	if errText != nil {
		task.Error = *errText
	}
	if pid != nil {
		task.PID = *pid
	}

	return &task, nil
}
