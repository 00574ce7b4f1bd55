package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/Fabrika/internal/domain"
)

// LogRepo — репозиторий append-only логов.
type LogRepo struct {
	pool *pgxpool.Pool
}

// NewLogRepo создаёт новый LogRepo.
func NewLogRepo(pool *pgxpool.Pool) *LogRepo {
	return &LogRepo{pool: pool}
}

// Append добавляет запись. Записи не мутируются и не удаляются
// (кроме retention cleanup).
func (r *LogRepo) Append(ctx context.Context, entry *domain.LogEntry) error {
	metaJSON, err := json.Marshal(entry.Meta)
	if err != nil {
		return fmt.Errorf("marshal meta: %w", err)
	}

	query := `
		INSERT INTO log_entries (id, schedule_id, task_id, level, message, meta, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = r.pool.Exec(ctx, query,
		entry.ID,
		entry.ScheduleID,
		entry.TaskID,
		entry.Level,
		entry.Message,
		metaJSON,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert log entry: %w", err)
	}
	return nil
}

// ListBySchedule возвращает логи schedule в хронологическом порядке.
func (r *LogRepo) ListBySchedule(ctx context.Context, scheduleID uuid.UUID, limit int) ([]domain.LogEntry, error) {
	query := `
		SELECT id, schedule_id, task_id, level, message, meta, created_at
		FROM log_entries
		WHERE schedule_id = $1
		ORDER BY created_at ASC
		LIMIT $2
	`
	return r.queryMany(ctx, query, scheduleID, limit)
}

// ListByTask возвращает логи задачи в хронологическом порядке.
func (r *LogRepo) ListByTask(ctx context.Context, taskID uuid.UUID, limit int) ([]domain.LogEntry, error) {
	query := `
		SELECT id, schedule_id, task_id, level, message, meta, created_at
		FROM log_entries
		WHERE task_id = $1
		ORDER BY created_at ASC
		LIMIT $2
	`
	return r.queryMany(ctx, query, taskID, limit)
}

// DeleteOlderThan — bulk retention cleanup.
// Единственный разрешённый способ удаления логов.
func (r *LogRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.pool.Exec(ctx, `
		DELETE FROM log_entries WHERE created_at < $1
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete old log entries: %w", err)
	}
	return result.RowsAffected(), nil
}

// --- Helpers ---

func (r *LogRepo) queryMany(ctx context.Context, query string, args ...any) ([]domain.LogEntry, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query log entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.LogEntry
	for rows.Next() {
		var entry domain.LogEntry
		var metaJSON []byte

		err := rows.Scan(
			&entry.ID,
			&entry.ScheduleID,
			&entry.TaskID,
			&entry.Level,
			&entry.Message,
			&metaJSON,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan log entry: %w", err)
		}

		if metaJSON != nil {
			if err := json.Unmarshal(metaJSON, &entry.Meta); err != nil {
				return nil, fmt.Errorf("unmarshal meta: %w", err)
			}
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
