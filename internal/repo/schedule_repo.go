package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/Fabrika/internal/domain"
)

// ScheduleRepo — репозиторий для работы с schedules.
type ScheduleRepo struct {
	pool *pgxpool.Pool
}

// NewScheduleRepo создаёт новый ScheduleRepo.
func NewScheduleRepo(pool *pgxpool.Pool) *ScheduleRepo {
	return &ScheduleRepo{pool: pool}
}

// ScheduleFilter — фильтр для списка schedules.
type ScheduleFilter struct {
	TitleID   *uuid.UUID
	ChannelID *uuid.UUID
	Status    *domain.ScheduleStatus
	From      *time.Time
	To        *time.Time
	Limit     int
	Offset    int
}

// ScheduleWithTitle — schedule с метаданными title (для списков).
type ScheduleWithTitle struct {
	domain.Schedule

	TitleText   string             `json:"title_text"`
	ContentType domain.ContentType `json:"content_type"`
	Category    string             `json:"category,omitempty"`
	ChannelID   uuid.UUID          `json:"channel_id"`
}

const scheduleColumns = `
	s.id, s.title_id, s.scheduled_at, s.publish_at, s.privacy, s.status,
	s.error, s.user_id, s.cost_credits, s.created_at, s.updated_at
`

// Create создаёт новый schedule.
func (r *ScheduleRepo) Create(ctx context.Context, schedule *domain.Schedule) error {
	return r.create(ctx, r.pool, schedule)
}

// CreateTx создаёт schedule внутри внешней транзакции
// (используется при списании кредитов вместе с созданием).
func (r *ScheduleRepo) CreateTx(ctx context.Context, tx pgx.Tx, schedule *domain.Schedule) error {
	return r.create(ctx, tx, schedule)
}

// execQuerier покрывает и pgxpool.Pool, и pgx.Tx.
type execQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// create — общая вставка для pool и tx.
func (r *ScheduleRepo) create(ctx context.Context, q execQuerier, schedule *domain.Schedule) error {
	query := `
		INSERT INTO schedules (id, title_id, scheduled_at, publish_at, privacy,
		                       status, error, user_id, cost_credits, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := q.Exec(ctx, query,
		schedule.ID,
		schedule.TitleID,
		schedule.ScheduledAt,
		schedule.PublishAt,
		schedule.Privacy,
		schedule.Status,
		nullString(schedule.Error),
		schedule.UserID,
		schedule.CostCredits,
		schedule.CreatedAt,
		schedule.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert schedule: %w", err)
	}
	return nil
}

// GetByID возвращает schedule по ID.
func (r *ScheduleRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Schedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM schedules s WHERE s.id = $1`
	return r.scanSchedule(r.pool.QueryRow(ctx, query, id))
}

// List возвращает schedules, соединённые с метаданными title,
// по умолчанию в порядке scheduled_at ASC.
func (r *ScheduleRepo) List(ctx context.Context, filter ScheduleFilter) ([]ScheduleWithTitle, error) {
	query := `
		SELECT ` + scheduleColumns + `,
		       t.text, t.content_type, t.category, t.channel_id
		FROM schedules s
		JOIN titles t ON t.id = s.title_id
		WHERE ($1::uuid IS NULL OR s.title_id = $1)
		  AND ($2::uuid IS NULL OR t.channel_id = $2)
		  AND ($3::text IS NULL OR s.status = $3)
		  AND ($4::timestamptz IS NULL OR s.scheduled_at >= $4)
		  AND ($5::timestamptz IS NULL OR s.scheduled_at <= $5)
		ORDER BY s.scheduled_at ASC
		LIMIT $6 OFFSET $7
	`
	var status *string
	if filter.Status != nil {
		s := string(*filter.Status)
		status = &s
	}

	rows, err := r.pool.Query(ctx, query,
		filter.TitleID,
		filter.ChannelID,
		status,
		filter.From,
		filter.To,
		filter.Limit,
		filter.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	defer rows.Close()

	var result []ScheduleWithTitle
	for rows.Next() {
		var item ScheduleWithTitle
		var errText, category *string

		err := rows.Scan(
			&item.ID,
			&item.TitleID,
			&item.ScheduledAt,
			&item.PublishAt,
			&item.Privacy,
			&item.Status,
			&errText,
			&item.UserID,
			&item.CostCredits,
			&item.CreatedAt,
			&item.UpdatedAt,
			&item.TitleText,
			&item.ContentType,
			&category,
			&item.ChannelID,
		)
		if err != nil {
			return nil, fmt.Errorf("scan schedule row: %w", err)
		}
		if errText != nil {
			item.Error = *errText
		}
		if category != nil {
			item.Category = *category
		}
		result = append(result, item)
	}
	return result, rows.Err()
}

// ListDue возвращает pending schedules с истекшим scheduled_at.
func (r *ScheduleRepo) ListDue(ctx context.Context, now time.Time, limit int) ([]domain.Schedule, error) {
	query := `
		SELECT ` + scheduleColumns + `
		FROM schedules s
		WHERE s.status = 'pending'
		  AND s.scheduled_at <= $1
		ORDER BY s.scheduled_at ASC
		LIMIT $2
	`
	return r.queryMany(ctx, query, now, limit)
}

// ListRunning возвращает running schedules (polling fallback executor'а).
func (r *ScheduleRepo) ListRunning(ctx context.Context, limit int) ([]domain.Schedule, error) {
	query := `
		SELECT ` + scheduleColumns + `
		FROM schedules s
		WHERE s.status = 'running'
		ORDER BY s.updated_at ASC
		LIMIT $1
	`
	return r.queryMany(ctx, query, limit)
}

// HasUpcoming проверяет, есть ли у канала незавершённый schedule в будущем.
// Используется планировщиком, чтобы не дублировать автопланирование.
func (r *ScheduleRepo) HasUpcoming(ctx context.Context, channelID uuid.UUID, now time.Time) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM schedules s
			JOIN titles t ON t.id = s.title_id
			WHERE t.channel_id = $1
			  AND s.status IN ('pending', 'running')
			  AND s.scheduled_at >= $2
		)
	`, channelID, now).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check upcoming schedules: %w", err)
	}
	return exists, nil
}

// LastScheduledAt возвращает время последнего schedule канала
// (для расчёта следующего слота по cadence). Nil — публикаций не было.
func (r *ScheduleRepo) LastScheduledAt(ctx context.Context, channelID uuid.UUID) (*time.Time, error) {
	var last *time.Time
	err := r.pool.QueryRow(ctx, `
		SELECT MAX(s.scheduled_at)
		FROM schedules s
		JOIN titles t ON t.id = s.title_id
		WHERE t.channel_id = $1
	`, channelID).Scan(&last)
	if err != nil {
		return nil, fmt.Errorf("last scheduled_at: %w", err)
	}
	return last, nil
}

// ClaimDue атомарно переводит pending schedule в running.
//
// Conditional UPDATE: два конкурирующих планировщика не могут запустить
// один schedule дважды — проигравший получает false.
func (r *ScheduleRepo) ClaimDue(ctx context.Context, id uuid.UUID) (bool, error) {
	result, err := r.pool.Exec(ctx, `
		UPDATE schedules
		SET status = 'running', updated_at = now()
		WHERE id = $1 AND status = 'pending'
	`, id)
	if err != nil {
		return false, fmt.Errorf("claim schedule: %w", err)
	}
	return result.RowsAffected() == 1, nil
}

// UpdateStatus обновляет статус schedule (и текст ошибки для failed).
func (r *ScheduleRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.ScheduleStatus, errMsg string) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE schedules
		SET status = $2, error = $3, updated_at = now()
		WHERE id = $1
	`, id, status, nullString(errMsg))
	if err != nil {
		return fmt.Errorf("update schedule status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateTime переносит schedule на новое время.
//
// Инвариант append-only истории: прошедший schedule менять нельзя,
// если force не установлен. Условие проверяется тем же UPDATE'ом,
// что исключает гонку между проверкой и записью.
func (r *ScheduleRepo) UpdateTime(ctx context.Context, id uuid.UUID, newTime time.Time, force bool) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE schedules
		SET scheduled_at = $2, updated_at = now()
		WHERE id = $1
		  AND status = 'pending'
		  AND (scheduled_at > now() OR $3)
	`, id, newTime, force)
	if err != nil {
		return fmt.Errorf("update schedule time: %w", err)
	}
	if result.RowsAffected() == 0 {
		// Различаем "нет записи" и "запись есть, но менять нельзя".
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return getErr
		}
		return ErrInvalidState
	}
	return nil
}

// Delete удаляет schedule. Running schedule удалить нельзя.
func (r *ScheduleRepo) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `
		DELETE FROM schedules WHERE id = $1 AND status <> 'running'
	`, id)
	if err != nil {
		return fmt.Errorf("delete schedule: %w", err)
	}
	if result.RowsAffected() == 0 {
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return getErr
		}
		return ErrInvalidState
	}
	return nil
}

// --- Helpers ---

func (r *ScheduleRepo) queryMany(ctx context.Context, query string, args ...any) ([]domain.Schedule, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query schedules: %w", err)
	}
	defer rows.Close()

	var schedules []domain.Schedule
	for rows.Next() {
		schedule, err := r.scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		schedules = append(schedules, *schedule)
	}
	return schedules, rows.Err()
}

func (r *ScheduleRepo) scanSchedule(row pgx.Row) (*domain.Schedule, error) {
	var schedule domain.Schedule
	var errText *string

	err := row.Scan(
		&schedule.ID,
		&schedule.TitleID,
		&schedule.ScheduledAt,
		&schedule.PublishAt,
		&schedule.Privacy,
		&schedule.Status,
		&errText,
		&schedule.UserID,
		&schedule.CostCredits,
		&schedule.CreatedAt,
		&schedule.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan schedule: %w", err)
	}

	if errText != nil {
		schedule.Error = *errText
	}
	return &schedule, nil
}
