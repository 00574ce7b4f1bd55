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

// TitleRepo — репозиторий для работы с titles.
type TitleRepo struct {
	pool *pgxpool.Pool
}

// NewTitleRepo создаёт новый TitleRepo.
func NewTitleRepo(pool *pgxpool.Pool) *TitleRepo {
	return &TitleRepo{pool: pool}
}

// TitleFilter — фильтр для списка titles.
type TitleFilter struct {
	Status    *domain.TitleStatus
	ChannelID *uuid.UUID
	Category  *string
	Limit     int
	Offset    int
}

// Create создаёт новый title.
func (r *TitleRepo) Create(ctx context.Context, title *domain.Title) error {
	tagsJSON, err := json.Marshal(title.Tags)
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}

	query := `
		INSERT INTO titles (id, text, content_type, category, tags, priority,
		                    channel_id, user_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err = r.pool.Exec(ctx, query,
		title.ID,
		title.Text,
		title.ContentType,
		nullString(title.Category),
		tagsJSON,
		title.Priority,
		title.ChannelID,
		title.UserID,
		title.Status,
		title.CreatedAt,
		title.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert title: %w", err)
	}
	return nil
}

// GetByID возвращает title по ID.
func (r *TitleRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Title, error) {
	query := `
		SELECT id, text, content_type, category, tags, priority,
		       channel_id, user_id, status, created_at, updated_at
		FROM titles
		WHERE id = $1
	`
	return r.scanTitle(r.pool.QueryRow(ctx, query, id))
}

// List возвращает titles с фильтрацией.
func (r *TitleRepo) List(ctx context.Context, filter TitleFilter) ([]domain.Title, error) {
	query := `
		SELECT id, text, content_type, category, tags, priority,
		       channel_id, user_id, status, created_at, updated_at
		FROM titles
		WHERE ($1::text IS NULL OR status = $1)
		  AND ($2::uuid IS NULL OR channel_id = $2)
		  AND ($3::text IS NULL OR category = $3)
		ORDER BY priority DESC, created_at ASC
		LIMIT $4 OFFSET $5
	`
	var status *string
	if filter.Status != nil {
		s := string(*filter.Status)
		status = &s
	}

	rows, err := r.pool.Query(ctx, query,
		status,
		filter.ChannelID,
		filter.Category,
		filter.Limit,
		filter.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list titles: %w", err)
	}
	defer rows.Close()

	var titles []domain.Title
	for rows.Next() {
		title, err := r.scanTitleFromRows(rows)
		if err != nil {
			return nil, err
		}
		titles = append(titles, *title)
	}
	return titles, rows.Err()
}

// NextPlannable возвращает pending title с наивысшим приоритетом для
// канала, опционально ограниченный allow-list'ом категорий.
// Используется планировщиком при автопланировании по cadence.
func (r *TitleRepo) NextPlannable(ctx context.Context, channelID uuid.UUID, categories []string) (*domain.Title, error) {
	query := `
		SELECT id, text, content_type, category, tags, priority,
		       channel_id, user_id, status, created_at, updated_at
		FROM titles
		WHERE channel_id = $1
		  AND status = 'pending'
		  AND (cardinality($2::text[]) = 0 OR category = ANY($2))
		ORDER BY priority DESC, created_at ASC
		LIMIT 1
	`
	if categories == nil {
		categories = []string{}
	}
	return r.scanTitle(r.pool.QueryRow(ctx, query, channelID, categories))
}

// Update обновляет title.
func (r *TitleRepo) Update(ctx context.Context, title *domain.Title) error {
	tagsJSON, err := json.Marshal(title.Tags)
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}

	query := `
		UPDATE titles
		SET text = $2, content_type = $3, category = $4, tags = $5,
		    priority = $6, channel_id = $7, status = $8, updated_at = $9
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query,
		title.ID,
		title.Text,
		title.ContentType,
		nullString(title.Category),
		tagsJSON,
		title.Priority,
		title.ChannelID,
		title.Status,
		title.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update title: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateStatus обновляет только статус title.
func (r *TitleRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.TitleStatus) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE titles SET status = $2, updated_at = now() WHERE id = $1
	`, id, status)
	if err != nil {
		return fmt.Errorf("update title status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete удаляет title.
//
// Без cascade удаление отклоняется, пока существуют schedules.
// С cascade=true удаляются и schedules со стадиями (ON DELETE CASCADE).
func (r *TitleRepo) Delete(ctx context.Context, id uuid.UUID, cascade bool) error {
	if !cascade {
		var count int
		err := r.pool.QueryRow(ctx, `
			SELECT COUNT(*) FROM schedules WHERE title_id = $1
		`, id).Scan(&count)
		if err != nil {
			return fmt.Errorf("count referencing schedules: %w", err)
		}
		if count > 0 {
			return ErrTitleReferenced
		}
	}

	result, err := r.pool.Exec(ctx, `DELETE FROM titles WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete title: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Helpers ---

func (r *TitleRepo) scanTitle(row pgx.Row) (*domain.Title, error) {
	var title domain.Title
	var category *string
	var tagsJSON []byte

	err := row.Scan(
		&title.ID,
		&title.Text,
		&title.ContentType,
		&category,
		&tagsJSON,
		&title.Priority,
		&title.ChannelID,
		&title.UserID,
		&title.Status,
		&title.CreatedAt,
		&title.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan title: %w", err)
	}

	if category != nil {
		title.Category = *category
	}
	if tagsJSON != nil {
		if err := json.Unmarshal(tagsJSON, &title.Tags); err != nil {
			return nil, fmt.Errorf("unmarshal tags: %w", err)
		}
	}

	return &title, nil
}

func (r *TitleRepo) scanTitleFromRows(rows pgx.Rows) (*domain.Title, error) {
	return r.scanTitle(rows)
}
