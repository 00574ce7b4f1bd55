package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/Fabrika/internal/domain"
)

// ChannelRepo — репозиторий настроек каналов.
type ChannelRepo struct {
	pool *pgxpool.Pool
}

// NewChannelRepo создаёт новый ChannelRepo.
func NewChannelRepo(pool *pgxpool.Pool) *ChannelRepo {
	return &ChannelRepo{pool: pool}
}

// Create создаёт настройку канала.
// Инвариант "ровно одна конфигурация режима" проверяет вызывающая
// сторона (cadence.ValidateSetting) до записи.
func (r *ChannelRepo) Create(ctx context.Context, setting *domain.ChannelSetting) error {
	weekdaysJSON, categoriesJSON, err := marshalChannelLists(setting)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO channel_settings (id, name, posting_mode, interval_value, interval_unit,
		                              weekdays, time_of_day, cron_expr, timezone, active,
		                              categories, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err = r.pool.Exec(ctx, query,
		setting.ID,
		setting.Name,
		setting.PostingMode,
		nullInt(setting.IntervalValue),
		nullString(string(setting.IntervalUnit)),
		weekdaysJSON,
		nullString(setting.TimeOfDay),
		nullString(setting.CronExpr),
		setting.Timezone,
		setting.Active,
		categoriesJSON,
		setting.CreatedAt,
		setting.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert channel setting: %w", err)
	}
	return nil
}

// GetByID возвращает настройку канала по ID.
func (r *ChannelRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.ChannelSetting, error) {
	query := `
		SELECT id, name, posting_mode, interval_value, interval_unit, weekdays,
		       time_of_day, cron_expr, timezone, active, categories, created_at, updated_at
		FROM channel_settings
		WHERE id = $1
	`
	return r.scanChannel(r.pool.QueryRow(ctx, query, id))
}

// List возвращает все настройки каналов.
func (r *ChannelRepo) List(ctx context.Context) ([]domain.ChannelSetting, error) {
	query := `
		SELECT id, name, posting_mode, interval_value, interval_unit, weekdays,
		       time_of_day, cron_expr, timezone, active, categories, created_at, updated_at
		FROM channel_settings
		ORDER BY created_at ASC
	`
	return r.queryMany(ctx, query)
}

// ListActive возвращает активные каналы (для планировщика).
func (r *ChannelRepo) ListActive(ctx context.Context) ([]domain.ChannelSetting, error) {
	query := `
		SELECT id, name, posting_mode, interval_value, interval_unit, weekdays,
		       time_of_day, cron_expr, timezone, active, categories, created_at, updated_at
		FROM channel_settings
		WHERE active = true
		ORDER BY created_at ASC
	`
	return r.queryMany(ctx, query)
}

// Update обновляет настройку канала.
func (r *ChannelRepo) Update(ctx context.Context, setting *domain.ChannelSetting) error {
	weekdaysJSON, categoriesJSON, err := marshalChannelLists(setting)
	if err != nil {
		return err
	}

	query := `
		UPDATE channel_settings
		SET name = $2, posting_mode = $3, interval_value = $4, interval_unit = $5,
		    weekdays = $6, time_of_day = $7, cron_expr = $8, timezone = $9,
		    active = $10, categories = $11, updated_at = $12
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query,
		setting.ID,
		setting.Name,
		setting.PostingMode,
		nullInt(setting.IntervalValue),
		nullString(string(setting.IntervalUnit)),
		weekdaysJSON,
		nullString(setting.TimeOfDay),
		nullString(setting.CronExpr),
		setting.Timezone,
		setting.Active,
		categoriesJSON,
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("update channel setting: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete удаляет настройку канала.
func (r *ChannelRepo) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM channel_settings WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete channel setting: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Helpers ---

func marshalChannelLists(setting *domain.ChannelSetting) (weekdays, categories []byte, err error) {
	weekdays, err = json.Marshal(setting.Weekdays)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal weekdays: %w", err)
	}
	categories, err = json.Marshal(setting.Categories)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal categories: %w", err)
	}
	return weekdays, categories, nil
}

func (r *ChannelRepo) queryMany(ctx context.Context, query string, args ...any) ([]domain.ChannelSetting, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query channel settings: %w", err)
	}
	defer rows.Close()

	var settings []domain.ChannelSetting
	for rows.Next() {
		setting, err := r.scanChannel(rows)
		if err != nil {
			return nil, err
		}
		settings = append(settings, *setting)
	}
	return settings, rows.Err()
}

func (r *ChannelRepo) scanChannel(row pgx.Row) (*domain.ChannelSetting, error) {
	var setting domain.ChannelSetting
	var intervalValue *int
	var intervalUnit, timeOfDay, cronExpr *string
	var weekdaysJSON, categoriesJSON []byte

	err := row.Scan(
		&setting.ID,
		&setting.Name,
		&setting.PostingMode,
		&intervalValue,
		&intervalUnit,
		&weekdaysJSON,
		&timeOfDay,
		&cronExpr,
		&setting.Timezone,
		&setting.Active,
		&categoriesJSON,
		&setting.CreatedAt,
		&setting.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan channel setting: %w", err)
	}

	if intervalValue != nil {
		setting.IntervalValue = *intervalValue
	}
	if intervalUnit != nil {
		setting.IntervalUnit = domain.IntervalUnit(*intervalUnit)
	}
	if timeOfDay != nil {
		setting.TimeOfDay = *timeOfDay
	}
	if cronExpr != nil {
		setting.CronExpr = *cronExpr
	}
	if weekdaysJSON != nil {
		if err := json.Unmarshal(weekdaysJSON, &setting.Weekdays); err != nil {
			return nil, fmt.Errorf("unmarshal weekdays: %w", err)
		}
	}
	if categoriesJSON != nil {
		if err := json.Unmarshal(categoriesJSON, &setting.Categories); err != nil {
			return nil, fmt.Errorf("unmarshal categories: %w", err)
		}
	}

	return &setting, nil
}
