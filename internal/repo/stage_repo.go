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

// StageRepo — репозиторий стадий pipeline.
type StageRepo struct {
	pool *pgxpool.Pool
}

// NewStageRepo создаёт новый StageRepo.
func NewStageRepo(pool *pgxpool.Pool) *StageRepo {
	return &StageRepo{pool: pool}
}

// Create создаёт строку стадии.
func (r *StageRepo) Create(ctx context.Context, stage *domain.PipelineStage) error {
	outputJSON, err := json.Marshal(stage.Output)
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}

	query := `
		INSERT INTO pipeline_stages (id, schedule_id, name, status, output,
		                             started_at, completed_at, error, retry_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (schedule_id, name) DO NOTHING
	`
	_, err = r.pool.Exec(ctx, query,
		stage.ID,
		stage.ScheduleID,
		stage.Name,
		stage.Status,
		outputJSON,
		stage.StartedAt,
		stage.CompletedAt,
		nullString(stage.Error),
		stage.RetryCount,
		stage.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert pipeline stage: %w", err)
	}
	return nil
}

// ListBySchedule возвращает стадии schedule в порядке выполнения.
func (r *StageRepo) ListBySchedule(ctx context.Context, scheduleID uuid.UUID) ([]domain.PipelineStage, error) {
	query := `
		SELECT id, schedule_id, name, status, output, started_at,
		       completed_at, error, retry_count, created_at
		FROM pipeline_stages
		WHERE schedule_id = $1
		ORDER BY array_position(ARRAY['script','video','upload','publish'], name::text)
	`
	rows, err := r.pool.Query(ctx, query, scheduleID)
	if err != nil {
		return nil, fmt.Errorf("list stages: %w", err)
	}
	defer rows.Close()

	var stages []domain.PipelineStage
	for rows.Next() {
		stage, err := r.scanStage(rows)
		if err != nil {
			return nil, err
		}
		stages = append(stages, *stage)
	}
	return stages, rows.Err()
}

// Get возвращает стадию по (schedule, имя).
func (r *StageRepo) Get(ctx context.Context, scheduleID uuid.UUID, name domain.StageName) (*domain.PipelineStage, error) {
	query := `
		SELECT id, schedule_id, name, status, output, started_at,
		       completed_at, error, retry_count, created_at
		FROM pipeline_stages
		WHERE schedule_id = $1 AND name = $2
	`
	return r.scanStage(r.pool.QueryRow(ctx, query, scheduleID, name))
}

// Update обновляет стадию.
func (r *StageRepo) Update(ctx context.Context, stage *domain.PipelineStage) error {
	outputJSON, err := json.Marshal(stage.Output)
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}

	query := `
		UPDATE pipeline_stages
		SET status = $2, output = $3, started_at = $4, completed_at = $5,
		    error = $6, retry_count = $7
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query,
		stage.ID,
		stage.Status,
		outputJSON,
		stage.StartedAt,
		stage.CompletedAt,
		nullString(stage.Error),
		stage.RetryCount,
	)
	if err != nil {
		return fmt.Errorf("update pipeline stage: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Helpers ---

func (r *StageRepo) scanStage(row pgx.Row) (*domain.PipelineStage, error) {
	var stage domain.PipelineStage
	var outputJSON []byte
	var errText *string

	err := row.Scan(
		&stage.ID,
		&stage.ScheduleID,
		&stage.Name,
		&stage.Status,
		&outputJSON,
		&stage.StartedAt,
		&stage.CompletedAt,
		&errText,
		&stage.RetryCount,
		&stage.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan pipeline stage: %w", err)
	}

	if outputJSON != nil {
		if err := json.Unmarshal(outputJSON, &stage.Output); err != nil {
			return nil, fmt.Errorf("unmarshal output: %w", err)
		}
	}
	if errText != nil {
		stage.Error = *errText
	}

	return &stage, nil
}
