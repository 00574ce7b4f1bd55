package stages

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/shaiso/Fabrika/internal/domain"
)

// Ошибки стадий.
var (
	// ErrNoRetry помечает ошибку как неповторяемую: pipeline не тратит
	// retry-бюджет и сразу переводит стадию в терминальный failed.
	ErrNoRetry = errors.New("stage failure is not retryable")

	// ErrUnknownStage — нет реализации для имени стадии.
	ErrUnknownStage = errors.New("unknown stage")

	// ErrMissingInput — в выходе предыдущих стадий нет нужного поля.
	ErrMissingInput = errors.New("missing stage input")
)

// Result — результат запуска стадии.
type Result struct {
	// Output — данные для последующих стадий; сохраняются в
	// PipelineStage.Output.
	Output map[string]any

	// Async — стадия не завершена: работа ушла в очередь задач, и
	// завершение придёт событием task.completed. TaskID указывает
	// на поставленную задачу.
	Async  bool
	TaskID *uuid.UUID
}

// Stage — одна стадия производственного pipeline.
//
// inputs — объединённые Output всех завершённых предыдущих стадий.
// Синхронная стадия возвращает готовый Result; асинхронная — Result с
// Async=true, а её Output придёт из queue task.
type Stage interface {
	Name() domain.StageName
	Run(ctx context.Context, sched *domain.Schedule, title *domain.Title, inputs map[string]any) (*Result, error)
}

// Registry — реестр стадий по имени.
type Registry struct {
	stages map[domain.StageName]Stage
}

// NewRegistry создаёт пустой реестр.
func NewRegistry() *Registry {
	return &Registry{stages: make(map[domain.StageName]Stage)}
}

// Register добавляет стадию в реестр.
func (r *Registry) Register(s Stage) {
	r.stages[s.Name()] = s
}

// Get возвращает стадию по имени.
func (r *Registry) Get(name domain.StageName) (Stage, error) {
	s, ok := r.stages[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownStage, name)
	}
	return s, nil
}

// stringInput достаёт обязательное строковое поле из inputs.
func stringInput(inputs map[string]any, key string) (string, error) {
	v, ok := inputs[key]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrMissingInput, key)
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", fmt.Errorf("%w: %s is not a non-empty string", ErrMissingInput, key)
	}
	return s, nil
}
