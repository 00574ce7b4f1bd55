package worker

import (
	"context"
	"fmt"

	"github.com/shaiso/Fabrika/internal/domain"
)

// Executor — интерфейс выполнения задачи одного kind.
//
// Реализации: ProcessExecutor (video-render, image-crawl),
// HTTPExecutor (http-call).
//
// Возвращённый map становится task.Output. Ошибка классифицируется
// воркером: ErrSpawn — терминально без расхода retry-бюджета,
// остальное (включая внешнюю отмену) — неудачная попытка, retry в
// пределах бюджета.
type Executor interface {
	Execute(ctx context.Context, task *domain.QueueTask) (map[string]any, error)
}

// Registry — реестр executor'ов по kind задачи.
type Registry struct {
	executors map[domain.TaskKind]Executor
}

// NewRegistry создаёт пустой реестр.
//
// Executor'ы регистрируются в main: ProcessExecutor'у нужны пути к
// бинарникам рендера, HTTPExecutor'у — ничего.
func NewRegistry() *Registry {
	return &Registry{executors: make(map[domain.TaskKind]Executor)}
}

// Register добавляет executor для kind.
func (r *Registry) Register(kind domain.TaskKind, executor Executor) {
	r.executors[kind] = executor
}

// Get возвращает executor для kind.
func (r *Registry) Get(kind domain.TaskKind) (Executor, error) {
	executor, ok := r.executors[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTaskKind, kind)
	}
	return executor, nil
}

// Kinds возвращает все зарегистрированные kinds.
// Воркер дренирует очередь именно по этому списку.
func (r *Registry) Kinds() []domain.TaskKind {
	kinds := make([]domain.TaskKind, 0, len(r.executors))
	for kind := range r.executors {
		kinds = append(kinds, kind)
	}
	return kinds
}
