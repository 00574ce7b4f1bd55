package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Fabrika/internal/domain"
	"github.com/shaiso/Fabrika/internal/repo"
	"github.com/shaiso/Fabrika/internal/telemetry"
)

// DefaultMaxRetries — retry-бюджет задачи по умолчанию.
const DefaultMaxRetries = 2

// Ошибки очереди.
var (
	// ErrNoTask — в очереди нет waiting-задач нужного kind.
	ErrNoTask = errors.New("no waiting task")

	// ErrNotRunning — операция применима только к running-задаче.
	ErrNotRunning = errors.New("task is not running")
)

// Store — хранилище задач очереди.
//
// Продакшн-реализация — repo.QueueTaskRepo поверх PostgreSQL.
// ClaimOldest обязан быть атомарным: ровно один вызывающий получает
// задачу, остальные — repo.ErrNotFound. CancelWaiting — такой же
// условный переход waiting → failed: repo.ErrNotFound, если задачу
// уже захватили или завершили.
type Store interface {
	Insert(ctx context.Context, task *domain.QueueTask) error
	ClaimOldest(ctx context.Context, kind domain.TaskKind) (*domain.QueueTask, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.QueueTask, error)
	Update(ctx context.Context, task *domain.QueueTask) error
	CancelWaiting(ctx context.Context, id uuid.UUID, errMsg string) (*domain.QueueTask, error)
}

// Notifier рассылает уведомления о поставленных задачах.
// Реализация — mq.Publisher; nil допустим (остаётся только polling).
type Notifier interface {
	PublishTaskReady(ctx context.Context, taskID uuid.UUID, kind string) error
}

// Service — операции над durable-очередью задач.
type Service struct {
	store    Store
	notifier Notifier
	logger   *slog.Logger
}

// NewService создаёт сервис очереди.
func NewService(store Store, notifier Notifier, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, notifier: notifier, logger: logger}
}

// EnqueueParams — параметры постановки задачи.
type EnqueueParams struct {
	Kind       domain.TaskKind
	Payload    map[string]any
	MaxRetries int        // <0 — DefaultMaxRetries
	ScheduleID *uuid.UUID // опционально, для корреляции с pipeline
	Stage      domain.StageName
}

// Enqueue ставит задачу в очередь и рассылает task.ready.
// Задача становится видимой воркерам сразу после commit insert — даже
// если уведомление потерялось, polling её найдёт.
func (s *Service) Enqueue(ctx context.Context, p EnqueueParams) (*domain.QueueTask, error) {
	maxRetries := p.MaxRetries
	if maxRetries < 0 {
		maxRetries = DefaultMaxRetries
	}

	task := &domain.QueueTask{
		ID:         uuid.New(),
		Kind:       p.Kind,
		Payload:    p.Payload,
		Status:     domain.TaskStatusWaiting,
		MaxRetries: maxRetries,
		ScheduleID: p.ScheduleID,
		Stage:      p.Stage,
		CreatedAt:  time.Now(),
	}

	if err := s.store.Insert(ctx, task); err != nil {
		return nil, fmt.Errorf("enqueue task: %w", err)
	}

	if s.notifier != nil {
		if err := s.notifier.PublishTaskReady(ctx, task.ID, string(p.Kind)); err != nil {
			// Не фатально: задача уже в БД, воркер дойдёт до неё по polling
			s.logger.Warn("failed to publish task.ready", "task_id", task.ID, "error", err)
		}
	}

	s.logger.Info("task enqueued", "task_id", task.ID, "kind", task.Kind)
	return task, nil
}

// Claim атомарно захватывает старейшую waiting-задачу указанного kind.
// Возвращает ErrNoTask, если очередь пуста.
func (s *Service) Claim(ctx context.Context, kind domain.TaskKind) (*domain.QueueTask, error) {
	task, err := s.store.ClaimOldest(ctx, kind)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrNoTask
	}
	if err != nil {
		return nil, fmt.Errorf("claim task: %w", err)
	}

	telemetry.TasksClaimed.WithLabelValues(string(kind)).Inc()
	return task, nil
}

// Complete переводит running-задачу в completed с результатом.
func (s *Service) Complete(ctx context.Context, task *domain.QueueTask, output map[string]any) error {
	if task.Status != domain.TaskStatusRunning {
		return fmt.Errorf("%w: %s", ErrNotRunning, task.Status)
	}

	task.MarkCompleted(output)
	if err := s.store.Update(ctx, task); err != nil {
		return fmt.Errorf("complete task: %w", err)
	}

	telemetry.TasksFinished.WithLabelValues(string(task.Kind), string(task.Status)).Inc()
	return nil
}

// Fail фиксирует неудачную попытку.
//
// retry=true — задача возвращается в waiting (если бюджет не исчерпан)
// и будет захвачена заново; иначе терминальный failed.
// Возвращает true, если задача осталась живой.
func (s *Service) Fail(ctx context.Context, task *domain.QueueTask, errMsg string, retry bool) (bool, error) {
	if task.Status != domain.TaskStatusRunning {
		return false, fmt.Errorf("%w: %s", ErrNotRunning, task.Status)
	}

	alive := task.RecordFailure(errMsg, retry)
	if err := s.store.Update(ctx, task); err != nil {
		return false, fmt.Errorf("fail task: %w", err)
	}

	if alive {
		s.logger.Info("task requeued for retry",
			"task_id", task.ID,
			"retry_count", task.RetryCount,
			"max_retries", task.MaxRetries,
		)
		if s.notifier != nil {
			if err := s.notifier.PublishTaskReady(ctx, task.ID, string(task.Kind)); err != nil {
				s.logger.Warn("failed to publish task.ready", "task_id", task.ID, "error", err)
			}
		}
	} else {
		telemetry.TasksFinished.WithLabelValues(string(task.Kind), string(task.Status)).Inc()
	}

	return alive, nil
}

// Cancel фиксирует внешнюю отмену захваченной running-задачи.
//
// Отмена — неудачная попытка: при остатке retry-бюджета задача
// возвращается в waiting и будет захвачена заново, иначе уходит в
// терминальный failed. Возвращает true, если задача осталась живой.
func (s *Service) Cancel(ctx context.Context, task *domain.QueueTask, errMsg string) (bool, error) {
	alive, err := s.Fail(ctx, task, errMsg, true)
	if err != nil {
		return false, fmt.Errorf("cancel task: %w", err)
	}
	return alive, nil
}

// CancelWaiting терминально отменяет задачу, ещё не захваченную
// воркером: условный переход waiting → failed. Возвращает ErrNoTask,
// если задача уже захвачена или завершена — вызывающий решает, как
// доставить отмену держателю.
func (s *Service) CancelWaiting(ctx context.Context, id uuid.UUID, errMsg string) (*domain.QueueTask, error) {
	task, err := s.store.CancelWaiting(ctx, id, errMsg)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrNoTask
	}
	if err != nil {
		return nil, fmt.Errorf("cancel waiting task: %w", err)
	}

	telemetry.TasksFinished.WithLabelValues(string(task.Kind), string(task.Status)).Inc()
	s.logger.Info("waiting task cancelled", "task_id", task.ID, "kind", task.Kind)
	return task, nil
}

// Release возвращает захваченную задачу в waiting, не расходуя retry-бюджет.
// Используется при graceful shutdown воркера.
func (s *Service) Release(ctx context.Context, task *domain.QueueTask) error {
	if task.Status != domain.TaskStatusRunning {
		return fmt.Errorf("%w: %s", ErrNotRunning, task.Status)
	}

	task.Release()
	if err := s.store.Update(ctx, task); err != nil {
		return fmt.Errorf("release task: %w", err)
	}

	s.logger.Info("task released back to queue", "task_id", task.ID)
	return nil
}

// Get возвращает задачу по ID.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*domain.QueueTask, error) {
	return s.store.GetByID(ctx, id)
}
