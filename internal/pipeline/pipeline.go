package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Fabrika/internal/domain"
	"github.com/shaiso/Fabrika/internal/mq"
	"github.com/shaiso/Fabrika/internal/stages"
)

// Default configuration values.
const (
	defaultPollInterval    = 10 * time.Second
	defaultBatchSize       = 100
	defaultMaxStageRetries = 3
)

// ScheduleStore — хранилище schedules, используемое Executor.
// Продакшн-реализация — repo.ScheduleRepo.
type ScheduleStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Schedule, error)
	ListRunning(ctx context.Context, limit int) ([]domain.Schedule, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.ScheduleStatus, errMsg string) error
}

// StageStore — хранилище строк стадий. Продакшн — repo.StageRepo.
type StageStore interface {
	Create(ctx context.Context, stage *domain.PipelineStage) error
	ListBySchedule(ctx context.Context, scheduleID uuid.UUID) ([]domain.PipelineStage, error)
	Update(ctx context.Context, stage *domain.PipelineStage) error
}

// TitleStore — хранилище titles. Продакшн — repo.TitleRepo.
type TitleStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Title, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.TitleStatus) error
}

// TaskStore — чтение задач очереди (авторитетный Output завершённой
// задачи). Продакшн — repo.QueueTaskRepo.
type TaskStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.QueueTask, error)
}

// LogStore — append-only лог pipeline. Продакшн — repo.LogRepo.
type LogStore interface {
	Append(ctx context.Context, entry *domain.LogEntry) error
}

// Refunder выполняет возврат кредитов за терминально упавший schedule.
// Реализация обязана быть идемпотентной и атомарно писать failed-статус
// schedule вместе с возвратом. Продакшн — refund.Handler.
type Refunder interface {
	Refund(ctx context.Context, sched *domain.Schedule, reason string) error
}

// Executor управляет выполнением schedules.
//
// Executor — центральный компонент системы, который:
//   - Получает due schedules из очереди RabbitMQ (event-driven)
//   - Периодически проверяет running schedules в БД (polling fallback)
//   - Прогоняет стадии script → video → upload → publish по порядку
//   - Отслеживает завершение асинхронных задач
//   - Финализирует schedule (completed/failed) и его title
type Executor struct {
	// Stores
	scheduleStore ScheduleStore
	stageStore    StageStore
	titleStore    TitleStore
	taskStore     TaskStore
	logStore      LogStore

	// Стадии
	registry *stages.Registry

	// Refund на терминальном провале (nil — возвраты выключены)
	refunder Refunder

	// MQ (nil — работает только polling)
	conn *mq.Connection

	// Active schedules — schedules в процессе выполнения (id → state)
	active map[uuid.UUID]*ScheduleState
	mu     sync.RWMutex

	// Consumers
	dueConsumer  *mq.Consumer
	taskConsumer *mq.Consumer

	// Configuration
	pollInterval    time.Duration
	batchSize       int
	maxStageRetries int

	// Lifecycle
	logger     *slog.Logger
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
}

// Config — конфигурация Executor.
type Config struct {
	// Stores
	ScheduleStore ScheduleStore
	StageStore    StageStore
	TitleStore    TitleStore
	TaskStore     TaskStore
	LogStore      LogStore

	// Registry — реестр стадий.
	Registry *stages.Registry

	// Refunder — обработчик возвратов (опционально).
	Refunder Refunder

	// Conn — соединение RabbitMQ (опционально).
	Conn *mq.Connection

	// Polling configuration
	PollInterval time.Duration // интервал polling (default: 10s)
	BatchSize    int           // количество schedules за один poll (default: 100)

	// MaxStageRetries — retry-бюджет одной стадии (default: 3).
	MaxStageRetries int

	// Logger
	Logger *slog.Logger
}

// New создаёт новый Executor.
func New(cfg Config) *Executor {
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	maxStageRetries := cfg.MaxStageRetries
	if maxStageRetries <= 0 {
		maxStageRetries = defaultMaxStageRetries
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Executor{
		scheduleStore:   cfg.ScheduleStore,
		stageStore:      cfg.StageStore,
		titleStore:      cfg.TitleStore,
		taskStore:       cfg.TaskStore,
		logStore:        cfg.LogStore,
		registry:        cfg.Registry,
		refunder:        cfg.Refunder,
		conn:            cfg.Conn,
		active:          make(map[uuid.UUID]*ScheduleState),
		pollInterval:    pollInterval,
		batchSize:       batchSize,
		maxStageRetries: maxStageRetries,
		logger:          logger,
	}
}

// Start запускает Executor.
//
// Запускает:
//   - Consumer для schedules.due
//   - Consumer для tasks.completed
//   - Polling горутину для fallback
func (e *Executor) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	e.cancelFunc = cancel

	e.logger.Info("starting pipeline executor",
		"poll_interval", e.pollInterval,
		"batch_size", e.batchSize,
		"max_stage_retries", e.maxStageRetries,
	)

	if e.conn != nil {
		e.dueConsumer = mq.NewConsumer(e.conn, e.logger, mq.ConsumerConfig{
			Queue:    string(mq.QueueSchedulesDue),
			Handler:  e.handleScheduleDue,
			Prefetch: 10,
		})

		e.taskConsumer = mq.NewConsumer(e.conn, e.logger, mq.ConsumerConfig{
			Queue:    string(mq.QueueTasksCompleted),
			Handler:  e.handleTaskCompleted,
			Prefetch: 10,
		})

		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			if err := e.dueConsumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				e.logger.Error("due consumer error", "error", err)
			}
		}()

		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			if err := e.taskConsumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				e.logger.Error("task consumer error", "error", err)
			}
		}()
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.pollLoop(ctx)
	}()

	e.logger.Info("pipeline executor started")
	return nil
}

// Stop останавливает Executor.
func (e *Executor) Stop() {
	e.logger.Info("stopping pipeline executor...")

	if e.cancelFunc != nil {
		e.cancelFunc()
	}

	if e.dueConsumer != nil {
		e.dueConsumer.Stop()
	}
	if e.taskConsumer != nil {
		e.taskConsumer.Stop()
	}

	e.wg.Wait()

	e.logger.Info("pipeline executor stopped",
		"active_schedules", e.ActiveCount(),
	)
}

// pollLoop — цикл polling для fallback.
func (e *Executor) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(e.pollInterval)
	defer ticker.Stop()

	// Первый poll сразу при старте (подхватываем schedules, захваченные
	// scheduler пока executor был выключен)
	e.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.poll(ctx)
		}
	}
}

// poll выполняет один цикл polling.
func (e *Executor) poll(ctx context.Context) {
	scheds, err := e.scheduleStore.ListRunning(ctx, e.batchSize)
	if err != nil {
		e.logger.Error("failed to list running schedules", "error", err)
		return
	}

	for i := range scheds {
		sched := &scheds[i]

		if e.isActive(sched.ID) {
			continue
		}

		if err := e.processSchedule(ctx, sched.ID); err != nil {
			if errors.Is(err, ErrScheduleAlreadyActive) {
				continue
			}
			e.logger.Error("failed to process schedule from poll",
				"schedule_id", sched.ID,
				"error", err,
			)
		}
	}
}

// isActive проверяет, обрабатывается ли schedule.
func (e *Executor) isActive(id uuid.UUID) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, exists := e.active[id]
	return exists
}

// getActive возвращает активный state.
func (e *Executor) getActive(id uuid.UUID) *ScheduleState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.active[id]
}

// addActive добавляет schedule в активные.
func (e *Executor) addActive(state *ScheduleState) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.active[state.ScheduleID()]; exists {
		return ErrScheduleAlreadyActive
	}

	e.active[state.ScheduleID()] = state
	return nil
}

// removeActive удаляет schedule из активных.
func (e *Executor) removeActive(id uuid.UUID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.active, id)
}

// ActiveCount возвращает количество активных schedules.
func (e *Executor) ActiveCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.active)
}
