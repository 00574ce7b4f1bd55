package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/shaiso/Fabrika/internal/domain"
	"github.com/shaiso/Fabrika/internal/mq"
	"github.com/shaiso/Fabrika/internal/queue"
)

// Default configuration values.
const (
	defaultPollInterval = 5 * time.Second
	defaultPrefetch     = 1
)

// CompletionPublisher публикует события о завершённых задачах.
// Реализация — mq.Publisher; nil допустим (pipeline подхватит по polling).
type CompletionPublisher interface {
	PublishTaskCompleted(ctx context.Context, payload mq.TaskCompletedPayload) error
}

// Worker дренирует очередь задач и выполняет их executor'ами.
//
// Worker — stateless компонент, который:
//   - Захватывает waiting-задачи через Queue (atomic claim)
//   - Просыпается по событию tasks.ready (event-driven nudge)
//   - Периодически опрашивает очередь (polling fallback)
//   - Выполняет задачу executor'ом по её kind
//   - Публикует результат в tasks.completed
//
// Workers масштабируются горизонтально: атомарный claim гарантирует,
// что задачу выполняет не более одного воркера. Один Worker выполняет
// одну задачу за раз; параллелизм — количеством экземпляров.
type Worker struct {
	queue     *queue.Service
	publisher CompletionPublisher
	conn      *mq.Connection
	registry  *Registry
	kinds     []domain.TaskKind

	pollInterval time.Duration

	readyConsumer  *mq.Consumer
	cancelConsumer *mq.Consumer
	nudge          chan struct{}

	// Текущая выполняемая задача: нужна для отмены и graceful shutdown
	mu      sync.Mutex
	current *runningTask

	logger     *slog.Logger
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
}

// runningTask — задача, выполняемая в данный момент.
type runningTask struct {
	task      *domain.QueueTask
	cancel    context.CancelFunc
	cancelled bool
}

// Config — конфигурация Worker.
type Config struct {
	// Queue — сервис очереди (обязательно).
	Queue *queue.Service

	// Publisher — публикация tasks.completed (опционально).
	Publisher CompletionPublisher

	// Conn — соединение RabbitMQ для nudge и отмены (опционально;
	// без него воркер живёт на одном polling).
	Conn *mq.Connection

	// Registry — реестр executor'ов (обязательно).
	Registry *Registry

	// Kinds — какие kinds дренировать (default: все зарегистрированные).
	Kinds []domain.TaskKind

	// PollInterval — интервал polling fallback (default: 5s).
	PollInterval time.Duration

	// Logger — slog-логгер.
	Logger *slog.Logger
}

// New создаёт новый Worker.
func New(cfg Config) *Worker {
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	kinds := cfg.Kinds
	if len(kinds) == 0 && cfg.Registry != nil {
		kinds = cfg.Registry.Kinds()
	}

	return &Worker{
		queue:        cfg.Queue,
		publisher:    cfg.Publisher,
		conn:         cfg.Conn,
		registry:     cfg.Registry,
		kinds:        kinds,
		pollInterval: pollInterval,
		nudge:        make(chan struct{}, 1),
		logger:       logger,
	}
}

// Start запускает Worker.
//
// Запускает:
//   - Consumer для tasks.ready (nudge)
//   - Consumer эксклюзивной control-очереди (отмена задач)
//   - Основной цикл claim-and-execute с polling fallback
func (w *Worker) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	w.cancelFunc = cancel

	w.logger.Info("starting worker",
		"kinds", w.kinds,
		"poll_interval", w.pollInterval,
	)

	if w.conn != nil {
		w.readyConsumer = mq.NewConsumer(w.conn, w.logger, mq.ConsumerConfig{
			Queue:    string(mq.QueueTasksReady),
			Handler:  w.handleTaskReady,
			Prefetch: defaultPrefetch,
		})

		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			if err := w.readyConsumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				w.logger.Error("task ready consumer error", "error", err)
			}
		}()

		// Эксклюзивная очередь под fanout отмены: каждый воркер
		// получает каждое событие и проверяет, его ли это задача
		controlQueue, err := mq.DeclareControlQueue(ctx, w.conn)
		if err != nil {
			w.logger.Error("failed to declare control queue, cancellation disabled", "error", err)
		} else {
			w.cancelConsumer = mq.NewConsumer(w.conn, w.logger, mq.ConsumerConfig{
				Queue:    controlQueue,
				Handler:  w.handleTaskCancel,
				Prefetch: defaultPrefetch,
			})

			w.wg.Add(1)
			go func() {
				defer w.wg.Done()
				if err := w.cancelConsumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
					w.logger.Error("cancel consumer error", "error", err)
				}
			}()
		}
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.runLoop(ctx)
	}()

	w.logger.Info("worker started")
	return nil
}

// Stop останавливает Worker.
//
// Выполняемый процесс убивается отменой context; захваченная задача
// возвращается в waiting без расхода retry-бюджета.
func (w *Worker) Stop() {
	w.logger.Info("stopping worker...")

	if w.cancelFunc != nil {
		w.cancelFunc()
	}

	if w.readyConsumer != nil {
		w.readyConsumer.Stop()
	}
	if w.cancelConsumer != nil {
		w.cancelConsumer.Stop()
	}

	w.wg.Wait()

	w.logger.Info("worker stopped")
}

// runLoop — основной цикл: дренируем очередь, спим до nudge или тика.
func (w *Worker) runLoop(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	// Первый проход сразу при старте (подхватываем задачи,
	// накопившиеся пока были выключены)
	w.drain(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.nudge:
			w.drain(ctx)
		case <-ticker.C:
			w.drain(ctx)
		}
	}
}

// drain выполняет задачи, пока очередь не опустеет по всем kinds.
func (w *Worker) drain(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		var claimed bool
		for _, kind := range w.kinds {
			task, err := w.queue.Claim(ctx, kind)
			if err != nil {
				if !errors.Is(err, queue.ErrNoTask) {
					w.logger.Error("failed to claim task", "kind", kind, "error", err)
				}
				continue
			}

			claimed = true
			w.process(ctx, task)

			if ctx.Err() != nil {
				return
			}
		}

		if !claimed {
			return
		}
	}
}

// setCurrent фиксирует выполняемую задачу.
func (w *Worker) setCurrent(task *domain.QueueTask, cancel context.CancelFunc) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.current = &runningTask{task: task, cancel: cancel}
}

// clearCurrent сбрасывает текущую задачу и возвращает, была ли она отменена.
func (w *Worker) clearCurrent() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	cancelled := w.current != nil && w.current.cancelled
	w.current = nil
	return cancelled
}
