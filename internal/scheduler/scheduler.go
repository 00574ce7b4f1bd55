package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Fabrika/internal/domain"
	"github.com/shaiso/Fabrika/internal/telemetry"
)

// ScheduleStore — операции над schedules, нужные планировщику.
// Продакшн-реализация — repo.ScheduleRepo.
type ScheduleStore interface {
	ListDue(ctx context.Context, now time.Time, limit int) ([]domain.Schedule, error)
	ClaimDue(ctx context.Context, id uuid.UUID) (bool, error)
}

// DuePublisher публикует события о захваченных schedules.
// Реализация — mq.Publisher; nil допустим (pipeline подхватит по polling).
type DuePublisher interface {
	PublishScheduleDue(ctx context.Context, scheduleID, titleID uuid.UUID) error
}

// LogStore — append-only лог переходов schedule. Продакшн — repo.LogRepo.
type LogStore interface {
	Append(ctx context.Context, entry *domain.LogEntry) error
}

// Scheduler — планировщик, захватывающий due schedules.
type Scheduler struct {
	scheduleStore ScheduleStore
	publisher     DuePublisher
	logStore      LogStore
	logger        *slog.Logger
	batchSize     int
}

// Config — конфигурация Scheduler.
type Config struct {
	ScheduleStore ScheduleStore
	Publisher     DuePublisher
	LogStore      LogStore
	Logger        *slog.Logger
	BatchSize     int // количество schedules за один тик (default: 100)
}

// New создаёт новый Scheduler.
func New(cfg Config) *Scheduler {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Scheduler{
		scheduleStore: cfg.ScheduleStore,
		publisher:     cfg.Publisher,
		logStore:      cfg.LogStore,
		logger:        logger,
		batchSize:     batchSize,
	}
}

// Tick выполняет один тик планировщика.
//
// 1. Находит due schedules (status=pending, scheduled_at <= now)
// 2. Захватывает каждый условным UPDATE pending → running —
//    конкурирующий экземпляр проигрывает захват молча
// 3. Публикует schedule.due в RabbitMQ
//
// Ошибки одного schedule не блокируют обработку остальных.
func (s *Scheduler) Tick(ctx context.Context) error {
	telemetry.SchedulerTicks.Inc()
	now := time.Now()

	schedules, err := s.scheduleStore.ListDue(ctx, now, s.batchSize)
	if err != nil {
		return fmt.Errorf("list due schedules: %w", err)
	}

	if len(schedules) == 0 {
		return nil
	}

	s.logger.Debug("found due schedules", "count", len(schedules))

	var claimed int
	for i := range schedules {
		sched := &schedules[i]

		ok, err := s.scheduleStore.ClaimDue(ctx, sched.ID)
		if err != nil {
			s.logger.Error("failed to claim schedule",
				"schedule_id", sched.ID,
				"error", err,
			)
			continue
		}
		if !ok {
			// Захвачен другим экземпляром или уже не pending
			continue
		}

		claimed++
		telemetry.SchedulesClaimed.Inc()

		s.logger.Info("schedule claimed",
			"schedule_id", sched.ID,
			"title_id", sched.TitleID,
			"scheduled_at", sched.ScheduledAt,
		)

		// Переход pending → running фиксируется в append-only логе,
		// как и остальные смены статуса schedule
		s.appendClaimLog(ctx, sched)

		if s.publisher != nil {
			if err := s.publisher.PublishScheduleDue(ctx, sched.ID, sched.TitleID); err != nil {
				// Не фатально: schedule уже running, pipeline найдёт
				// его по polling
				s.logger.Warn("failed to publish schedule.due",
					"schedule_id", sched.ID,
					"error", err,
				)
			}
		}
	}

	if claimed > 0 {
		s.logger.Info("scheduler tick completed",
			"due", len(schedules),
			"claimed", claimed,
		)
	}

	return nil
}

// appendClaimLog пишет запись о захвате schedule в append-only лог.
// Ошибка записи не откатывает захват.
func (s *Scheduler) appendClaimLog(ctx context.Context, sched *domain.Schedule) {
	if s.logStore == nil {
		return
	}

	id := sched.ID
	entry := &domain.LogEntry{
		ID:         uuid.New(),
		ScheduleID: &id,
		Level:      domain.LogLevelInfo,
		Message:    "schedule claimed",
		Meta: map[string]any{
			"event":        "schedule_claimed",
			"title_id":     sched.TitleID.String(),
			"scheduled_at": sched.ScheduledAt.Format(time.RFC3339),
		},
		CreatedAt: time.Now(),
	}
	if err := s.logStore.Append(ctx, entry); err != nil {
		s.logger.Error("failed to append claim log entry",
			"schedule_id", sched.ID,
			"error", err,
		)
	}
}
