package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Fabrika/internal/cadence"
	"github.com/shaiso/Fabrika/internal/domain"
	"github.com/shaiso/Fabrika/internal/repo"
	"github.com/shaiso/Fabrika/internal/telemetry"
)

// ChannelStore — каналы с включённым автопланированием.
type ChannelStore interface {
	ListActive(ctx context.Context) ([]domain.ChannelSetting, error)
}

// PlannerScheduleStore — операции над schedules, нужные планировщику cadence.
type PlannerScheduleStore interface {
	HasUpcoming(ctx context.Context, channelID uuid.UUID, now time.Time) (bool, error)
	LastScheduledAt(ctx context.Context, channelID uuid.UUID) (*time.Time, error)
}

// TitlePicker выбирает следующий title для автопланирования.
type TitlePicker interface {
	NextPlannable(ctx context.Context, channelID uuid.UUID, categories []string) (*domain.Title, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.TitleStatus) error
}

// Creator создаёт schedule со списанием кредитов в одной транзакции.
// Продакшн-реализация — repo.ChargedCreator.
type Creator interface {
	CreateCharged(ctx context.Context, sched *domain.Schedule) error
}

// Planner — cadence-планировщик: заполняет каналам следующий слот публикации.
type Planner struct {
	channels  ChannelStore
	schedules PlannerScheduleStore
	titles    TitlePicker
	creator   Creator
	logger    *slog.Logger

	costCredits int64
	privacy     domain.Privacy
}

// PlannerConfig — конфигурация Planner.
type PlannerConfig struct {
	Channels  ChannelStore
	Schedules PlannerScheduleStore
	Titles    TitlePicker
	Creator   Creator
	Logger    *slog.Logger

	// CostCredits — стоимость одного автозапланированного schedule.
	// 0 — бесплатно.
	CostCredits int64

	// Privacy — видимость автозапланированных публикаций
	// (default: public).
	Privacy domain.Privacy
}

// NewPlanner создаёт новый Planner.
func NewPlanner(cfg PlannerConfig) *Planner {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	privacy := cfg.Privacy
	if privacy == "" {
		privacy = domain.PrivacyPublic
	}

	return &Planner{
		channels:    cfg.Channels,
		schedules:   cfg.Schedules,
		titles:      cfg.Titles,
		creator:     cfg.Creator,
		logger:      logger,
		costCredits: cfg.CostCredits,
		privacy:     privacy,
	}
}

// Plan выполняет один проход cadence-планирования.
//
// Для каждого активного канала без предстоящего schedule:
//
// 1. Вычисляет следующий слот по cadence-настройкам канала
// 2. Выбирает лучший pending title (allow-list категорий, priority DESC)
// 3. Создаёт schedule со списанием кредитов в одной транзакции
// 4. Переводит title в scheduled
//
// Канал без подходящих titles или с пустым балансом владельца
// пропускается до следующего прохода. Ошибки одного канала не блокируют
// обработку остальных.
func (p *Planner) Plan(ctx context.Context) error {
	channels, err := p.channels.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("list active channels: %w", err)
	}

	var planned int
	for i := range channels {
		ch := &channels[i]

		ok, err := p.planChannel(ctx, ch)
		if err != nil {
			p.logger.Error("failed to plan channel",
				"channel_id", ch.ID,
				"channel", ch.Name,
				"error", err,
			)
			continue
		}
		if ok {
			planned++
		}
	}

	if planned > 0 {
		p.logger.Info("planning pass completed",
			"channels", len(channels),
			"planned", planned,
		)
	}

	return nil
}

// planChannel планирует один канал. Возвращает true, если schedule создан.
func (p *Planner) planChannel(ctx context.Context, ch *domain.ChannelSetting) (bool, error) {
	now := time.Now()

	upcoming, err := p.schedules.HasUpcoming(ctx, ch.ID, now)
	if err != nil {
		return false, fmt.Errorf("check upcoming: %w", err)
	}
	if upcoming {
		// Следующий слот уже занят
		return false, nil
	}

	lastRun, err := p.schedules.LastScheduledAt(ctx, ch.ID)
	if err != nil {
		return false, fmt.Errorf("last scheduled at: %w", err)
	}

	slot, err := cadence.NextRunTime(ch, lastRun, now)
	if err != nil {
		return false, fmt.Errorf("compute next slot: %w", err)
	}

	title, err := p.titles.NextPlannable(ctx, ch.ID, ch.Categories)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			// Нет pending titles под allow-list канала
			return false, nil
		}
		return false, fmt.Errorf("pick title: %w", err)
	}

	sched := &domain.Schedule{
		ID:          uuid.New(),
		TitleID:     title.ID,
		ScheduledAt: slot,
		Privacy:     p.privacy,
		Status:      domain.ScheduleStatusPending,
		UserID:      title.UserID,
		CostCredits: p.costCredits,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := p.creator.CreateCharged(ctx, sched); err != nil {
		if errors.Is(err, repo.ErrInsufficientCredits) {
			p.logger.Warn("skipping channel: insufficient credits",
				"channel_id", ch.ID,
				"user_id", title.UserID,
				"cost", p.costCredits,
			)
			return false, nil
		}
		return false, fmt.Errorf("create schedule: %w", err)
	}

	if err := p.titles.UpdateStatus(ctx, title.ID, domain.TitleStatusScheduled); err != nil {
		// Schedule уже создан: title останется pending и может быть
		// выбран повторно, но HasUpcoming не даст каналу
		// запланироваться дважды
		p.logger.Warn("failed to mark title scheduled",
			"title_id", title.ID,
			"error", err,
		)
	}

	telemetry.SchedulesPlanned.Inc()

	p.logger.Info("schedule planned",
		"schedule_id", sched.ID,
		"channel_id", ch.ID,
		"channel", ch.Name,
		"title_id", title.ID,
		"scheduled_at", slot,
	)

	return true, nil
}
