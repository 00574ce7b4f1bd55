package api

import (
	"log/slog"

	"github.com/shaiso/Fabrika/internal/mq"
	"github.com/shaiso/Fabrika/internal/queue"
	"github.com/shaiso/Fabrika/internal/repo"
)

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	titleRepo   *repo.TitleRepo
	schedRepo   *repo.ScheduleRepo
	stageRepo   *repo.StageRepo
	channelRepo *repo.ChannelRepo
	taskRepo    *repo.QueueTaskRepo
	logRepo     *repo.LogRepo
	ledger      *repo.LedgerRepo
	creator     *repo.ChargedCreator
	queue       *queue.Service
	publisher   *mq.Publisher

	// Стоимость одного schedule в кредитах. 0 — бесплатно.
	costCredits int64

	logger *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	TitleRepo   *repo.TitleRepo
	SchedRepo   *repo.ScheduleRepo
	StageRepo   *repo.StageRepo
	ChannelRepo *repo.ChannelRepo
	TaskRepo    *repo.QueueTaskRepo
	LogRepo     *repo.LogRepo
	Ledger      *repo.LedgerRepo
	Creator     *repo.ChargedCreator
	Queue       *queue.Service
	Publisher   *mq.Publisher
	CostCredits int64
	Logger      *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Handler{
		titleRepo:   cfg.TitleRepo,
		schedRepo:   cfg.SchedRepo,
		stageRepo:   cfg.StageRepo,
		channelRepo: cfg.ChannelRepo,
		taskRepo:    cfg.TaskRepo,
		logRepo:     cfg.LogRepo,
		ledger:      cfg.Ledger,
		creator:     cfg.Creator,
		queue:       cfg.Queue,
		publisher:   cfg.Publisher,
		costCredits: cfg.CostCredits,
		logger:      logger,
	}
}
