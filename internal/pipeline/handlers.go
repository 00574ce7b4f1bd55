package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Fabrika/internal/domain"
	"github.com/shaiso/Fabrika/internal/mq"
	"github.com/shaiso/Fabrika/internal/repo"
	"github.com/shaiso/Fabrika/internal/stages"
	"github.com/shaiso/Fabrika/internal/telemetry"
)

// handleScheduleDue обрабатывает событие о наступившем schedule.
func (e *Executor) handleScheduleDue(ctx context.Context, delivery *mq.Delivery) error {
	payload, err := mq.ParsePayload[mq.ScheduleDuePayload](&delivery.Message)
	if err != nil {
		e.logger.Error("failed to parse schedule.due payload", "error", err)
		return err
	}

	e.logger.Debug("received schedule.due event", "schedule_id", payload.ScheduleID)

	if e.isActive(payload.ScheduleID) {
		return nil
	}

	if err := e.processSchedule(ctx, payload.ScheduleID); err != nil {
		if errors.Is(err, ErrScheduleAlreadyActive) || errors.Is(err, ErrScheduleNotRunning) {
			e.logger.Debug("schedule not processed", "schedule_id", payload.ScheduleID, "reason", err)
			return nil
		}
		e.logger.Error("failed to process schedule", "schedule_id", payload.ScheduleID, "error", err)
		return err
	}

	return nil
}

// handleTaskCompleted обрабатывает событие о завершённой задаче очереди.
func (e *Executor) handleTaskCompleted(ctx context.Context, delivery *mq.Delivery) error {
	payload, err := mq.ParsePayload[mq.TaskCompletedPayload](&delivery.Message)
	if err != nil {
		e.logger.Error("failed to parse task.completed payload", "error", err)
		return err
	}

	// Задачи без привязки к schedule pipeline не касаются
	if payload.ScheduleID == nil {
		return nil
	}

	e.logger.Debug("received task.completed event",
		"task_id", payload.TaskID,
		"schedule_id", *payload.ScheduleID,
		"stage", payload.Stage,
		"status", payload.Status,
	)

	if err := e.ProcessTaskCompleted(ctx, payload); err != nil {
		e.logger.Error("failed to process task completion",
			"task_id", payload.TaskID,
			"schedule_id", *payload.ScheduleID,
			"error", err,
		)
		return err
	}

	return nil
}

// processSchedule начинает (или возобновляет) обработку schedule.
//
// Schedule приходит сюда уже в статусе running: scheduler захватывает
// его условным UPDATE до публикации события. Строки стадий создаются
// идемпотентно; после рестарта состояние восстанавливается из них.
func (e *Executor) processSchedule(ctx context.Context, id uuid.UUID) error {
	state, err := e.loadState(ctx, id)
	if err != nil {
		return err
	}

	if err := e.addActive(state); err != nil {
		return err
	}

	e.logger.Info("schedule processing started",
		"schedule_id", id,
		"title_id", state.Title.ID,
		"stages", state.Stats(),
	)

	return e.advance(ctx, state)
}

// loadState загружает schedule, title и строки стадий из БД.
func (e *Executor) loadState(ctx context.Context, id uuid.UUID) (*ScheduleState, error) {
	sched, err := e.scheduleStore.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrScheduleNotFound, id)
		}
		return nil, fmt.Errorf("get schedule: %w", err)
	}

	if sched.Status != domain.ScheduleStatusRunning {
		return nil, ErrScheduleNotRunning
	}

	title, err := e.titleStore.GetByID(ctx, sched.TitleID)
	if err != nil {
		return nil, fmt.Errorf("get title: %w", err)
	}

	state := NewScheduleState(sched, title)

	// Идемпотентное создание строк: insert с ON CONFLICT DO NOTHING,
	// затем чтение авторитетного набора
	for _, name := range domain.StageOrder {
		stage := &domain.PipelineStage{
			ID:         uuid.New(),
			ScheduleID: sched.ID,
			Name:       name,
			Status:     domain.StageStatusPending,
			CreatedAt:  time.Now(),
		}
		if err := e.stageStore.Create(ctx, stage); err != nil {
			return nil, fmt.Errorf("create stage %s: %w", name, err)
		}
	}

	rows, err := e.stageStore.ListBySchedule(ctx, sched.ID)
	if err != nil {
		return nil, fmt.Errorf("list stages: %w", err)
	}
	for i := range rows {
		state.SetStage(&rows[i])
	}

	return state, nil
}

// ProcessTaskCompleted продвигает pipeline после завершения задачи
// асинхронной стадии.
func (e *Executor) ProcessTaskCompleted(ctx context.Context, payload mq.TaskCompletedPayload) error {
	scheduleID := *payload.ScheduleID

	state := e.getActive(scheduleID)
	if state == nil {
		// После рестарта восстанавливаем состояние из БД
		var err error
		state, err = e.loadState(ctx, scheduleID)
		if err != nil {
			if errors.Is(err, ErrScheduleNotRunning) || errors.Is(err, ErrScheduleNotFound) {
				// Schedule уже финализирован — событие устарело
				return nil
			}
			return err
		}
		if err := e.addActive(state); err != nil {
			if errors.Is(err, ErrScheduleAlreadyActive) {
				state = e.getActive(scheduleID)
			} else {
				return err
			}
		}
	}

	stage := state.Stage(domain.StageName(payload.Stage))
	if stage == nil || stage.Status == domain.StageStatusCompleted {
		return nil
	}

	// Событие за стадию, до которой цепочка ещё не дошла, —
	// рассинхрон state и очереди, продвигать по нему нельзя
	if !state.PredecessorsCompleted(stage.Name) {
		return fmt.Errorf("%w: %s", ErrStageOutOfOrder, stage.Name)
	}

	state.SetPendingTask(nil)

	if payload.Status == string(domain.TaskStatusCompleted) {
		// Output берём из строки задачи, а не из события
		task, err := e.taskStore.GetByID(ctx, payload.TaskID)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return fmt.Errorf("%w: %s", ErrTaskNotFound, payload.TaskID)
			}
			return fmt.Errorf("get task: %w", err)
		}

		if err := e.completeStage(ctx, state, stage, task.Output); err != nil {
			return err
		}
		return e.advance(ctx, state)
	}

	// Задача исчерпала собственный retry-бюджет — провал стадии
	retrying, err := e.failStage(ctx, state, stage, payload.Error, true)
	if err != nil {
		return err
	}
	if retrying {
		return e.advance(ctx, state)
	}
	return nil
}

// advance запускает стадии по порядку, пока не упрётся в асинхронное
// ожидание, терминальный провал или конец цепочки.
func (e *Executor) advance(ctx context.Context, state *ScheduleState) error {
	for {
		stage := state.NextStage()
		if stage == nil {
			return e.completeSchedule(ctx, state)
		}

		switch stage.Status {
		case domain.StageStatusPending:
			proceed, err := e.startStage(ctx, state, stage)
			if err != nil {
				return err
			}
			if !proceed {
				return nil
			}

		case domain.StageStatusRunning:
			// Асинхронная стадия ждёт task.completed; рестарт не
			// теряет её — задача durable
			if stage.Name == domain.StageVideo {
				return nil
			}
			// Синхронная стадия осталась running после падения
			// executor — считаем попытку прерванной
			retrying, err := e.failStage(ctx, state, stage, "stage interrupted by executor restart", true)
			if err != nil {
				return err
			}
			if !retrying {
				return nil
			}

		case domain.StageStatusFailed:
			// Восстановленный после рестарта провал
			retrying, err := e.failStage(ctx, state, stage, stage.Error, true)
			if err != nil {
				return err
			}
			if !retrying {
				return nil
			}
		}
	}
}

// startStage запускает одну стадию.
// Возвращает true, если advance может продолжать цепочку.
func (e *Executor) startStage(ctx context.Context, state *ScheduleState, stage *domain.PipelineStage) (bool, error) {
	impl, err := e.registry.Get(stage.Name)
	if err != nil {
		_, ferr := e.failStage(ctx, state, stage, err.Error(), false)
		return false, ferr
	}

	stage.MarkRunning()
	if err := e.stageStore.Update(ctx, stage); err != nil {
		return false, fmt.Errorf("update stage to running: %w", err)
	}

	e.appendLog(ctx, state, domain.LogLevelInfo, "stage started", map[string]any{
		"event": "stage_started",
		"stage": string(stage.Name),
	})

	result, runErr := impl.Run(ctx, state.Schedule, state.Title, state.Inputs())
	if runErr != nil {
		retryable := !errors.Is(runErr, stages.ErrNoRetry)
		retrying, err := e.failStage(ctx, state, stage, runErr.Error(), retryable)
		if err != nil {
			return false, err
		}
		return retrying, nil
	}

	if result.Async {
		state.SetPendingTask(result.TaskID)
		e.logger.Debug("stage awaiting task",
			"schedule_id", state.ScheduleID(),
			"stage", stage.Name,
			"task_id", result.TaskID,
		)
		return false, nil
	}

	if err := e.completeStage(ctx, state, stage, result.Output); err != nil {
		return false, err
	}
	return true, nil
}

// completeStage фиксирует успешное завершение стадии.
func (e *Executor) completeStage(ctx context.Context, state *ScheduleState, stage *domain.PipelineStage, output map[string]any) error {
	stage.MarkCompleted(output)
	if err := e.stageStore.Update(ctx, stage); err != nil {
		return fmt.Errorf("update stage to completed: %w", err)
	}

	if stage.StartedAt != nil && stage.CompletedAt != nil {
		telemetry.StageDuration.WithLabelValues(string(stage.Name)).
			Observe(stage.CompletedAt.Sub(*stage.StartedAt).Seconds())
	}
	telemetry.StageTransitions.WithLabelValues(string(stage.Name), string(stage.Status)).Inc()

	e.appendLog(ctx, state, domain.LogLevelInfo, "stage completed", map[string]any{
		"event": "stage_completed",
		"stage": string(stage.Name),
	})

	e.logger.Info("stage completed",
		"schedule_id", state.ScheduleID(),
		"stage", stage.Name,
	)
	return nil
}

// failStage фиксирует провал стадии.
//
// При retryable-ошибке и неисчерпанном бюджете стадия сбрасывается в
// pending с увеличенным RetryCount — advance запустит её заново.
// Иначе провал терминальный: schedule и title уходят в failed, и
// выполняется возврат кредитов. Возвращает true, если стадия ушла
// на повтор.
func (e *Executor) failStage(ctx context.Context, state *ScheduleState, stage *domain.PipelineStage, errMsg string, retryable bool) (bool, error) {
	stage.MarkFailed(errMsg)
	telemetry.StageTransitions.WithLabelValues(string(stage.Name), string(domain.StageStatusFailed)).Inc()

	if retryable && stage.CanRetry(e.maxStageRetries) {
		stage.RetryCount++
		stage.ResetForRetry()
		if err := e.stageStore.Update(ctx, stage); err != nil {
			return false, fmt.Errorf("update stage for retry: %w", err)
		}

		e.appendLog(ctx, state, domain.LogLevelWarn, "stage failed, retrying", map[string]any{
			"event":       "stage_retry",
			"stage":       string(stage.Name),
			"error":       errMsg,
			"retry_count": stage.RetryCount,
		})

		e.logger.Warn("stage failed, retrying",
			"schedule_id", state.ScheduleID(),
			"stage", stage.Name,
			"retry_count", stage.RetryCount,
			"error", errMsg,
		)
		return true, nil
	}

	if err := e.stageStore.Update(ctx, stage); err != nil {
		return false, fmt.Errorf("update stage to failed: %w", err)
	}

	e.appendLog(ctx, state, domain.LogLevelError, "stage failed", map[string]any{
		"event": "stage_failed",
		"stage": string(stage.Name),
		"error": errMsg,
	})

	return false, e.failSchedule(ctx, state, fmt.Sprintf("stage %s failed: %s", stage.Name, errMsg))
}

// completeSchedule финализирует успешно прошедший все стадии schedule.
func (e *Executor) completeSchedule(ctx context.Context, state *ScheduleState) error {
	if err := e.scheduleStore.UpdateStatus(ctx, state.ScheduleID(), domain.ScheduleStatusCompleted, ""); err != nil {
		return fmt.Errorf("update schedule to completed: %w", err)
	}

	if err := e.titleStore.UpdateStatus(ctx, state.Title.ID, domain.TitleStatusCompleted); err != nil {
		return fmt.Errorf("update title to completed: %w", err)
	}

	e.appendLog(ctx, state, domain.LogLevelInfo, "schedule completed", map[string]any{
		"event": "schedule_completed",
	})

	e.logger.Info("schedule completed",
		"schedule_id", state.ScheduleID(),
		"title_id", state.Title.ID,
	)

	e.removeActive(state.ScheduleID())
	return nil
}

// failSchedule финализирует терминально упавший schedule.
//
// Возврат кредитов и перевод schedule в failed выполняет Refunder в
// одной транзакции; без него статус пишется напрямую.
func (e *Executor) failSchedule(ctx context.Context, state *ScheduleState, reason string) error {
	if e.refunder != nil {
		if err := e.refunder.Refund(ctx, state.Schedule, reason); err != nil {
			return fmt.Errorf("refund schedule: %w", err)
		}
	} else {
		if err := e.scheduleStore.UpdateStatus(ctx, state.ScheduleID(), domain.ScheduleStatusFailed, reason); err != nil {
			return fmt.Errorf("update schedule to failed: %w", err)
		}
	}

	if err := e.titleStore.UpdateStatus(ctx, state.Title.ID, domain.TitleStatusFailed); err != nil {
		return fmt.Errorf("update title to failed: %w", err)
	}

	e.appendLog(ctx, state, domain.LogLevelError, "schedule failed", map[string]any{
		"event": "schedule_failed",
		"error": reason,
	})

	e.logger.Warn("schedule failed",
		"schedule_id", state.ScheduleID(),
		"error", reason,
	)

	e.removeActive(state.ScheduleID())
	return nil
}

// appendLog пишет запись в append-only лог schedule.
// Ошибка записи лога не прерывает pipeline.
func (e *Executor) appendLog(ctx context.Context, state *ScheduleState, level domain.LogLevel, msg string, meta map[string]any) {
	id := state.ScheduleID()
	entry := &domain.LogEntry{
		ID:         uuid.New(),
		ScheduleID: &id,
		Level:      level,
		Message:    msg,
		Meta:       meta,
		CreatedAt:  time.Now(),
	}
	if err := e.logStore.Append(ctx, entry); err != nil {
		e.logger.Error("failed to append log entry", "schedule_id", id, "error", err)
	}
}
