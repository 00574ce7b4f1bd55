package worker

import (
	"context"
	"errors"

	"github.com/shaiso/Fabrika/internal/domain"
	"github.com/shaiso/Fabrika/internal/mq"
)

// handleTaskReady обрабатывает событие tasks.ready.
//
// Событие — только nudge: авторитетный источник задач — БД, поэтому
// payload не обрабатывается напрямую, а цикл будится на общий drain.
// Потерянный nudge не теряет задачу — её подхватит polling.
func (w *Worker) handleTaskReady(_ context.Context, delivery *mq.Delivery) error {
	payload, err := mq.ParsePayload[mq.TaskReadyPayload](&delivery.Message)
	if err != nil {
		w.logger.Error("failed to parse task.ready payload", "error", err)
		return err
	}

	w.logger.Debug("received task.ready event",
		"task_id", payload.TaskID,
		"kind", payload.Kind,
	)

	select {
	case w.nudge <- struct{}{}:
	default:
		// Drain уже запланирован
	}

	return nil
}

// handleTaskCancel обрабатывает событие task.cancel из control exchange.
//
// Fanout доставляет событие каждому воркеру; реагирует только тот,
// кто выполняет задачу в данный момент — отменой context, что убивает
// порождённый процесс.
func (w *Worker) handleTaskCancel(_ context.Context, delivery *mq.Delivery) error {
	payload, err := mq.ParsePayload[mq.TaskCancelPayload](&delivery.Message)
	if err != nil {
		w.logger.Error("failed to parse task.cancel payload", "error", err)
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.current == nil || w.current.task.ID != payload.TaskID {
		// Не наша задача
		return nil
	}

	w.logger.Info("cancelling running task",
		"task_id", payload.TaskID,
		"kind", w.current.task.Kind,
	)

	w.current.cancelled = true
	w.current.cancel()

	return nil
}

// process выполняет одну захваченную задачу и фиксирует результат.
func (w *Worker) process(ctx context.Context, task *domain.QueueTask) {
	w.logger.Info("task started",
		"task_id", task.ID,
		"kind", task.Kind,
		"attempt", task.RetryCount,
		"schedule_id", task.ScheduleID,
	)

	// Финальная запись результата не должна отменяться вместе с
	// shutdown — задача уже захвачена и обязана быть возвращена
	bg := context.WithoutCancel(ctx)

	executor, err := w.registry.Get(task.Kind)
	if err != nil {
		// Нет executor'а — retry бессмыслен
		if _, failErr := w.queue.Fail(bg, task, err.Error(), false); failErr != nil {
			w.logger.Error("failed to mark task failed", "task_id", task.ID, "error", failErr)
			return
		}
		w.publishCompletion(bg, task, err.Error())
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	w.setCurrent(task, cancel)

	output, execErr := executor.Execute(runCtx, task)

	cancelled := w.clearCurrent()
	cancel()

	switch {
	case execErr == nil:
		if err := w.queue.Complete(bg, task, output); err != nil {
			w.logger.Error("failed to mark task completed", "task_id", task.ID, "error", err)
			return
		}
		w.logger.Info("task completed",
			"task_id", task.ID,
			"kind", task.Kind,
			"attempt", task.RetryCount,
		)
		w.publishCompletion(bg, task, "")

	case cancelled:
		// Отмена пользователем — неудачная попытка: при остатке
		// retry-бюджета задача возвращается в waiting, иначе уходит
		// в терминальный failed
		errMsg := ErrCancelled.Error()
		alive, err := w.queue.Cancel(bg, task, errMsg)
		if err != nil {
			w.logger.Error("failed to mark task cancelled", "task_id", task.ID, "error", err)
			return
		}
		w.logger.Info("task cancelled",
			"task_id", task.ID,
			"kind", task.Kind,
			"requeued", alive,
		)
		if !alive {
			w.publishCompletion(bg, task, errMsg)
		}

	case ctx.Err() != nil:
		// Shutdown: возвращаем задачу в waiting, бюджет не тронут
		if err := w.queue.Release(bg, task); err != nil {
			w.logger.Error("failed to release task on shutdown", "task_id", task.ID, "error", err)
			return
		}
		w.logger.Info("task released on shutdown", "task_id", task.ID, "kind", task.Kind)

	case errors.Is(execErr, ErrSpawn):
		// Процесс не стартовал — попытки не было, терминально
		errMsg := execErr.Error()
		if _, err := w.queue.Fail(bg, task, errMsg, false); err != nil {
			w.logger.Error("failed to mark task failed", "task_id", task.ID, "error", err)
			return
		}
		w.logger.Error("task spawn failed", "task_id", task.ID, "kind", task.Kind, "error", execErr)
		w.publishCompletion(bg, task, errMsg)

	default:
		errMsg := execErr.Error()
		alive, err := w.queue.Fail(bg, task, errMsg, true)
		if err != nil {
			w.logger.Error("failed to mark task failed", "task_id", task.ID, "error", err)
			return
		}

		w.logger.Warn("task failed",
			"task_id", task.ID,
			"kind", task.Kind,
			"attempt", task.RetryCount,
			"retrying", alive,
			"error", errMsg,
		)

		// Пока задача жива (ушла в waiting на retry), pipeline
		// уведомлять рано — событие уходит только о терминальном исходе
		if !alive {
			w.publishCompletion(bg, task, errMsg)
		}
	}
}

// publishCompletion публикует событие tasks.completed.
func (w *Worker) publishCompletion(ctx context.Context, task *domain.QueueTask, errMsg string) {
	if w.publisher == nil {
		return
	}

	status := "completed"
	if errMsg != "" {
		status = "failed"
	}

	payload := mq.TaskCompletedPayload{
		TaskID:     task.ID,
		ScheduleID: task.ScheduleID,
		Stage:      string(task.Stage),
		Status:     status,
		Error:      errMsg,
		Attempt:    task.RetryCount,
	}

	if err := w.publisher.PublishTaskCompleted(ctx, payload); err != nil {
		// Не фатально: задача обновлена в БД, pipeline подхватит
		// её по polling
		w.logger.Warn("failed to publish task.completed",
			"task_id", task.ID,
			"error", err,
		)
	}
}
