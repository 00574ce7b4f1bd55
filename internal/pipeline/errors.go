package pipeline

import "errors"

// Ошибки исполнителя pipeline.
var (
	// ErrScheduleNotFound — schedule не найден в БД.
	ErrScheduleNotFound = errors.New("schedule not found")

	// ErrScheduleNotRunning — schedule не в статусе running.
	ErrScheduleNotRunning = errors.New("schedule is not in running status")

	// ErrScheduleAlreadyActive — schedule уже обрабатывается.
	ErrScheduleAlreadyActive = errors.New("schedule already being processed")

	// ErrStageOutOfOrder — попытка запустить стадию до завершения
	// предыдущей.
	ErrStageOutOfOrder = errors.New("stage predecessor is not completed")

	// ErrTaskNotFound — задача очереди не найдена.
	ErrTaskNotFound = errors.New("queue task not found")
)
