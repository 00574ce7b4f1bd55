package domain

// TitleStatus — статус title.
//
// Жизненный цикл:
//
//	pending → scheduled → completed
//	                    ↘ failed
type TitleStatus string

const (
	// TitleStatusPending — title создан, schedule ещё не назначен.
	TitleStatusPending TitleStatus = "pending"

	// TitleStatusScheduled — для title существует schedule.
	TitleStatusScheduled TitleStatus = "scheduled"

	// TitleStatusCompleted — публикация прошла все стадии.
	TitleStatusCompleted TitleStatus = "completed"

	// TitleStatusFailed — pipeline завершился терминальной ошибкой.
	TitleStatusFailed TitleStatus = "failed"
)

// IsTerminal возвращает true, если статус финальный.
func (s TitleStatus) IsTerminal() bool {
	switch s {
	case TitleStatusCompleted, TitleStatusFailed:
		return true
	default:
		return false
	}
}

// ScheduleStatus — статус schedule.
//
// Жизненный цикл:
//
//	pending → running → completed
//	                  ↘ failed
type ScheduleStatus string

const (
	// ScheduleStatusPending — schedule ждёт своего времени.
	ScheduleStatusPending ScheduleStatus = "pending"

	// ScheduleStatusRunning — pipeline выполняется.
	ScheduleStatusRunning ScheduleStatus = "running"

	// ScheduleStatusCompleted — все стадии завершены успешно.
	ScheduleStatusCompleted ScheduleStatus = "completed"

	// ScheduleStatusFailed — одна из стадий исчерпала retry-бюджет.
	ScheduleStatusFailed ScheduleStatus = "failed"
)

// IsTerminal возвращает true, если статус финальный.
func (s ScheduleStatus) IsTerminal() bool {
	switch s {
	case ScheduleStatusCompleted, ScheduleStatusFailed:
		return true
	default:
		return false
	}
}

// StageStatus — статус стадии pipeline.
//
// Жизненный цикл:
//
//	pending → running → completed
//	                  ↘ failed (может вернуться в pending при retry)
type StageStatus string

const (
	StageStatusPending   StageStatus = "pending"
	StageStatusRunning   StageStatus = "running"
	StageStatusCompleted StageStatus = "completed"
	StageStatusFailed    StageStatus = "failed"
)

// TaskStatus — статус задачи в очереди.
//
// Жизненный цикл:
//
//	waiting → running → completed
//	                  ↘ failed (или обратно в waiting при retry/release)
type TaskStatus string

const (
	// TaskStatusWaiting — задача ждёт claim воркером.
	TaskStatusWaiting TaskStatus = "waiting"

	// TaskStatusRunning — задача захвачена ровно одним воркером.
	TaskStatusRunning TaskStatus = "running"

	// TaskStatusCompleted — задача успешно завершена.
	TaskStatusCompleted TaskStatus = "completed"

	// TaskStatusFailed — задача завершилась терминальной ошибкой.
	TaskStatusFailed TaskStatus = "failed"
)

// IsTerminal возвращает true, если статус финальный.
func (s TaskStatus) IsTerminal() bool {
	switch s {
	case TaskStatusCompleted, TaskStatusFailed:
		return true
	default:
		return false
	}
}
