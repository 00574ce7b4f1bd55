package worker

import "errors"

// Ошибки воркера.
var (
	// ErrUnknownTaskKind — нет executor'а для данного kind.
	ErrUnknownTaskKind = errors.New("unknown task kind")

	// ErrSpawn — внешний процесс не удалось запустить.
	// Терминальная ошибка: попытка не состоялась, retry-бюджет
	// не расходуется.
	ErrSpawn = errors.New("failed to spawn process")

	// ErrExecutionTimeout — выполнение задачи превысило wall-clock таймаут.
	ErrExecutionTimeout = errors.New("execution timeout")

	// ErrCancelled — задача отменена через control exchange.
	ErrCancelled = errors.New("task cancelled")

	// ErrHTTPRequest — HTTP-вызов завершился ошибкой.
	ErrHTTPRequest = errors.New("http request failed")
)
