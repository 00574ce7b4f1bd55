package repo

import "errors"

// Общие ошибки репозиториев.
var (
	// ErrNotFound — запись не найдена в БД.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists — запись уже существует (конфликт уникальности).
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidState — операция невозможна в текущем состоянии
	// (например, обновление прошедшего schedule не в терминальный статус).
	ErrInvalidState = errors.New("invalid state")

	// ErrInsufficientCredits — на балансе не хватает кредитов.
	ErrInsufficientCredits = errors.New("insufficient credits")

	// ErrTitleReferenced — title нельзя удалить, пока на него
	// ссылаются schedules (без явного каскада).
	ErrTitleReferenced = errors.New("title is referenced by schedules")
)

// --- helpers для nullable-колонок ---

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullInt(v int) *int {
	if v == 0 {
		return nil
	}
	return &v
}
