package scriptgen

import (
	"context"
	"errors"
)

// Ошибки генерации сценария.
var (
	// ErrEmptyScript — модель вернула пустой или непригодный сценарий.
	// Генератор никогда не возвращает молча пустой результат.
	ErrEmptyScript = errors.New("generated script is empty")

	// ErrNoResponse — провайдер не вернул ни одного блока контента.
	ErrNoResponse = errors.New("no response from provider")
)

// Input — вход генератора сценария.
type Input struct {
	// Title — тема ролика.
	Title string

	// ContentType — тип контента (short-form, long-form, product).
	// Влияет на длину и структуру сценария.
	ContentType string

	// Category — тематическая категория (опционально).
	Category string
}

// Scene — одна сцена сценария.
type Scene struct {
	// Text — закадровый текст сцены.
	Text string `json:"text"`

	// Keywords — ключевые слова для подбора визуального ряда.
	Keywords []string `json:"keywords"`
}

// Script — структурированный сценарий ролика.
type Script struct {
	// Hook — цепляющая первая фраза.
	Hook string `json:"hook"`

	// Scenes — сцены в порядке воспроизведения.
	Scenes []Scene `json:"scenes"`

	// Description — описание ролика для публикации.
	Description string `json:"description"`

	// ModelUsed — модель, сгенерировавшая сценарий.
	ModelUsed string `json:"model_used"`
}

// Client — генератор сценариев.
//
// Реализации: AnthropicClient, OpenAIClient. Таймаут задаётся через
// ctx вызывающей стороной (стадия script оборачивает вызов в
// context.WithTimeout).
type Client interface {
	Generate(ctx context.Context, input Input) (*Script, error)
}
