package platform

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// ErrUnreachable — платформа недоступна на сетевом уровне.
var ErrUnreachable = errors.New("platform unreachable")

// APIError — типизированная ошибка API платформы.
type APIError struct {
	// StatusCode — HTTP-статус ответа.
	StatusCode int

	// Code — машинный код ошибки платформы (если есть).
	Code string

	// Message — человекочитаемое описание.
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("platform API error %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("platform API error %d: %s", e.StatusCode, e.Message)
}

// Retryable сообщает, имеет ли смысл повторять запрос.
// 5xx и 429 — временные; 4xx (кроме 429) — ошибка вызывающего.
func (e *APIError) Retryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// IsRetryable определяет, стоит ли повторять операцию после err.
// Сетевые ошибки считаются временными.
func IsRetryable(err error) bool {
	if errors.Is(err, ErrUnreachable) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Retryable()
	}
	return false
}

// parseAPIError разбирает тело ошибки платформы.
func parseAPIError(status int, body []byte) *APIError {
	var parsed struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil || parsed.Message == "" {
		return &APIError{StatusCode: status, Message: string(body)}
	}
	return &APIError{StatusCode: status, Code: parsed.Code, Message: parsed.Message}
}
