package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ContentType — тип производимого контента. Закрытый набор.
type ContentType string

const (
	ContentTypeShortForm ContentType = "short-form"
	ContentTypeLongForm  ContentType = "long-form"
	ContentTypeProduct   ContentType = "product"
)

// ValidateContentType проверяет, что тип входит в закрытый набор.
func ValidateContentType(ct ContentType) error {
	switch ct {
	case ContentTypeShortForm, ContentTypeLongForm, ContentTypeProduct:
		return nil
	default:
		return fmt.Errorf("unknown content type: %q", ct)
	}
}

// Title — единица контент-плана: что нужно произвести и куда опубликовать.
//
// Title создаётся через API, мутируется Pipeline Executor'ом по мере
// продвижения. Пока на title ссылается хотя бы один schedule, удалить его
// нельзя (каскадное удаление только по явному запросу).
type Title struct {
	// ID — уникальный идентификатор title.
	ID uuid.UUID `json:"id"`

	// Text — отображаемый текст (тема ролика).
	Text string `json:"text"`

	// ContentType — тип контента: short-form, long-form, product.
	ContentType ContentType `json:"content_type"`

	// Category — категория контента (используется allow-list каналов).
	Category string `json:"category,omitempty"`

	// Tags — свободные теги.
	Tags []string `json:"tags,omitempty"`

	// Priority — приоритет при автопланировании (больше — раньше).
	Priority int `json:"priority"`

	// ChannelID — целевой канал публикации.
	ChannelID uuid.UUID `json:"channel_id"`

	// UserID — владелец title (его кредиты списываются и возвращаются).
	UserID uuid.UUID `json:"user_id"`

	// Status — текущий статус.
	Status TitleStatus `json:"status"`

	// CreatedAt — время создания.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt — время последнего обновления.
	UpdatedAt time.Time `json:"updated_at"`
}

// MarkScheduled переводит title в статус scheduled.
func (t *Title) MarkScheduled() {
	t.Status = TitleStatusScheduled
	t.UpdatedAt = time.Now()
}

// MarkCompleted переводит title в статус completed.
func (t *Title) MarkCompleted() {
	t.Status = TitleStatusCompleted
	t.UpdatedAt = time.Now()
}

// MarkFailed переводит title в статус failed.
func (t *Title) MarkFailed() {
	t.Status = TitleStatusFailed
	t.UpdatedAt = time.Now()
}
