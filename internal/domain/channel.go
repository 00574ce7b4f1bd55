package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PostingMode — режим cadence канала.
type PostingMode string

const (
	// PostingModeFixedInterval — "каждые N часов/дней".
	PostingModeFixedInterval PostingMode = "fixed_interval"

	// PostingModeWeekdayTime — "по Пн/Ср/Пт в 09:00".
	PostingModeWeekdayTime PostingMode = "weekday_time"

	// PostingModeCron — произвольное cron-выражение.
	PostingModeCron PostingMode = "cron"
)

// IntervalUnit — единица интервала для fixed_interval.
type IntervalUnit string

const (
	IntervalUnitHours IntervalUnit = "hours"
	IntervalUnitDays  IntervalUnit = "days"
)

// Ошибки валидации настроек канала.
var (
	ErrEmptyWeekdays    = errors.New("weekday set must not be empty")
	ErrZeroInterval     = errors.New("interval value must be positive")
	ErrModeConfigMix    = errors.New("exactly one posting mode configuration must be set")
	ErrBadTimeOfDay     = errors.New("time of day must be HH:MM")
	ErrUnknownMode      = errors.New("unknown posting mode")
	ErrUnknownUnit      = errors.New("unknown interval unit")
)

// ChannelSetting — политика публикации канала.
//
// Инвариант: заполнена ровно одна конфигурация, соответствующая PostingMode.
// Валидация происходит при записи настроек, не при вычислении cadence.
type ChannelSetting struct {
	// ID — идентификатор канала.
	ID uuid.UUID `json:"id"`

	// Name — отображаемое имя канала.
	Name string `json:"name"`

	// PostingMode — режим cadence.
	PostingMode PostingMode `json:"posting_mode"`

	// IntervalValue, IntervalUnit — конфигурация fixed_interval.
	IntervalValue int          `json:"interval_value,omitempty"`
	IntervalUnit  IntervalUnit `json:"interval_unit,omitempty"`

	// Weekdays, TimeOfDay — конфигурация weekday_time.
	// TimeOfDay в формате "HH:MM".
	Weekdays  []time.Weekday `json:"weekdays,omitempty"`
	TimeOfDay string         `json:"time_of_day,omitempty"`

	// CronExpr — конфигурация cron.
	CronExpr string `json:"cron_expr,omitempty"`

	// Timezone — IANA-таймзона, в которой считается cadence.
	// По умолчанию UTC. Все расчёты идут в одной таймзоне,
	// результат нормализуется в UTC.
	Timezone string `json:"timezone"`

	// Active — неактивные каналы планировщик игнорирует.
	Active bool `json:"active"`

	// Categories — allow-list категорий title. Пустой — без ограничений.
	Categories []string `json:"categories,omitempty"`

	// CreatedAt — время создания.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt — время последнего обновления.
	UpdatedAt time.Time `json:"updated_at"`
}

// AllowsCategory проверяет категорию против allow-list.
func (c *ChannelSetting) AllowsCategory(category string) bool {
	if len(c.Categories) == 0 {
		return true
	}
	for _, allowed := range c.Categories {
		if allowed == category {
			return true
		}
	}
	return false
}

// Validate проверяет инвариант "ровно одна конфигурация режима".
//
// Конфигурация cron-режима проверяется на уровне cadence-пакета,
// здесь — только её наличие.
func (c *ChannelSetting) Validate() error {
	hasInterval := c.IntervalValue != 0 || c.IntervalUnit != ""
	hasWeekday := len(c.Weekdays) != 0 || c.TimeOfDay != ""
	hasCron := c.CronExpr != ""

	switch c.PostingMode {
	case PostingModeFixedInterval:
		if hasWeekday || hasCron {
			return ErrModeConfigMix
		}
		if c.IntervalValue <= 0 {
			return ErrZeroInterval
		}
		if c.IntervalUnit != IntervalUnitHours && c.IntervalUnit != IntervalUnitDays {
			return fmt.Errorf("%w: %q", ErrUnknownUnit, c.IntervalUnit)
		}
	case PostingModeWeekdayTime:
		if hasInterval || hasCron {
			return ErrModeConfigMix
		}
		if len(c.Weekdays) == 0 {
			return ErrEmptyWeekdays
		}
		if _, _, err := ParseTimeOfDay(c.TimeOfDay); err != nil {
			return err
		}
	case PostingModeCron:
		if hasInterval || hasWeekday {
			return ErrModeConfigMix
		}
		if !hasCron {
			return ErrModeConfigMix
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownMode, c.PostingMode)
	}

	return nil
}

// ParseTimeOfDay разбирает строку "HH:MM".
func ParseTimeOfDay(s string) (hour, minute int, err error) {
	if len(s) != 5 || s[2] != ':' {
		return 0, 0, ErrBadTimeOfDay
	}
	if _, err := fmt.Sscanf(s, "%02d:%02d", &hour, &minute); err != nil {
		return 0, 0, ErrBadTimeOfDay
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, ErrBadTimeOfDay
	}
	return hour, minute, nil
}
