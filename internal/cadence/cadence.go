package cadence

import (
	"fmt"
	"sort"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/shaiso/Fabrika/internal/domain"
)

// cronParser — парсер cron-выражений (стандартные 5 полей).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// NextRunTime вычисляет следующий слот публикации для канала.
//
// Функция чистая: никаких побочных эффектов, "сейчас" передаётся явно.
// Все расчёты идут в таймзоне настройки (IANA, по умолчанию UTC),
// результат нормализуется в UTC для хранения в БД.
//
//   - fixed_interval: lastRun + value*unit. Если lastRun отсутствует —
//     возвращается now (канал может публиковать сразу).
//   - weekday_time: ближайший момент >= now, попадающий на один из
//     настроенных дней недели в настроенное время. Если сегодня день
//     подходит, но время прошло — перекат на следующий подходящий день
//     (с переходом через границу недели).
//   - cron: следующее срабатывание cron-выражения после now.
//
// Некорректная конфигурация (пустой набор дней, нулевой интервал)
// отклоняется при записи настроек (ChannelSetting.Validate + ValidateSetting);
// здесь она возвращает ошибку, а не панику.
func NextRunTime(setting *domain.ChannelSetting, lastRun *time.Time, now time.Time) (time.Time, error) {
	loc := location(setting.Timezone)
	nowTz := now.In(loc)

	switch setting.PostingMode {
	case domain.PostingModeFixedInterval:
		return nextFixedInterval(setting, lastRun, nowTz)
	case domain.PostingModeWeekdayTime:
		return nextWeekdayTime(setting, nowTz)
	case domain.PostingModeCron:
		return nextCron(setting.CronExpr, nowTz)
	default:
		return time.Time{}, fmt.Errorf("%w: %q", domain.ErrUnknownMode, setting.PostingMode)
	}
}

// nextFixedInterval — режим "каждые N часов/дней".
func nextFixedInterval(setting *domain.ChannelSetting, lastRun *time.Time, now time.Time) (time.Time, error) {
	if setting.IntervalValue <= 0 {
		return time.Time{}, domain.ErrZeroInterval
	}

	var unit time.Duration
	switch setting.IntervalUnit {
	case domain.IntervalUnitHours:
		unit = time.Hour
	case domain.IntervalUnitDays:
		unit = 24 * time.Hour
	default:
		return time.Time{}, fmt.Errorf("%w: %q", domain.ErrUnknownUnit, setting.IntervalUnit)
	}

	if lastRun == nil {
		return now.UTC(), nil
	}

	next := lastRun.Add(time.Duration(setting.IntervalValue) * unit)
	return next.UTC(), nil
}

// nextWeekdayTime — режим "по дням недели в HH:MM".
func nextWeekdayTime(setting *domain.ChannelSetting, now time.Time) (time.Time, error) {
	if len(setting.Weekdays) == 0 {
		return time.Time{}, domain.ErrEmptyWeekdays
	}

	hour, minute, err := domain.ParseTimeOfDay(setting.TimeOfDay)
	if err != nil {
		return time.Time{}, err
	}

	allowed := make(map[time.Weekday]bool, len(setting.Weekdays))
	for _, wd := range setting.Weekdays {
		allowed[wd] = true
	}

	// Перебираем максимум 8 дней: сегодня (время могло не пройти)
	// плюс полная неделя.
	for offset := 0; offset <= 7; offset++ {
		day := now.AddDate(0, 0, offset)
		if !allowed[day.Weekday()] {
			continue
		}

		candidate := time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, now.Location())
		if candidate.Before(now) {
			continue
		}
		return candidate.UTC(), nil
	}

	// Недостижимо при непустом наборе дней.
	return time.Time{}, domain.ErrEmptyWeekdays
}

// nextCron — режим cron-выражения.
func nextCron(expr string, now time.Time) (time.Time, error) {
	schedule, err := cronParser.Parse(expr)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse cron expression %q: %w", expr, err)
	}
	return schedule.Next(now).UTC(), nil
}

// ValidateSetting полностью проверяет настройку канала перед записью:
// доменный инвариант плюс разбор cron-выражения.
func ValidateSetting(setting *domain.ChannelSetting) error {
	if err := setting.Validate(); err != nil {
		return err
	}
	if setting.PostingMode == domain.PostingModeCron {
		if _, err := cronParser.Parse(setting.CronExpr); err != nil {
			return fmt.Errorf("invalid cron expression %q: %w", setting.CronExpr, err)
		}
	}
	if setting.Timezone != "" {
		if _, err := time.LoadLocation(setting.Timezone); err != nil {
			return fmt.Errorf("invalid timezone %q: %w", setting.Timezone, err)
		}
	}
	return nil
}

// SortedWeekdays возвращает отсортированную копию набора дней
// (для детерминированного вывода в API и логах).
func SortedWeekdays(weekdays []time.Weekday) []time.Weekday {
	out := make([]time.Weekday, len(weekdays))
	copy(out, weekdays)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// location загружает таймзону с fallback на UTC.
func location(tz string) *time.Location {
	if tz == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.UTC
	}
	return loc
}
