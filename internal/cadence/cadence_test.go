package cadence

import (
	"errors"
	"testing"
	"time"

	"github.com/shaiso/Fabrika/internal/domain"
)

// --- fixed_interval ---

func TestNextRunTime_FixedInterval_Hours(t *testing.T) {
	setting := &domain.ChannelSetting{
		PostingMode:   domain.PostingModeFixedInterval,
		IntervalValue: 6,
		IntervalUnit:  domain.IntervalUnitHours,
	}

	// Свойство должно выполняться для любого lastRun.
	starts := []time.Time{
		time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 6, 15, 23, 30, 0, 0, time.UTC),
		time.Date(2025, 12, 31, 18, 0, 1, 0, time.UTC),
	}

	for _, lastRun := range starts {
		next, err := NextRunTime(setting, &lastRun, lastRun.Add(time.Minute))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if want := lastRun.Add(6 * time.Hour); !next.Equal(want) {
			t.Errorf("lastRun=%v: expected %v, got %v", lastRun, want, next)
		}
	}
}

func TestNextRunTime_FixedInterval_Days(t *testing.T) {
	setting := &domain.ChannelSetting{
		PostingMode:   domain.PostingModeFixedInterval,
		IntervalValue: 2,
		IntervalUnit:  domain.IntervalUnitDays,
	}

	lastRun := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	next, err := NextRunTime(setting, &lastRun, lastRun)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := lastRun.Add(48 * time.Hour); !next.Equal(want) {
		t.Errorf("expected %v, got %v", want, next)
	}
}

func TestNextRunTime_FixedInterval_NoLastRun(t *testing.T) {
	setting := &domain.ChannelSetting{
		PostingMode:   domain.PostingModeFixedInterval,
		IntervalValue: 6,
		IntervalUnit:  domain.IntervalUnitHours,
	}

	now := time.Date(2025, 5, 5, 12, 0, 0, 0, time.UTC)
	next, err := NextRunTime(setting, nil, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Без lastRun канал может публиковать сразу.
	if !next.Equal(now) {
		t.Errorf("expected now (%v), got %v", now, next)
	}
}

func TestNextRunTime_FixedInterval_ZeroInterval(t *testing.T) {
	setting := &domain.ChannelSetting{
		PostingMode:  domain.PostingModeFixedInterval,
		IntervalUnit: domain.IntervalUnitHours,
	}

	_, err := NextRunTime(setting, nil, time.Now())
	if !errors.Is(err, domain.ErrZeroInterval) {
		t.Errorf("expected ErrZeroInterval, got %v", err)
	}
}

// --- weekday_time ---

func TestNextRunTime_WeekdayTime_Rollover(t *testing.T) {
	setting := &domain.ChannelSetting{
		PostingMode: domain.PostingModeWeekdayTime,
		Weekdays:    []time.Weekday{time.Monday, time.Wednesday},
		TimeOfDay:   "09:00",
	}

	// Среда 10:00 — время сегодняшнего слота уже прошло,
	// следующий слот — понедельник 09:00.
	now := time.Date(2025, 1, 8, 10, 0, 0, 0, time.UTC) // Wed
	next, err := NextRunTime(setting, nil, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := time.Date(2025, 1, 13, 9, 0, 0, 0, time.UTC) // next Mon
	if !next.Equal(want) {
		t.Errorf("expected %v, got %v", want, next)
	}
}

func TestNextRunTime_WeekdayTime_TodayStillAhead(t *testing.T) {
	setting := &domain.ChannelSetting{
		PostingMode: domain.PostingModeWeekdayTime,
		Weekdays:    []time.Weekday{time.Wednesday},
		TimeOfDay:   "09:00",
	}

	now := time.Date(2025, 1, 8, 8, 0, 0, 0, time.UTC) // Wed 08:00
	next, err := NextRunTime(setting, nil, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := time.Date(2025, 1, 8, 9, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("expected same-day slot %v, got %v", want, next)
	}
}

func TestNextRunTime_WeekdayTime_ExactMoment(t *testing.T) {
	setting := &domain.ChannelSetting{
		PostingMode: domain.PostingModeWeekdayTime,
		Weekdays:    []time.Weekday{time.Friday},
		TimeOfDay:   "12:30",
	}

	// Ровно в момент слота — слот ещё валиден (>= now).
	now := time.Date(2025, 1, 10, 12, 30, 0, 0, time.UTC) // Fri
	next, err := NextRunTime(setting, nil, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !next.Equal(now) {
		t.Errorf("expected %v, got %v", now, next)
	}
}

func TestNextRunTime_WeekdayTime_Timezone(t *testing.T) {
	setting := &domain.ChannelSetting{
		PostingMode: domain.PostingModeWeekdayTime,
		Weekdays:    []time.Weekday{time.Monday},
		TimeOfDay:   "09:00",
		Timezone:    "Europe/Moscow", // UTC+3, без DST
	}

	// Понедельник 05:00 UTC = 08:00 MSK, слот 09:00 MSK = 06:00 UTC.
	now := time.Date(2025, 1, 6, 5, 0, 0, 0, time.UTC)
	next, err := NextRunTime(setting, nil, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := time.Date(2025, 1, 6, 6, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("expected %v, got %v", want, next)
	}
}

func TestNextRunTime_WeekdayTime_EmptyWeekdays(t *testing.T) {
	setting := &domain.ChannelSetting{
		PostingMode: domain.PostingModeWeekdayTime,
		TimeOfDay:   "09:00",
	}

	_, err := NextRunTime(setting, nil, time.Now())
	if !errors.Is(err, domain.ErrEmptyWeekdays) {
		t.Errorf("expected ErrEmptyWeekdays, got %v", err)
	}
}

// --- cron ---

func TestNextRunTime_Cron(t *testing.T) {
	setting := &domain.ChannelSetting{
		PostingMode: domain.PostingModeCron,
		CronExpr:    "0 9 * * *",
	}

	now := time.Date(2025, 1, 8, 10, 0, 0, 0, time.UTC)
	next, err := NextRunTime(setting, nil, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := time.Date(2025, 1, 9, 9, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("expected %v, got %v", want, next)
	}
}

// --- ValidateSetting ---

func TestValidateSetting(t *testing.T) {
	tests := []struct {
		name    string
		setting domain.ChannelSetting
		wantErr bool
	}{
		{
			name: "valid interval",
			setting: domain.ChannelSetting{
				PostingMode:   domain.PostingModeFixedInterval,
				IntervalValue: 6,
				IntervalUnit:  domain.IntervalUnitHours,
			},
		},
		{
			name: "valid weekday",
			setting: domain.ChannelSetting{
				PostingMode: domain.PostingModeWeekdayTime,
				Weekdays:    []time.Weekday{time.Monday},
				TimeOfDay:   "09:00",
			},
		},
		{
			name: "valid cron",
			setting: domain.ChannelSetting{
				PostingMode: domain.PostingModeCron,
				CronExpr:    "*/5 * * * *",
			},
		},
		{
			name: "mixed configs",
			setting: domain.ChannelSetting{
				PostingMode:   domain.PostingModeFixedInterval,
				IntervalValue: 6,
				IntervalUnit:  domain.IntervalUnitHours,
				Weekdays:      []time.Weekday{time.Monday},
			},
			wantErr: true,
		},
		{
			name: "zero interval",
			setting: domain.ChannelSetting{
				PostingMode:  domain.PostingModeFixedInterval,
				IntervalUnit: domain.IntervalUnitHours,
			},
			wantErr: true,
		},
		{
			name: "empty weekdays",
			setting: domain.ChannelSetting{
				PostingMode: domain.PostingModeWeekdayTime,
				TimeOfDay:   "09:00",
			},
			wantErr: true,
		},
		{
			name: "bad time of day",
			setting: domain.ChannelSetting{
				PostingMode: domain.PostingModeWeekdayTime,
				Weekdays:    []time.Weekday{time.Monday},
				TimeOfDay:   "25:99",
			},
			wantErr: true,
		},
		{
			name: "bad cron",
			setting: domain.ChannelSetting{
				PostingMode: domain.PostingModeCron,
				CronExpr:    "not a cron",
			},
			wantErr: true,
		},
		{
			name: "bad timezone",
			setting: domain.ChannelSetting{
				PostingMode: domain.PostingModeCron,
				CronExpr:    "0 9 * * *",
				Timezone:    "Mars/Olympus",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSetting(&tt.setting)
			if tt.wantErr && err == nil {
				t.Error("expected error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}
