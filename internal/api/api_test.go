package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
)

// Валидация отклоняет запрос до обращения к БД, поэтому обработчики
// тестируются с пустыми зависимостями.
func newTestMux(t *testing.T) *http.ServeMux {
	t.Helper()
	h := NewHandler(Config{})
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	return mux
}

func doJSON(t *testing.T, mux *http.ServeMux, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorDetail {
	t.Helper()
	var resp ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	return resp.Error
}

// --- Past-time rejection ---

func TestCreateSchedule_PastTimeRejected(t *testing.T) {
	mux := newTestMux(t)

	rec := doJSON(t, mux, http.MethodPost,
		fmt.Sprintf("/api/v1/titles/%s/schedules", uuid.New()),
		CreateScheduleRequest{ScheduledAt: time.Now().Add(-time.Hour)},
	)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if detail := decodeError(t, rec); detail.Code != ErrCodeBadRequest {
		t.Errorf("error code = %s, want BAD_REQUEST", detail.Code)
	}
}

func TestUpdateScheduleTime_PastTimeRejected(t *testing.T) {
	mux := newTestMux(t)

	rec := doJSON(t, mux, http.MethodPut,
		fmt.Sprintf("/api/v1/schedules/%s/time", uuid.New()),
		UpdateScheduleTimeRequest{NewTime: time.Now().Add(-time.Minute)},
	)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestCreateSchedule_MissingTime(t *testing.T) {
	mux := newTestMux(t)

	rec := doJSON(t, mux, http.MethodPost,
		fmt.Sprintf("/api/v1/titles/%s/schedules", uuid.New()),
		CreateScheduleRequest{},
	)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestCreateSchedule_InvalidPrivacy(t *testing.T) {
	mux := newTestMux(t)

	rec := doJSON(t, mux, http.MethodPost,
		fmt.Sprintf("/api/v1/titles/%s/schedules", uuid.New()),
		CreateScheduleRequest{
			ScheduledAt: time.Now().Add(time.Hour),
			Privacy:     "friends-only",
		},
	)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestCreateSchedule_PublishBeforeScheduled(t *testing.T) {
	mux := newTestMux(t)

	scheduledAt := time.Now().Add(2 * time.Hour)
	publishAt := scheduledAt.Add(-time.Hour)

	rec := doJSON(t, mux, http.MethodPost,
		fmt.Sprintf("/api/v1/titles/%s/schedules", uuid.New()),
		CreateScheduleRequest{ScheduledAt: scheduledAt, PublishAt: &publishAt},
	)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

// --- Title validation ---

func TestCreateTitle_UnknownContentType(t *testing.T) {
	mux := newTestMux(t)

	rec := doJSON(t, mux, http.MethodPost, "/api/v1/titles", CreateTitleRequest{
		Text:        "десять фактов о велосипедах",
		ContentType: "podcast",
		ChannelID:   uuid.NewString(),
		UserID:      uuid.NewString(),
	})

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestCreateTitle_EmptyText(t *testing.T) {
	mux := newTestMux(t)

	rec := doJSON(t, mux, http.MethodPost, "/api/v1/titles", CreateTitleRequest{
		ContentType: "short-form",
		ChannelID:   uuid.NewString(),
		UserID:      uuid.NewString(),
	})

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

// --- Channel validation ---

func TestCreateChannel_EmptyWeekdays(t *testing.T) {
	mux := newTestMux(t)

	rec := doJSON(t, mux, http.MethodPost, "/api/v1/channels", ChannelRequest{
		Name:        "weekday-channel",
		PostingMode: "weekday_time",
		TimeOfDay:   "09:00",
	})

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestCreateChannel_ZeroInterval(t *testing.T) {
	mux := newTestMux(t)

	rec := doJSON(t, mux, http.MethodPost, "/api/v1/channels", ChannelRequest{
		Name:         "interval-channel",
		PostingMode:  "fixed_interval",
		IntervalUnit: "hours",
	})

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestCreateChannel_BadCron(t *testing.T) {
	mux := newTestMux(t)

	rec := doJSON(t, mux, http.MethodPost, "/api/v1/channels", ChannelRequest{
		Name:        "cron-channel",
		PostingMode: "cron",
		CronExpr:    "not a cron",
	})

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

// --- Queue task validation ---

func TestEnqueueTask_UnknownKind(t *testing.T) {
	mux := newTestMux(t)

	rec := doJSON(t, mux, http.MethodPost, "/api/v1/tasks", EnqueueTaskRequest{
		Kind: "audio-mix",
	})

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

// video-render ставит только стадия video pipeline — прямая постановка
// через API отклоняется.
func TestEnqueueTask_VideoRenderRejected(t *testing.T) {
	mux := newTestMux(t)

	rec := doJSON(t, mux, http.MethodPost, "/api/v1/tasks", EnqueueTaskRequest{
		Kind: "video-render",
	})

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestEnqueueTask_NegativeMaxRetries(t *testing.T) {
	mux := newTestMux(t)

	n := -1
	rec := doJSON(t, mux, http.MethodPost, "/api/v1/tasks", EnqueueTaskRequest{
		Kind:       "http-call",
		MaxRetries: &n,
	})

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

// --- Credits ---

func TestDeposit_NonPositiveAmount(t *testing.T) {
	mux := newTestMux(t)

	rec := doJSON(t, mux, http.MethodPost,
		fmt.Sprintf("/api/v1/users/%s/deposit", uuid.New()),
		DepositRequest{Amount: 0},
	)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestInvalidUUIDRejected(t *testing.T) {
	mux := newTestMux(t)

	rec := doJSON(t, mux, http.MethodGet, "/api/v1/schedules/not-a-uuid", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}
