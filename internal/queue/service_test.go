package queue

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shaiso/Fabrika/internal/domain"
)

func newTestService() (*Service, *memStore) {
	store := newMemStore()
	return NewService(store, nil, nil), store
}

// --- Enqueue / Claim ---

func TestEnqueue_Defaults(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	task, err := svc.Enqueue(ctx, EnqueueParams{
		Kind:       domain.TaskKindVideoRender,
		Payload:    map[string]any{"script_id": "abc"},
		MaxRetries: -1,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if task.Status != domain.TaskStatusWaiting {
		t.Errorf("expected waiting, got %s", task.Status)
	}
	if task.MaxRetries != DefaultMaxRetries {
		t.Errorf("expected default max retries %d, got %d", DefaultMaxRetries, task.MaxRetries)
	}
	if task.RetryCount != 0 {
		t.Errorf("expected retry count 0, got %d", task.RetryCount)
	}
}

func TestClaim_OldestFirst(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	first, err := svc.Enqueue(ctx, EnqueueParams{Kind: domain.TaskKindVideoRender})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if _, err := svc.Enqueue(ctx, EnqueueParams{Kind: domain.TaskKindVideoRender}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	claimed, err := svc.Claim(ctx, domain.TaskKindVideoRender)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if claimed.ID != first.ID {
		t.Errorf("expected oldest task %s, got %s", first.ID, claimed.ID)
	}
	if claimed.Status != domain.TaskStatusRunning {
		t.Errorf("expected running, got %s", claimed.Status)
	}
	if claimed.StartedAt == nil {
		t.Error("expected started_at to be set")
	}
}

func TestClaim_Empty(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.Claim(context.Background(), domain.TaskKindVideoRender)
	if !errors.Is(err, ErrNoTask) {
		t.Fatalf("expected ErrNoTask, got %v", err)
	}
}

func TestClaim_FiltersByKind(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	if _, err := svc.Enqueue(ctx, EnqueueParams{Kind: domain.TaskKindImageCrawl}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	_, err := svc.Claim(ctx, domain.TaskKindVideoRender)
	if !errors.Is(err, ErrNoTask) {
		t.Fatalf("expected ErrNoTask for other kind, got %v", err)
	}
}

// TestClaim_ExactlyOnce — N конкурентных воркеров на одну задачу:
// ровно один получает её, остальные видят пустую очередь.
func TestClaim_ExactlyOnce(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	if _, err := svc.Enqueue(ctx, EnqueueParams{Kind: domain.TaskKindVideoRender}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	const workers = 32

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		claimed int
		empty   int
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			_, err := svc.Claim(ctx, domain.TaskKindVideoRender)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				claimed++
			case errors.Is(err, ErrNoTask):
				empty++
			default:
				t.Errorf("unexpected claim error: %v", err)
			}
		}()
	}
	wg.Wait()

	if claimed != 1 {
		t.Errorf("expected exactly 1 successful claim, got %d", claimed)
	}
	if empty != workers-1 {
		t.Errorf("expected %d empty claims, got %d", workers-1, empty)
	}
}

// --- Fail / retry budget ---

// TestFail_RetryBudget — задача с MaxRetries=2: две неудачи возвращают
// её в waiting, третья делает терминальной failed с retry_count == 2.
func TestFail_RetryBudget(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()

	task, err := svc.Enqueue(ctx, EnqueueParams{Kind: domain.TaskKindVideoRender, MaxRetries: 2})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	for attempt := 1; attempt <= 3; attempt++ {
		claimed, err := svc.Claim(ctx, domain.TaskKindVideoRender)
		if err != nil {
			t.Fatalf("claim attempt %d: %v", attempt, err)
		}

		alive, err := svc.Fail(ctx, claimed, "render crashed", true)
		if err != nil {
			t.Fatalf("fail attempt %d: %v", attempt, err)
		}

		wantAlive := attempt < 3
		if alive != wantAlive {
			t.Errorf("attempt %d: alive = %v, want %v", attempt, alive, wantAlive)
		}
	}

	final, err := store.GetByID(ctx, task.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if final.Status != domain.TaskStatusFailed {
		t.Errorf("expected failed, got %s", final.Status)
	}
	if final.RetryCount != 2 {
		t.Errorf("expected retry_count 2, got %d", final.RetryCount)
	}
	if final.Error != "render crashed" {
		t.Errorf("unexpected error message: %q", final.Error)
	}
	if final.FinishedAt == nil {
		t.Error("expected finished_at on terminal failure")
	}
}

func TestFail_NoRetry_Terminal(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()

	task, err := svc.Enqueue(ctx, EnqueueParams{Kind: domain.TaskKindVideoRender, MaxRetries: 2})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	claimed, err := svc.Claim(ctx, domain.TaskKindVideoRender)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}

	// retry=false — сразу терминальный failed, бюджет не тратится
	alive, err := svc.Fail(ctx, claimed, "binary not found", false)
	if err != nil {
		t.Fatalf("fail: %v", err)
	}
	if alive {
		t.Error("expected task to be terminal")
	}

	final, _ := store.GetByID(ctx, task.ID)
	if final.Status != domain.TaskStatusFailed {
		t.Errorf("expected failed, got %s", final.Status)
	}
	if final.RetryCount != 0 {
		t.Errorf("expected retry_count 0, got %d", final.RetryCount)
	}
}

func TestFail_NotRunning(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	task, err := svc.Enqueue(ctx, EnqueueParams{Kind: domain.TaskKindVideoRender})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	if _, err := svc.Fail(ctx, task, "boom", true); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("expected ErrNotRunning, got %v", err)
	}
}

// --- CancelWaiting ---

// TestCancelWaiting — отмена до захвата воркером: условный переход
// waiting → failed, терминально и без расхода retry-бюджета.
func TestCancelWaiting(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()

	task, err := svc.Enqueue(ctx, EnqueueParams{Kind: domain.TaskKindVideoRender, MaxRetries: 2})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	cancelled, err := svc.CancelWaiting(ctx, task.ID, "cancelled before execution")
	if err != nil {
		t.Fatalf("cancel waiting: %v", err)
	}
	if cancelled.Status != domain.TaskStatusFailed {
		t.Errorf("expected failed, got %s", cancelled.Status)
	}
	if cancelled.Error != "cancelled before execution" {
		t.Errorf("unexpected error message: %q", cancelled.Error)
	}
	if cancelled.FinishedAt == nil {
		t.Error("expected finished_at to be set")
	}

	final, _ := store.GetByID(ctx, task.ID)
	if final.Status != domain.TaskStatusFailed {
		t.Errorf("expected failed in store, got %s", final.Status)
	}

	if _, err := svc.Claim(ctx, domain.TaskKindVideoRender); !errors.Is(err, ErrNoTask) {
		t.Fatalf("cancelled task must not be claimable, got %v", err)
	}
}

// TestCancelWaiting_RunningUntouched — задачу успели захватить:
// условный UPDATE не находит waiting-строку, running-статус цел.
func TestCancelWaiting_RunningUntouched(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()

	task, err := svc.Enqueue(ctx, EnqueueParams{Kind: domain.TaskKindVideoRender})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if _, err := svc.Claim(ctx, domain.TaskKindVideoRender); err != nil {
		t.Fatalf("claim: %v", err)
	}

	if _, err := svc.CancelWaiting(ctx, task.ID, "too late"); !errors.Is(err, ErrNoTask) {
		t.Fatalf("expected ErrNoTask for running task, got %v", err)
	}

	current, _ := store.GetByID(ctx, task.ID)
	if current.Status != domain.TaskStatusRunning {
		t.Errorf("running task must stay running, got %s", current.Status)
	}
}

// --- Complete / Release ---

func TestComplete(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()

	task, err := svc.Enqueue(ctx, EnqueueParams{Kind: domain.TaskKindVideoRender})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	claimed, err := svc.Claim(ctx, domain.TaskKindVideoRender)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}

	output := map[string]any{"video_path": "/data/out.mp4"}
	if err := svc.Complete(ctx, claimed, output); err != nil {
		t.Fatalf("complete: %v", err)
	}

	final, _ := store.GetByID(ctx, task.ID)
	if final.Status != domain.TaskStatusCompleted {
		t.Errorf("expected completed, got %s", final.Status)
	}
	if final.Output["video_path"] != "/data/out.mp4" {
		t.Errorf("unexpected output: %v", final.Output)
	}
}

// TestRelease — release возвращает задачу в waiting без расхода
// retry-бюджета; следующий claim получает её заново.
func TestRelease(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	task, err := svc.Enqueue(ctx, EnqueueParams{Kind: domain.TaskKindVideoRender, MaxRetries: 2})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	claimed, err := svc.Claim(ctx, domain.TaskKindVideoRender)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}

	if err := svc.Release(ctx, claimed); err != nil {
		t.Fatalf("release: %v", err)
	}

	reclaimed, err := svc.Claim(ctx, domain.TaskKindVideoRender)
	if err != nil {
		t.Fatalf("reclaim: %v", err)
	}
	if reclaimed.ID != task.ID {
		t.Errorf("expected same task %s, got %s", task.ID, reclaimed.ID)
	}
	if reclaimed.RetryCount != 0 {
		t.Errorf("release must not consume retry budget, got retry_count %d", reclaimed.RetryCount)
	}
}
