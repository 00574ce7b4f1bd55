package worker

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Fabrika/internal/domain"
	"github.com/shaiso/Fabrika/internal/mq"
	"github.com/shaiso/Fabrika/internal/queue"
	"github.com/shaiso/Fabrika/internal/repo"
)

// --- Фейки ---

// memTaskStore — in-memory хранилище задач с мьютексным claim.
type memTaskStore struct {
	mu    sync.Mutex
	tasks map[uuid.UUID]*domain.QueueTask
}

func newMemTaskStore() *memTaskStore {
	return &memTaskStore{tasks: make(map[uuid.UUID]*domain.QueueTask)}
}

func (s *memTaskStore) Insert(_ context.Context, task *domain.QueueTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *task
	s.tasks[task.ID] = &cp
	return nil
}

func (s *memTaskStore) ClaimOldest(_ context.Context, kind domain.TaskKind) (*domain.QueueTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var oldest *domain.QueueTask
	for _, task := range s.tasks {
		if task.Kind != kind || task.Status != domain.TaskStatusWaiting {
			continue
		}
		if oldest == nil || task.CreatedAt.Before(oldest.CreatedAt) {
			oldest = task
		}
	}
	if oldest == nil {
		return nil, repo.ErrNotFound
	}

	now := time.Now()
	oldest.Status = domain.TaskStatusRunning
	oldest.StartedAt = &now

	cp := *oldest
	return &cp, nil
}

func (s *memTaskStore) GetByID(_ context.Context, id uuid.UUID) (*domain.QueueTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	cp := *task
	return &cp, nil
}

func (s *memTaskStore) Update(_ context.Context, task *domain.QueueTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[task.ID]; !ok {
		return repo.ErrNotFound
	}
	cp := *task
	s.tasks[task.ID] = &cp
	return nil
}

func (s *memTaskStore) CancelWaiting(_ context.Context, id uuid.UUID, errMsg string) (*domain.QueueTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[id]
	if !ok || task.Status != domain.TaskStatusWaiting {
		return nil, repo.ErrNotFound
	}
	now := time.Now()
	task.Status = domain.TaskStatusFailed
	task.Error = errMsg
	task.FinishedAt = &now
	cp := *task
	return &cp, nil
}

type fakeCompletionPublisher struct {
	mu       sync.Mutex
	payloads []mq.TaskCompletedPayload
}

func (p *fakeCompletionPublisher) PublishTaskCompleted(_ context.Context, payload mq.TaskCompletedPayload) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.payloads = append(p.payloads, payload)
	return nil
}

func (p *fakeCompletionPublisher) last(t *testing.T) mq.TaskCompletedPayload {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.payloads) == 0 {
		t.Fatal("no completion published")
	}
	return p.payloads[len(p.payloads)-1]
}

type fakePIDStore struct {
	mu   sync.Mutex
	pids []int
}

func (s *fakePIDStore) SetPID(_ context.Context, _ uuid.UUID, pid int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pids = append(s.pids, pid)
	return nil
}

type fakeLogSink struct {
	mu      sync.Mutex
	entries []domain.LogEntry
}

func (s *fakeLogSink) Append(_ context.Context, entry *domain.LogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, *entry)
	return nil
}

// fakeExecutor возвращает заранее заданный результат.
type fakeExecutor struct {
	output map[string]any
	err    error
}

func (e *fakeExecutor) Execute(_ context.Context, _ *domain.QueueTask) (map[string]any, error) {
	return e.output, e.err
}

// blockingExecutor висит до отмены context.
type blockingExecutor struct {
	started chan struct{}
}

func (e *blockingExecutor) Execute(ctx context.Context, _ *domain.QueueTask) (map[string]any, error) {
	close(e.started)
	<-ctx.Done()
	return nil, ctx.Err()
}

func newTestWorker(store *memTaskStore, registry *Registry, pub CompletionPublisher) (*Worker, *queue.Service) {
	svc := queue.NewService(store, nil, nil)
	w := New(Config{
		Queue:     svc,
		Publisher: pub,
		Registry:  registry,
	})
	return w, svc
}

func enqueueTask(t *testing.T, svc *queue.Service, kind domain.TaskKind, payload map[string]any, maxRetries int) *domain.QueueTask {
	t.Helper()
	task, err := svc.Enqueue(context.Background(), queue.EnqueueParams{
		Kind:       kind,
		Payload:    payload,
		MaxRetries: maxRetries,
	})
	if err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	return task
}

// --- ProcessExecutor ---

func TestProcessExecutor_Success(t *testing.T) {
	pids := &fakePIDStore{}
	logs := &fakeLogSink{}

	executor := NewProcessExecutor(ProcessConfig{
		Command: "sh",
		Args:    []string{"-c", `cat >/dev/null; echo "rendering scene 1"; echo '{"video_path":"/tmp/out.mp4"}'`},
		PIDs:    pids,
		Logs:    logs,
	})

	task := &domain.QueueTask{
		ID:      uuid.New(),
		Kind:    domain.TaskKindVideoRender,
		Payload: map[string]any{"title": "test"},
	}

	output, err := executor.Execute(context.Background(), task)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	// Последняя JSON-строка stdout становится output
	if output["video_path"] != "/tmp/out.mp4" {
		t.Errorf("output[video_path] = %v, want /tmp/out.mp4", output["video_path"])
	}

	// PID записан при старте и сброшен после завершения
	if len(pids.pids) != 2 {
		t.Fatalf("SetPID calls = %d, want 2", len(pids.pids))
	}
	if pids.pids[0] == 0 {
		t.Error("first SetPID must record a live pid")
	}
	if pids.pids[1] != 0 {
		t.Errorf("last SetPID = %d, want 0", pids.pids[1])
	}

	// Progress-строки ушли в лог с привязкой к задаче
	if len(logs.entries) == 0 {
		t.Fatal("stdout lines were not logged")
	}
	if logs.entries[0].TaskID == nil || *logs.entries[0].TaskID != task.ID {
		t.Error("log entry must reference the task")
	}
}

func TestProcessExecutor_NonZeroExit(t *testing.T) {
	executor := NewProcessExecutor(ProcessConfig{
		Command: "sh",
		Args:    []string{"-c", "exit 3"},
	})

	task := &domain.QueueTask{ID: uuid.New(), Kind: domain.TaskKindVideoRender}

	_, err := executor.Execute(context.Background(), task)
	if err == nil {
		t.Fatal("expected error for non-zero exit")
	}
	if errors.Is(err, ErrSpawn) {
		t.Error("non-zero exit is an attempt failure, not a spawn failure")
	}
	if errors.Is(err, ErrExecutionTimeout) {
		t.Error("non-zero exit must not map to timeout")
	}
}

func TestProcessExecutor_SpawnError(t *testing.T) {
	executor := NewProcessExecutor(ProcessConfig{
		Command: "/nonexistent/render-binary",
	})

	task := &domain.QueueTask{ID: uuid.New(), Kind: domain.TaskKindVideoRender}

	_, err := executor.Execute(context.Background(), task)
	if !errors.Is(err, ErrSpawn) {
		t.Fatalf("error = %v, want ErrSpawn", err)
	}
}

func TestProcessExecutor_Timeout(t *testing.T) {
	executor := NewProcessExecutor(ProcessConfig{
		Command: "sh",
		Args:    []string{"-c", "sleep 10"},
		Timeout: 100 * time.Millisecond,
	})

	task := &domain.QueueTask{ID: uuid.New(), Kind: domain.TaskKindVideoRender}

	start := time.Now()
	_, err := executor.Execute(context.Background(), task)
	if !errors.Is(err, ErrExecutionTimeout) {
		t.Fatalf("error = %v, want ErrExecutionTimeout", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("process was not killed on timeout, took %s", elapsed)
	}
}

// --- Worker ---

func TestWorker_ProcessSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	store := newMemTaskStore()
	registry := NewRegistry()
	registry.Register(domain.TaskKindHTTPCall, &HTTPExecutor{})
	pub := &fakeCompletionPublisher{}
	w, svc := newTestWorker(store, registry, pub)

	enqueueTask(t, svc, domain.TaskKindHTTPCall, map[string]any{"url": server.URL}, 0)

	w.drain(context.Background())

	completion := pub.last(t)
	if completion.Status != "completed" {
		t.Errorf("status = %s, want completed", completion.Status)
	}

	task, err := store.GetByID(context.Background(), completion.TaskID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if task.Status != domain.TaskStatusCompleted {
		t.Errorf("task status = %s, want completed", task.Status)
	}
	if task.Output["status_code"] != http.StatusOK {
		t.Errorf("output[status_code] = %v, want 200", task.Output["status_code"])
	}
}

func TestWorker_SpawnErrorTerminal(t *testing.T) {
	store := newMemTaskStore()
	registry := NewRegistry()
	registry.Register(domain.TaskKindVideoRender, NewProcessExecutor(ProcessConfig{
		Command: "/nonexistent/render-binary",
	}))
	pub := &fakeCompletionPublisher{}
	w, svc := newTestWorker(store, registry, pub)

	queued := enqueueTask(t, svc, domain.TaskKindVideoRender, nil, 5)

	w.drain(context.Background())

	task, err := store.GetByID(context.Background(), queued.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}

	// Spawn-ошибка терминальна и не расходует retry-бюджет
	if task.Status != domain.TaskStatusFailed {
		t.Errorf("status = %s, want failed", task.Status)
	}
	if task.RetryCount != 0 {
		t.Errorf("retry count = %d, want 0", task.RetryCount)
	}

	completion := pub.last(t)
	if completion.Status != "failed" {
		t.Errorf("published status = %s, want failed", completion.Status)
	}
}

func TestWorker_FailureGoesBackToWaiting(t *testing.T) {
	store := newMemTaskStore()
	registry := NewRegistry()
	registry.Register(domain.TaskKindVideoRender, &fakeExecutor{err: errors.New("render crashed")})
	pub := &fakeCompletionPublisher{}

	svc := queue.NewService(store, nil, nil)
	w := New(Config{Queue: svc, Publisher: pub, Registry: registry})

	queued := enqueueTask(t, svc, domain.TaskKindVideoRender, nil, 2)

	task, err := svc.Claim(context.Background(), domain.TaskKindVideoRender)
	if err != nil {
		t.Fatalf("Claim() error = %v", err)
	}
	w.process(context.Background(), task)

	got, err := store.GetByID(context.Background(), queued.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Status != domain.TaskStatusWaiting {
		t.Errorf("status = %s, want waiting", got.Status)
	}
	if got.RetryCount != 1 {
		t.Errorf("retry count = %d, want 1", got.RetryCount)
	}

	// Пока задача будет повторена, терминальное событие не публикуется
	if len(pub.payloads) != 0 {
		t.Errorf("published = %d, want 0", len(pub.payloads))
	}
}

func TestWorker_ReleaseOnShutdown(t *testing.T) {
	store := newMemTaskStore()
	registry := NewRegistry()
	blocking := &blockingExecutor{started: make(chan struct{})}
	registry.Register(domain.TaskKindVideoRender, blocking)
	pub := &fakeCompletionPublisher{}

	svc := queue.NewService(store, nil, nil)
	w := New(Config{Queue: svc, Publisher: pub, Registry: registry})

	queued := enqueueTask(t, svc, domain.TaskKindVideoRender, nil, 2)

	ctx, cancel := context.WithCancel(context.Background())
	task, err := svc.Claim(ctx, domain.TaskKindVideoRender)
	if err != nil {
		t.Fatalf("Claim() error = %v", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		w.process(ctx, task)
	}()

	<-blocking.started
	cancel()
	<-done

	got, err := store.GetByID(context.Background(), queued.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Status != domain.TaskStatusWaiting {
		t.Errorf("status = %s, want waiting", got.Status)
	}
	if got.RetryCount != 0 {
		t.Errorf("retry count = %d, want 0 (release must not consume budget)", got.RetryCount)
	}
	if len(pub.payloads) != 0 {
		t.Errorf("published = %d, want 0", len(pub.payloads))
	}
}

// cancelMidExecution захватывает задачу, доставляет task.cancel во
// время выполнения и возвращает итоговую строку задачи.
func cancelMidExecution(t *testing.T, store *memTaskStore, w *Worker, svc *queue.Service, blocking *blockingExecutor, taskID uuid.UUID) *domain.QueueTask {
	t.Helper()

	task, err := svc.Claim(context.Background(), domain.TaskKindVideoRender)
	if err != nil {
		t.Fatalf("Claim() error = %v", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		w.process(context.Background(), task)
	}()

	<-blocking.started

	delivery := &mq.Delivery{Message: mq.Message{
		Type:    mq.MessageTypeTaskCancel,
		Payload: mq.TaskCancelPayload{TaskID: taskID},
	}}
	if err := w.handleTaskCancel(context.Background(), delivery); err != nil {
		t.Fatalf("handleTaskCancel() error = %v", err)
	}
	<-done

	got, err := store.GetByID(context.Background(), taskID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	return got
}

func TestWorker_CancelRequeuesWhileBudgetLeft(t *testing.T) {
	store := newMemTaskStore()
	registry := NewRegistry()
	blocking := &blockingExecutor{started: make(chan struct{})}
	registry.Register(domain.TaskKindVideoRender, blocking)
	pub := &fakeCompletionPublisher{}

	svc := queue.NewService(store, nil, nil)
	w := New(Config{Queue: svc, Publisher: pub, Registry: registry})

	queued := enqueueTask(t, svc, domain.TaskKindVideoRender, nil, 2)
	got := cancelMidExecution(t, store, w, svc, blocking, queued.ID)

	// Бюджет не исчерпан: отмена — неудачная попытка, задача
	// возвращается в waiting и событие не публикуется
	if got.Status != domain.TaskStatusWaiting {
		t.Errorf("status = %s, want waiting", got.Status)
	}
	if got.RetryCount != 1 {
		t.Errorf("retry_count = %d, want 1", got.RetryCount)
	}
	pub.mu.Lock()
	published := len(pub.payloads)
	pub.mu.Unlock()
	if published != 0 {
		t.Errorf("published %d completions, want 0", published)
	}
}

func TestWorker_CancelTerminalWhenBudgetExhausted(t *testing.T) {
	store := newMemTaskStore()
	registry := NewRegistry()
	blocking := &blockingExecutor{started: make(chan struct{})}
	registry.Register(domain.TaskKindVideoRender, blocking)
	pub := &fakeCompletionPublisher{}

	svc := queue.NewService(store, nil, nil)
	w := New(Config{Queue: svc, Publisher: pub, Registry: registry})

	queued := enqueueTask(t, svc, domain.TaskKindVideoRender, nil, 0)
	got := cancelMidExecution(t, store, w, svc, blocking, queued.ID)

	if got.Status != domain.TaskStatusFailed {
		t.Errorf("status = %s, want failed", got.Status)
	}
	completion := pub.last(t)
	if completion.Status != "failed" {
		t.Errorf("published status = %s, want failed", completion.Status)
	}
}

func TestWorker_UnknownKindTerminal(t *testing.T) {
	store := newMemTaskStore()
	pub := &fakeCompletionPublisher{}
	svc := queue.NewService(store, nil, nil)
	w := New(Config{Queue: svc, Publisher: pub, Registry: NewRegistry()})

	queued := enqueueTask(t, svc, domain.TaskKind("unknown-kind"), nil, 2)

	task, err := svc.Claim(context.Background(), domain.TaskKind("unknown-kind"))
	if err != nil {
		t.Fatalf("Claim() error = %v", err)
	}
	w.process(context.Background(), task)

	got, err := store.GetByID(context.Background(), queued.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Status != domain.TaskStatusFailed {
		t.Errorf("status = %s, want failed", got.Status)
	}
}
