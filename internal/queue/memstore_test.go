package queue

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Fabrika/internal/domain"
	"github.com/shaiso/Fabrika/internal/repo"
)

// memStore — in-memory Store для тестов с той же семантикой claim,
// что у conditional UPDATE в PostgreSQL: под одним мьютексом выбор
// старейшей waiting-задачи и перевод её в running.
type memStore struct {
	mu    sync.Mutex
	tasks map[uuid.UUID]*domain.QueueTask
}

func newMemStore() *memStore {
	return &memStore{tasks: make(map[uuid.UUID]*domain.QueueTask)}
}

func (s *memStore) Insert(_ context.Context, task *domain.QueueTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *task
	s.tasks[task.ID] = &cp
	return nil
}

func (s *memStore) ClaimOldest(_ context.Context, kind domain.TaskKind) (*domain.QueueTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var waiting []*domain.QueueTask
	for _, t := range s.tasks {
		if t.Kind == kind && t.Status == domain.TaskStatusWaiting {
			waiting = append(waiting, t)
		}
	}
	if len(waiting) == 0 {
		return nil, repo.ErrNotFound
	}

	sort.Slice(waiting, func(i, j int) bool {
		return waiting[i].CreatedAt.Before(waiting[j].CreatedAt)
	})

	t := waiting[0]
	now := time.Now()
	t.Status = domain.TaskStatusRunning
	t.StartedAt = &now

	cp := *t
	return &cp, nil
}

func (s *memStore) GetByID(_ context.Context, id uuid.UUID) (*domain.QueueTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (s *memStore) CancelWaiting(_ context.Context, id uuid.UUID, errMsg string) (*domain.QueueTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok || t.Status != domain.TaskStatusWaiting {
		return nil, repo.ErrNotFound
	}

	now := time.Now()
	t.Status = domain.TaskStatusFailed
	t.Error = errMsg
	t.FinishedAt = &now

	cp := *t
	return &cp, nil
}

func (s *memStore) Update(_ context.Context, task *domain.QueueTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[task.ID]; !ok {
		return repo.ErrNotFound
	}
	cp := *task
	s.tasks[task.ID] = &cp
	return nil
}
