package pipeline

import (
	"sync"

	"github.com/google/uuid"

	"github.com/shaiso/Fabrika/internal/domain"
)

// ScheduleState — состояние выполнения одного schedule в памяти.
//
// Создаётся при старте обработки и удаляется, когда schedule достигает
// терминального статуса. Источник истины — строки pipeline_stages;
// state лишь кэширует их между событиями.
type ScheduleState struct {
	// Schedule — данные schedule из БД.
	Schedule *domain.Schedule

	// Title — title, к которому относится schedule.
	Title *domain.Title

	// stages — строки стадий (имя → стадия).
	stages map[domain.StageName]*domain.PipelineStage

	// pendingTask — задача очереди, завершения которой ждёт
	// асинхронная стадия (nil — асинхронного ожидания нет).
	pendingTask *uuid.UUID

	mu sync.RWMutex
}

// NewScheduleState создаёт state для schedule.
func NewScheduleState(sched *domain.Schedule, title *domain.Title) *ScheduleState {
	return &ScheduleState{
		Schedule: sched,
		Title:    title,
		stages:   make(map[domain.StageName]*domain.PipelineStage),
	}
}

// ScheduleID возвращает ID schedule.
func (s *ScheduleState) ScheduleID() uuid.UUID {
	return s.Schedule.ID
}

// SetStage кладёт строку стадии в state.
func (s *ScheduleState) SetStage(stage *domain.PipelineStage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stages[stage.Name] = stage
}

// Stage возвращает строку стадии по имени.
func (s *ScheduleState) Stage(name domain.StageName) *domain.PipelineStage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stages[name]
}

// NextStage возвращает первую стадию цепочки, не достигшую completed.
// nil — все стадии завершены.
//
// Инвариант порядка обеспечивается здесь: стадия возвращается только
// когда все предыдущие completed, поэтому started_at стадии никогда
// не раньше completed_at предшественницы.
func (s *ScheduleState) NextStage() *domain.PipelineStage {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, name := range domain.StageOrder {
		stage := s.stages[name]
		if stage == nil || stage.Status != domain.StageStatusCompleted {
			return stage
		}
	}
	return nil
}

// Inputs собирает объединённый Output всех completed-стадий в порядке
// цепочки: поздние стадии перекрывают одноимённые ключи ранних.
func (s *ScheduleState) Inputs() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inputs := make(map[string]any)
	for _, name := range domain.StageOrder {
		stage := s.stages[name]
		if stage == nil || stage.Status != domain.StageStatusCompleted {
			continue
		}
		for k, v := range stage.Output {
			inputs[k] = v
		}
	}
	return inputs
}

// PredecessorsCompleted сообщает, completed ли все стадии цепочки
// перед name. Для первой стадии всегда true.
func (s *ScheduleState) PredecessorsCompleted(name domain.StageName) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, n := range domain.StageOrder {
		if n == name {
			return true
		}
		stage := s.stages[n]
		if stage == nil || stage.Status != domain.StageStatusCompleted {
			return false
		}
	}
	return false
}

// AllCompleted сообщает, завершены ли все стадии цепочки.
func (s *ScheduleState) AllCompleted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, name := range domain.StageOrder {
		stage := s.stages[name]
		if stage == nil || stage.Status != domain.StageStatusCompleted {
			return false
		}
	}
	return true
}

// SetPendingTask запоминает задачу, которую ждёт асинхронная стадия.
func (s *ScheduleState) SetPendingTask(taskID *uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pendingTask = taskID
}

// PendingTask возвращает ожидаемую задачу (nil — ожидания нет).
func (s *ScheduleState) PendingTask() *uuid.UUID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pendingTask
}

// Stats возвращает срез статусов стадий для логирования.
func (s *ScheduleState) Stats() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := make(map[string]string, len(s.stages))
	for name, stage := range s.stages {
		stats[string(name)] = string(stage.Status)
	}
	return stats
}
