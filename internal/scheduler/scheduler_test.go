package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Fabrika/internal/domain"
	"github.com/shaiso/Fabrika/internal/repo"
)

// --- Фейки ---

type fakeScheduleStore struct {
	mu       sync.Mutex
	due      []domain.Schedule
	claimed  map[uuid.UUID]bool
	claimErr error
}

func newFakeScheduleStore(due ...domain.Schedule) *fakeScheduleStore {
	return &fakeScheduleStore{due: due, claimed: make(map[uuid.UUID]bool)}
}

func (s *fakeScheduleStore) ListDue(_ context.Context, _ time.Time, _ int) ([]domain.Schedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Schedule, len(s.due))
	copy(out, s.due)
	return out, nil
}

func (s *fakeScheduleStore) ClaimDue(_ context.Context, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.claimErr != nil {
		return false, s.claimErr
	}
	if s.claimed[id] {
		return false, nil
	}
	s.claimed[id] = true
	return true, nil
}

type publishedDue struct {
	scheduleID uuid.UUID
	titleID    uuid.UUID
}

type fakeDuePublisher struct {
	mu        sync.Mutex
	published []publishedDue
	err       error
}

func (p *fakeDuePublisher) PublishScheduleDue(_ context.Context, scheduleID, titleID uuid.UUID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, publishedDue{scheduleID, titleID})
	return nil
}

type fakeLogStore struct {
	mu      sync.Mutex
	entries []domain.LogEntry
}

func (f *fakeLogStore) Append(_ context.Context, entry *domain.LogEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, *entry)
	return nil
}

func dueSchedule() domain.Schedule {
	return domain.Schedule{
		ID:          uuid.New(),
		TitleID:     uuid.New(),
		ScheduledAt: time.Now().Add(-time.Minute),
		Status:      domain.ScheduleStatusPending,
	}
}

// --- Tick ---

func TestTick_ClaimsAndPublishes(t *testing.T) {
	first := dueSchedule()
	second := dueSchedule()
	store := newFakeScheduleStore(first, second)
	pub := &fakeDuePublisher{}

	s := New(Config{ScheduleStore: store, Publisher: pub})

	if err := s.Tick(context.Background()); err != nil {
		t.Fatalf("Tick() error = %v", err)
	}

	if len(pub.published) != 2 {
		t.Fatalf("published = %d, want 2", len(pub.published))
	}
	if pub.published[0].scheduleID != first.ID || pub.published[0].titleID != first.TitleID {
		t.Errorf("first publish = %+v, want schedule %s title %s",
			pub.published[0], first.ID, first.TitleID)
	}
	if !store.claimed[second.ID] {
		t.Error("second schedule was not claimed")
	}
}

func TestTick_ClaimAppendsLogEntry(t *testing.T) {
	sched := dueSchedule()
	store := newFakeScheduleStore(sched)
	logs := &fakeLogStore{}

	s := New(Config{ScheduleStore: store, LogStore: logs})

	if err := s.Tick(context.Background()); err != nil {
		t.Fatalf("Tick() error = %v", err)
	}

	if len(logs.entries) != 1 {
		t.Fatalf("log entries = %d, want 1", len(logs.entries))
	}
	entry := logs.entries[0]
	if entry.ScheduleID == nil || *entry.ScheduleID != sched.ID {
		t.Errorf("entry.ScheduleID = %v, want %s", entry.ScheduleID, sched.ID)
	}
	if entry.Meta["event"] != "schedule_claimed" {
		t.Errorf("entry.Meta[event] = %v, want schedule_claimed", entry.Meta["event"])
	}
}

func TestTick_LostClaimNoLogEntry(t *testing.T) {
	sched := dueSchedule()
	store := newFakeScheduleStore(sched)
	// Другой экземпляр уже захватил schedule
	store.claimed[sched.ID] = true
	logs := &fakeLogStore{}

	s := New(Config{ScheduleStore: store, LogStore: logs})

	if err := s.Tick(context.Background()); err != nil {
		t.Fatalf("Tick() error = %v", err)
	}
	if len(logs.entries) != 0 {
		t.Errorf("log entries = %d, want 0", len(logs.entries))
	}
}

func TestTick_LostClaimSkipsPublish(t *testing.T) {
	sched := dueSchedule()
	store := newFakeScheduleStore(sched)
	// Другой экземпляр уже захватил schedule
	store.claimed[sched.ID] = true
	pub := &fakeDuePublisher{}

	s := New(Config{ScheduleStore: store, Publisher: pub})

	if err := s.Tick(context.Background()); err != nil {
		t.Fatalf("Tick() error = %v", err)
	}
	if len(pub.published) != 0 {
		t.Errorf("published = %d, want 0", len(pub.published))
	}
}

func TestTick_PublishFailureIsNotFatal(t *testing.T) {
	sched := dueSchedule()
	store := newFakeScheduleStore(sched)
	pub := &fakeDuePublisher{err: errors.New("broker down")}

	s := New(Config{ScheduleStore: store, Publisher: pub})

	if err := s.Tick(context.Background()); err != nil {
		t.Fatalf("Tick() error = %v", err)
	}
	if !store.claimed[sched.ID] {
		t.Error("schedule must stay claimed even if publish fails")
	}
}

func TestTick_NilPublisher(t *testing.T) {
	store := newFakeScheduleStore(dueSchedule())
	s := New(Config{ScheduleStore: store})

	if err := s.Tick(context.Background()); err != nil {
		t.Fatalf("Tick() error = %v", err)
	}
	if len(store.claimed) != 1 {
		t.Errorf("claimed = %d, want 1", len(store.claimed))
	}
}

func TestTick_ClaimErrorContinues(t *testing.T) {
	store := newFakeScheduleStore(dueSchedule(), dueSchedule())
	pub := &fakeDuePublisher{}
	s := New(Config{ScheduleStore: store, Publisher: pub})

	store.claimErr = errors.New("connection reset")
	if err := s.Tick(context.Background()); err != nil {
		t.Fatalf("Tick() error = %v", err)
	}
	if len(pub.published) != 0 {
		t.Errorf("published = %d, want 0", len(pub.published))
	}
}

// --- Фейки планировщика ---

type fakeChannels struct {
	channels []domain.ChannelSetting
}

func (f *fakeChannels) ListActive(_ context.Context) ([]domain.ChannelSetting, error) {
	return f.channels, nil
}

type fakePlannerSchedules struct {
	upcoming map[uuid.UUID]bool
	lastRun  map[uuid.UUID]*time.Time
}

func (f *fakePlannerSchedules) HasUpcoming(_ context.Context, channelID uuid.UUID, _ time.Time) (bool, error) {
	return f.upcoming[channelID], nil
}

func (f *fakePlannerSchedules) LastScheduledAt(_ context.Context, channelID uuid.UUID) (*time.Time, error) {
	return f.lastRun[channelID], nil
}

type fakeTitles struct {
	byChannel map[uuid.UUID]*domain.Title
	statuses  map[uuid.UUID]domain.TitleStatus
}

func newFakeTitles() *fakeTitles {
	return &fakeTitles{
		byChannel: make(map[uuid.UUID]*domain.Title),
		statuses:  make(map[uuid.UUID]domain.TitleStatus),
	}
}

func (f *fakeTitles) NextPlannable(_ context.Context, channelID uuid.UUID, _ []string) (*domain.Title, error) {
	title, ok := f.byChannel[channelID]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return title, nil
}

func (f *fakeTitles) UpdateStatus(_ context.Context, id uuid.UUID, status domain.TitleStatus) error {
	f.statuses[id] = status
	return nil
}

type fakeCreator struct {
	created []*domain.Schedule
	err     error
}

func (f *fakeCreator) CreateCharged(_ context.Context, sched *domain.Schedule) error {
	if f.err != nil {
		return f.err
	}
	f.created = append(f.created, sched)
	return nil
}

func intervalChannel() domain.ChannelSetting {
	return domain.ChannelSetting{
		ID:            uuid.New(),
		Name:          "daily-shorts",
		PostingMode:   domain.PostingModeFixedInterval,
		IntervalValue: 24,
		IntervalUnit:  domain.IntervalUnitHours,
		Active:        true,
	}
}

// --- Plan ---

func TestPlan_CreatesSchedule(t *testing.T) {
	ch := intervalChannel()
	lastRun := time.Now().Add(-36 * time.Hour).UTC()

	titles := newFakeTitles()
	title := &domain.Title{ID: uuid.New(), ChannelID: ch.ID, UserID: uuid.New()}
	titles.byChannel[ch.ID] = title

	creator := &fakeCreator{}
	p := NewPlanner(PlannerConfig{
		Channels: &fakeChannels{channels: []domain.ChannelSetting{ch}},
		Schedules: &fakePlannerSchedules{
			upcoming: map[uuid.UUID]bool{},
			lastRun:  map[uuid.UUID]*time.Time{ch.ID: &lastRun},
		},
		Titles:      titles,
		Creator:     creator,
		CostCredits: 10,
	})

	if err := p.Plan(context.Background()); err != nil {
		t.Fatalf("Plan() error = %v", err)
	}

	if len(creator.created) != 1 {
		t.Fatalf("created = %d, want 1", len(creator.created))
	}

	sched := creator.created[0]
	if sched.TitleID != title.ID {
		t.Errorf("TitleID = %s, want %s", sched.TitleID, title.ID)
	}
	if sched.UserID != title.UserID {
		t.Errorf("UserID = %s, want %s", sched.UserID, title.UserID)
	}
	if sched.CostCredits != 10 {
		t.Errorf("CostCredits = %d, want 10", sched.CostCredits)
	}
	if sched.Status != domain.ScheduleStatusPending {
		t.Errorf("Status = %s, want pending", sched.Status)
	}
	// lastRun + 24h
	want := lastRun.Add(24 * time.Hour)
	if !sched.ScheduledAt.Equal(want) {
		t.Errorf("ScheduledAt = %s, want %s", sched.ScheduledAt, want)
	}

	if titles.statuses[title.ID] != domain.TitleStatusScheduled {
		t.Errorf("title status = %s, want scheduled", titles.statuses[title.ID])
	}
}

func TestPlan_SkipsChannelWithUpcoming(t *testing.T) {
	ch := intervalChannel()
	titles := newFakeTitles()
	titles.byChannel[ch.ID] = &domain.Title{ID: uuid.New(), ChannelID: ch.ID}

	creator := &fakeCreator{}
	p := NewPlanner(PlannerConfig{
		Channels: &fakeChannels{channels: []domain.ChannelSetting{ch}},
		Schedules: &fakePlannerSchedules{
			upcoming: map[uuid.UUID]bool{ch.ID: true},
			lastRun:  map[uuid.UUID]*time.Time{},
		},
		Titles:  titles,
		Creator: creator,
	})

	if err := p.Plan(context.Background()); err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	if len(creator.created) != 0 {
		t.Errorf("created = %d, want 0", len(creator.created))
	}
}

func TestPlan_NoPlannableTitle(t *testing.T) {
	ch := intervalChannel()
	creator := &fakeCreator{}
	p := NewPlanner(PlannerConfig{
		Channels: &fakeChannels{channels: []domain.ChannelSetting{ch}},
		Schedules: &fakePlannerSchedules{
			upcoming: map[uuid.UUID]bool{},
			lastRun:  map[uuid.UUID]*time.Time{},
		},
		Titles:  newFakeTitles(),
		Creator: creator,
	})

	if err := p.Plan(context.Background()); err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	if len(creator.created) != 0 {
		t.Errorf("created = %d, want 0", len(creator.created))
	}
}

func TestPlan_InsufficientCreditsSkips(t *testing.T) {
	ch := intervalChannel()
	titles := newFakeTitles()
	title := &domain.Title{ID: uuid.New(), ChannelID: ch.ID, UserID: uuid.New()}
	titles.byChannel[ch.ID] = title

	creator := &fakeCreator{err: repo.ErrInsufficientCredits}
	p := NewPlanner(PlannerConfig{
		Channels: &fakeChannels{channels: []domain.ChannelSetting{ch}},
		Schedules: &fakePlannerSchedules{
			upcoming: map[uuid.UUID]bool{},
			lastRun:  map[uuid.UUID]*time.Time{},
		},
		Titles:      titles,
		Creator:     creator,
		CostCredits: 100,
	})

	if err := p.Plan(context.Background()); err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	if len(creator.created) != 0 {
		t.Errorf("created = %d, want 0", len(creator.created))
	}
	// Title остаётся pending для следующего прохода
	if _, marked := titles.statuses[title.ID]; marked {
		t.Error("title must not be marked scheduled when charge fails")
	}
}
