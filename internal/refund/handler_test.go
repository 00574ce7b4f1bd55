package refund

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/shaiso/Fabrika/internal/domain"
)

// memLedger повторяет семантику ON CONFLICT DO NOTHING по schedule_id.
type memLedger struct {
	mu       sync.Mutex
	refunds  map[uuid.UUID]*domain.Refund
	balances map[uuid.UUID]int64
}

func newMemLedger() *memLedger {
	return &memLedger{
		refunds:  make(map[uuid.UUID]*domain.Refund),
		balances: make(map[uuid.UUID]int64),
	}
}

func (l *memLedger) ApplyRefund(_ context.Context, refund *domain.Refund) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.refunds[refund.ScheduleID]; exists {
		return false, nil
	}

	l.refunds[refund.ScheduleID] = refund
	if refund.Amount > 0 {
		l.balances[refund.UserID] += refund.Amount
	}
	return true, nil
}

type memAudit struct {
	entries []domain.LogEntry
}

func (a *memAudit) Append(_ context.Context, entry *domain.LogEntry) error {
	a.entries = append(a.entries, *entry)
	return nil
}

func failedSchedule(cost int64) *domain.Schedule {
	return &domain.Schedule{
		ID:          uuid.New(),
		TitleID:     uuid.New(),
		UserID:      uuid.New(),
		CostCredits: cost,
		Status:      domain.ScheduleStatusRunning,
	}
}

func TestRefund_CreditsBalance(t *testing.T) {
	ledger := newMemLedger()
	audit := &memAudit{}
	h := NewHandler(ledger, audit, nil)

	sched := failedSchedule(50)

	if err := h.Refund(context.Background(), sched, "render failed"); err != nil {
		t.Fatalf("Refund() error = %v", err)
	}

	if got := ledger.balances[sched.UserID]; got != 50 {
		t.Errorf("balance = %d, want 50", got)
	}

	ref := ledger.refunds[sched.ID]
	if ref == nil {
		t.Fatal("refund row not written")
	}
	if ref.Reason != "render failed" {
		t.Errorf("reason = %q, want %q", ref.Reason, "render failed")
	}

	if len(audit.entries) != 1 {
		t.Fatalf("audit entries = %d, want 1", len(audit.entries))
	}
	if audit.entries[0].Meta["event"] != "refund_applied" {
		t.Errorf("audit event = %v, want refund_applied", audit.entries[0].Meta["event"])
	}
}

func TestRefund_DoubleRefundCreditsOnce(t *testing.T) {
	ledger := newMemLedger()
	h := NewHandler(ledger, nil, nil)

	sched := failedSchedule(100)

	if err := h.Refund(context.Background(), sched, "upload failed"); err != nil {
		t.Fatalf("first Refund() error = %v", err)
	}
	if err := h.Refund(context.Background(), sched, "upload failed"); err != nil {
		t.Fatalf("second Refund() error = %v", err)
	}

	if got := ledger.balances[sched.UserID]; got != 100 {
		t.Errorf("balance = %d, want 100 (refund must apply once)", got)
	}
	if len(ledger.refunds) != 1 {
		t.Errorf("refund rows = %d, want 1", len(ledger.refunds))
	}
}

func TestRefund_ZeroCostStillWritesBarrier(t *testing.T) {
	ledger := newMemLedger()
	audit := &memAudit{}
	h := NewHandler(ledger, audit, nil)

	sched := failedSchedule(0)

	if err := h.Refund(context.Background(), sched, "script failed"); err != nil {
		t.Fatalf("Refund() error = %v", err)
	}

	if _, exists := ledger.refunds[sched.ID]; !exists {
		t.Error("zero-cost refund must still write the idempotency row")
	}
	if got := ledger.balances[sched.UserID]; got != 0 {
		t.Errorf("balance = %d, want 0", got)
	}
}
