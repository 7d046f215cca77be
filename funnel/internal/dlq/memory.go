package dlq

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/techview-systems/leadpixel-stack/common/logging"
	"github.com/techview-systems/leadpixel-stack/funnel/internal/metrics"
)

// Memory keeps the most recent failed events in a fixed-size ring.
type Memory struct {
	mu      sync.Mutex
	entries []FailedEvent
	next    int
	full    bool
	written uint64
	now     func() time.Time
}

// NewMemory returns a ring holding at most capacity events.
func NewMemory(capacity int) *Memory {
	if capacity <= 0 {
		capacity = 1000
	}
	return &Memory{entries: make([]FailedEvent, capacity), now: time.Now}
}

func (m *Memory) Write(ctx context.Context, failed *FailedEvent) error {
	m.mu.Lock()
	stamp(failed, m.now().UTC())
	m.entries[m.next] = *failed
	m.next = (m.next + 1) % len(m.entries)
	if m.next == 0 {
		m.full = true
	}
	m.written++
	m.mu.Unlock()

	metrics.DLQEvents.WithLabelValues(failed.Reason).Inc()
	slog.WarnContext(ctx, "Server event dead-lettered",
		logging.OperatorID(failed.OperatorID),
		eventIDAttr(failed),
		slog.String("reason", failed.Reason),
	)
	return nil
}

func (m *Memory) Stats(ctx context.Context) map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return map[string]any{
		"enabled":        true,
		"backend":        "memory",
		"written_local":  m.written,
		"total_messages": m.lenLocked(),
		"capacity":       len(m.entries),
	}
}

// List returns up to limit events, oldest first.
func (m *Memory) List(ctx context.Context, limit int) ([]FailedEvent, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	n := m.lenLocked()
	start := 0
	if m.full {
		start = m.next
	}
	out := make([]FailedEvent, 0, min(n, limit))
	for i := 0; i < n && len(out) < limit; i++ {
		out = append(out, m.entries[(start+i)%len(m.entries)])
	}
	return out, nil
}

func (m *Memory) Purge(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clear(m.entries)
	m.next, m.full = 0, false
	return nil
}

func (m *Memory) lenLocked() int {
	if m.full {
		return len(m.entries)
	}
	return m.next
}

func eventIDAttr(failed *FailedEvent) slog.Attr {
	if failed.Event == nil {
		return logging.EventID("")
	}
	return logging.EventID(failed.Event.EventID)
}
