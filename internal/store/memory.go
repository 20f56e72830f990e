package store

import (
	"context"
	"sync"

	"relayvault/internal/record"
)

// MemoryRelay is an in-process Transport. It is the reference implementation
// of relay matching semantics and the workhorse of the test suite: append
// only, multi-writer, no ordering guarantees.
type MemoryRelay struct {
	mu      sync.Mutex
	records map[string]record.Record
	subs    []memorySub
}

type memorySub struct {
	ctx    context.Context
	filter record.Filter
	ch     chan record.Record
}

func NewMemoryRelay() *MemoryRelay {
	return &MemoryRelay{records: make(map[string]record.Record)}
}

func (m *MemoryRelay) Publish(_ context.Context, rec *record.Record) error {
	if err := rec.Verify(); err != nil {
		return err
	}
	m.mu.Lock()
	m.records[rec.ID] = *rec
	subs := append([]memorySub(nil), m.subs...)
	m.mu.Unlock()

	for _, s := range subs {
		if s.ctx.Err() != nil || !s.filter.Matches(rec) {
			continue
		}
		select {
		case s.ch <- *rec:
		default:
		}
	}
	return nil
}

func (m *MemoryRelay) Query(_ context.Context, f record.Filter) ([]record.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []record.Record
	for _, r := range m.records {
		r := r
		if f.Matches(&r) {
			out = append(out, r)
		}
		if f.Limit > 0 && len(out) >= f.Limit {
			break
		}
	}
	return out, nil
}

func (m *MemoryRelay) Subscribe(ctx context.Context, f record.Filter) (<-chan record.Record, error) {
	ch := make(chan record.Record, 64)
	m.mu.Lock()
	m.subs = append(m.subs, memorySub{ctx: ctx, filter: f, ch: ch})
	m.mu.Unlock()

	go func() {
		<-ctx.Done()
		m.mu.Lock()
		for i, s := range m.subs {
			if s.ch == ch {
				m.subs = append(m.subs[:i], m.subs[i+1:]...)
				break
			}
		}
		m.mu.Unlock()
		close(ch)
	}()
	return ch, nil
}

// Len reports how many distinct records the relay holds.
func (m *MemoryRelay) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}
