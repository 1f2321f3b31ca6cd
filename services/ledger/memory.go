package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryLedger is a process-local write-once ledger for development and tests.
// Faults and latency can be injected to exercise the retry path.
type MemoryLedger struct {
	mu      sync.Mutex
	entries map[Key]Receipt
	seq     int64
	writes  int
	faults  []error
	latency time.Duration
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{entries: make(map[Key]Receipt)}
}

// Submit implements Ledger
func (m *MemoryLedger) Submit(ctx context.Context, key Key, hash string) (string, error) {
	if err := m.wait(ctx); err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.faults) > 0 {
		err := m.faults[0]
		m.faults = m.faults[1:]
		if err != nil {
			return "", err
		}
	}

	if _, exists := m.entries[key]; exists {
		return "", ErrAlreadyAnchored
	}

	m.seq++
	ref := fmt.Sprintf("mem-tx-%d", m.seq)
	m.entries[key] = Receipt{Hash: hash, Reference: ref}
	m.writes++
	return ref, nil
}

// Fetch implements Ledger
func (m *MemoryLedger) Fetch(ctx context.Context, key Key) (*Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.entries[key]
	if !ok {
		return nil, ErrNotFound
	}
	return &r, nil
}

// Writes returns the number of successful ledger writes
func (m *MemoryLedger) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

// FailNext queues errors returned by the next Submit calls, one per call.
// A nil entry lets that call through.
func (m *MemoryLedger) FailNext(errs ...error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.faults = append(m.faults, errs...)
}

// SetLatency delays every Submit, honouring the caller's deadline
func (m *MemoryLedger) SetLatency(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latency = d
}

// Overwrite replaces a committed hash. It simulates an altered anchor and
// exists only so verification can be tested against it.
func (m *MemoryLedger) Overwrite(key Key, hash string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.entries[key]
	r.Hash = hash
	m.entries[key] = r
}

func (m *MemoryLedger) wait(ctx context.Context) error {
	m.mu.Lock()
	d := m.latency
	m.mu.Unlock()
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
