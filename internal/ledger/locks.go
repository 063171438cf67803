package ledger

import (
	"bytes"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// lockTable hands out one lock per resource id. Locks are acquired with a
// bounded wait so that contention surfaces as a retryable error instead of
// blocking a caller indefinitely.
type lockTable struct {
	mu   sync.Mutex
	sems map[uuid.UUID]chan struct{}
}

func newLockTable() *lockTable {
	return &lockTable{
		sems: make(map[uuid.UUID]chan struct{}),
	}
}

func (t *lockTable) sem(id uuid.UUID) chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.sems[id]
	if !ok {
		s = make(chan struct{}, 1)
		t.sems[id] = s
	}
	return s
}

// acquire takes the lock for id, waiting at most wait.
func (t *lockTable) acquire(id uuid.UUID, wait time.Duration) error {
	s := t.sem(id)

	select {
	case s <- struct{}{}:
		return nil
	default:
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case s <- struct{}{}:
		return nil
	case <-timer.C:
		return ErrContention
	}
}

func (t *lockTable) release(id uuid.UUID) {
	<-t.sem(id)
}

// acquireAll takes the locks for all ids in ascending id order. Every caller
// locking multiple resources goes through here, so two operations touching
// overlapping sets can not deadlock each other.
//
// On success the returned function releases all locks. On failure no lock
// stays held.
func (t *lockTable) acquireAll(ids []uuid.UUID, wait time.Duration) (func(), error) {
	sorted := make([]uuid.UUID, len(ids))
	copy(sorted, ids)
	sort.Slice(sorted, func(i, j int) bool {
		return bytes.Compare(sorted[i][:], sorted[j][:]) < 0
	})

	// Duplicate ids would self-deadlock
	deduped := sorted[:0]
	for i, id := range sorted {
		if i == 0 || id != sorted[i-1] {
			deduped = append(deduped, id)
		}
	}

	held := make([]uuid.UUID, 0, len(deduped))
	for _, id := range deduped {
		if err := t.acquire(id, wait); err != nil {
			for _, h := range held {
				t.release(h)
			}
			return nil, err
		}
		held = append(held, id)
	}

	return func() {
		for _, h := range held {
			t.release(h)
		}
	}, nil
}
