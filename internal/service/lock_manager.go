package service

import (
	"context"
	"sync"

	"miniquest-server/shared/interfaces"

	"github.com/google/uuid"
)

// LockManager is an in-process keyed lock. Entries are reference counted and removed
// as soon as nobody holds or waits for them, so the map only grows with active quests.
type LockManager struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*lockEntry
}

type lockEntry struct {
	sem  chan struct{} // capacity 1; a token in the channel means the lock is held
	refs int
}

var _ interfaces.SessionLocker = (*LockManager)(nil)

// NewLockManager creates an empty LockManager.
func NewLockManager() *LockManager {
	return &LockManager{locks: make(map[uuid.UUID]*lockEntry)}
}

// Lock waits for the quest's lock or for ctx to be done.
func (lm *LockManager) Lock(ctx context.Context, questID uuid.UUID) (func(), error) {
	entry := lm.acquireRef(questID)

	select {
	case entry.sem <- struct{}{}:
	case <-ctx.Done():
		lm.releaseRef(questID, entry)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-entry.sem
			lm.releaseRef(questID, entry)
		})
	}, nil
}

// Len returns the number of quests that currently have holders or waiters.
func (lm *LockManager) Len() int {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	return len(lm.locks)
}

func (lm *LockManager) acquireRef(questID uuid.UUID) *lockEntry {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	entry, ok := lm.locks[questID]
	if !ok {
		entry = &lockEntry{sem: make(chan struct{}, 1)}
		lm.locks[questID] = entry
	}
	entry.refs++
	return entry
}

func (lm *LockManager) releaseRef(questID uuid.UUID, entry *lockEntry) {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	entry.refs--
	if entry.refs == 0 {
		delete(lm.locks, questID)
	}
}
