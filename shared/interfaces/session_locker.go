package interfaces

import (
	"context"

	"github.com/google/uuid"
)

// SessionLocker serializes work on a single quest.
// Lock blocks until the lock is held or ctx is done. The returned func releases it
// and is safe to call more than once.
//
//go:generate mockery --name SessionLocker --output ./mocks --outpkg mocks --case=underscore
type SessionLocker interface {
	Lock(ctx context.Context, questID uuid.UUID) (unlock func(), err error)
}
