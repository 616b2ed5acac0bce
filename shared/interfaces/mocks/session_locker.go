package mocks

import (
	"context"

	"miniquest-server/shared/interfaces"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// SessionLocker is a mock type for the SessionLocker type
type SessionLocker struct {
	mock.Mock
}

var _ interfaces.SessionLocker = (*SessionLocker)(nil)

func (m *SessionLocker) Lock(ctx context.Context, questID uuid.UUID) (func(), error) {
	args := m.Called(ctx, questID)
	var unlock func()
	if args.Get(0) != nil {
		unlock = args.Get(0).(func())
	}
	return unlock, args.Error(1)
}
