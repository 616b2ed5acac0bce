package mocks

import (
	"context"

	"miniquest-server/shared/interfaces"

	"github.com/stretchr/testify/mock"
)

// TextGenerator is a mock type for the TextGenerator type
type TextGenerator struct {
	mock.Mock
}

var _ interfaces.TextGenerator = (*TextGenerator)(nil)

// GenerateText provides a mock function with given fields: ctx, systemPrompt, userPrompt
func (m *TextGenerator) GenerateText(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	ret := m.Called(ctx, systemPrompt, userPrompt)

	var r0 string
	if rf, ok := ret.Get(0).(func(context.Context, string, string) string); ok {
		r0 = rf(ctx, systemPrompt, userPrompt)
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).(string)
	}

	var r1 error
	if rf, ok := ret.Get(1).(func(context.Context, string, string) error); ok {
		r1 = rf(ctx, systemPrompt, userPrompt)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}
