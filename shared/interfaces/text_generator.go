package interfaces

import "context"

// TextGenerator produces story prose from a system prompt and a user prompt.
// Implementations may be slow or fail; callers bound them with a context deadline.
//
//go:generate mockery --name TextGenerator --output ./mocks --outpkg mocks --case=underscore
type TextGenerator interface {
	GenerateText(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}
