// Package llm talks to the external chat-completion service.
package llm

import "context"

// Completion is what a provider got back for one prompt. Content is the
// assistant text when the response had the expected shape; Raw is the
// response body as received.
type Completion struct {
	Content string
	Raw     string
}

// Provider sends a single prompt to a model.
type Provider interface {
	Generate(ctx context.Context, prompt string) (*Completion, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context, prompt string) (*Completion, error)

// Generate calls f.
func (f ProviderFunc) Generate(ctx context.Context, prompt string) (*Completion, error) {
	return f(ctx, prompt)
}
