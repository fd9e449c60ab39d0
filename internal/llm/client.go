// internal/llm/client.go
package llm

import "context"

// CompletionClient is the seam to the external text-completion service.
// Implementations return the raw response text; callers own parsing.
type CompletionClient interface {
	Complete(ctx context.Context, prompt string, maxTokens int) (string, error)
	ModelName() string
}
