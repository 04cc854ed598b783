package core

import "context"

// LLMClient abstracts the local-model endpoint consumed by the resolver's
// inference path. It is treated as unreliable and optional: a nil client
// degrades the resolver to deterministic and pattern-based operation.
type LLMClient interface {
	Complete(ctx context.Context, prompt string) (string, error)
}
