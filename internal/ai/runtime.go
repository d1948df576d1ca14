package ai

import "context"

// Progress is one load progress report, forwarded verbatim.
type Progress struct {
	Text  string  `json:"text"`
	Value float64 `json:"progress"`
}

// ProgressFunc receives load progress. It may fire any number of times.
type ProgressFunc func(Progress)

// Chat roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is a streamed chat completion request.
type ChatRequest struct {
	Messages    []Message
	Temperature float32
	MaxTokens   int
}

// Stream yields completion deltas. Recv returns io.EOF at the end.
type Stream interface {
	Recv() (string, error)
	Close() error
}

// Engine is a loaded model instance.
type Engine interface {
	SetProgressCallback(fn ProgressFunc)
	Reload(ctx context.Context, modelID string) error
	ChatStream(ctx context.Context, req ChatRequest) (Stream, error)
	Unload(ctx context.Context) error
}

// Cache is the runtime's local weight cache.
type Cache interface {
	Keys(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, key string) error
	Has(ctx context.Context, modelID string) (bool, error)
}

// Runtime creates engines and exposes the weight cache.
type Runtime interface {
	// Probe verifies the required hardware acceleration is present.
	Probe(ctx context.Context) error
	NewEngine() Engine
	Cache() Cache
}
