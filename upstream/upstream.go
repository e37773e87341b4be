package upstream

import "context"

// Upstream is the client for the OpenAI-compatible model server the
// gateway fronts.
type Upstream interface {
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
	ChatStream(ctx context.Context, req ChatRequest) (Stream, error)
	Embed(ctx context.Context, text string) (*Embedding, error)
	Models(ctx context.Context) ([]string, error)
	Check(ctx context.Context) bool
}

type Message struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp,omitempty"`
}

type ChatRequest struct {
	Message     string
	Temperature float32
	MaxTokens   int
	Context     []Message
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens,omitempty"`
	TotalTokens      int `json:"total_tokens"`
}

type ChatResponse struct {
	Message   string `json:"message"`
	Model     string `json:"model"`
	Usage     *Usage `json:"usage,omitempty"`
	Timestamp string `json:"timestamp"`
}

type Embedding struct {
	Embedding []float32
	Model     string
	Usage     *Usage
}

// StreamChunk is one fragment of a streaming completion. The terminal
// chunk carries Done=true and no content.
type StreamChunk struct {
	Content string
	Done    bool
}

// Stream is a finite, forward-only sequence of chunks. Recv blocks until
// the server delivers the next fragment or the terminal marker. Close
// releases the underlying connection and must be called on every exit
// path.
type Stream interface {
	Recv() (StreamChunk, error)
	Close() error
}
