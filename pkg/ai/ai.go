package ai

import "context"

// EmbeddingClient is the contract the similarity engine places on an
// embedding backend. Implementations must be safe for concurrent use; the
// process constructs a single client at startup and shares it read-only.
//
// Any error from GenerateEmbedding is treated by callers as backend
// unavailability: the similarity engine degrades to its keyword fallback
// and never surfaces the error.
type EmbeddingClient interface {
	GenerateEmbedding(ctx context.Context, input []byte) ([]float32, error)
}

// ModelMetrics contains accumulated token usage and timing metrics from
// embedding requests.
type ModelMetrics struct {
	InputTokens    int     `json:"input_tokens"`
	OutputTokens   int     `json:"output_tokens"`
	TotalTokens    int     `json:"total_tokens"`
	DurationMs     int64   `json:"duration_ms"`
	TokenPerSecond float32 `json:"tokens_per_second"`
}

// MetricsReporter is implemented by clients that track usage metrics.
type MetricsReporter interface {
	GetMetrics() ModelMetrics
	ResetMetrics()
}
