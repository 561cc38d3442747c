package openai

import (
	"math"
	"sync"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"golang.org/x/sync/semaphore"

	"github.com/diwan-erp/correspondence/pkg/ai"
)

// EmbeddingOpenAIClient implements ai.EmbeddingClient against any
// OpenAI-compatible embedding endpoint.
type EmbeddingOpenAIClient struct {
	embeddingModel string
	timeoutSec     int

	embeddingLock *semaphore.Weighted

	metricsLock sync.Mutex
	metrics     ai.ModelMetrics

	EmbeddingClient *openai.Client
}

// NewEmbeddingOpenAIClientParams defines the configuration parameters for
// creating a new EmbeddingOpenAIClient.
type NewEmbeddingOpenAIClientParams struct {
	EmbeddingModel string

	EmbeddingURL string
	EmbeddingKey string

	MaxConcurrentRequests int64
	TimeoutSec            int
}

// NewEmbeddingOpenAIClient creates and returns a new embedding client
// configured with the provided parameters.
func NewEmbeddingOpenAIClient(
	params NewEmbeddingOpenAIClientParams,
) *EmbeddingOpenAIClient {
	opts := []option.RequestOption{}
	if params.EmbeddingURL != "" {
		opts = append(opts, option.WithBaseURL(params.EmbeddingURL))
	}
	if params.EmbeddingKey != "" {
		opts = append(opts, option.WithAPIKey(params.EmbeddingKey))
	}
	client := openai.NewClient(opts...)

	maxReq := params.MaxConcurrentRequests
	if maxReq <= 0 {
		maxReq = 1
	}
	timeout := params.TimeoutSec
	if timeout <= 0 {
		timeout = 30
	}

	return &EmbeddingOpenAIClient{
		embeddingModel: params.EmbeddingModel,
		timeoutSec:     timeout,

		embeddingLock: semaphore.NewWeighted(maxReq),

		metricsLock: sync.Mutex{},
		metrics:     ai.ModelMetrics{},

		EmbeddingClient: &client,
	}
}

// ResetMetrics clears all accumulated token and timing metrics to zero.
func (c *EmbeddingOpenAIClient) ResetMetrics() {
	c.metricsLock.Lock()
	c.metrics = ai.ModelMetrics{}
	c.metricsLock.Unlock()
}

// GetMetrics returns the accumulated token usage and timing metrics since the last reset.
func (c *EmbeddingOpenAIClient) GetMetrics() ai.ModelMetrics {
	c.metricsLock.Lock()
	defer c.metricsLock.Unlock()
	return c.metrics
}

func (c *EmbeddingOpenAIClient) modifyMetrics(m ai.ModelMetrics) {
	c.metricsLock.Lock()
	defer c.metricsLock.Unlock()

	c.metrics.InputTokens += m.InputTokens
	c.metrics.OutputTokens += m.OutputTokens
	c.metrics.TotalTokens += m.TotalTokens
	c.metrics.DurationMs += m.DurationMs

	if c.metrics.DurationMs > 0 {
		tokensPerSecond := (float64(c.metrics.TotalTokens) * 1000.0) / float64(c.metrics.DurationMs)
		c.metrics.TokenPerSecond = float32(math.Round(tokensPerSecond*100) / 100)
	}
}
