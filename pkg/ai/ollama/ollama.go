package ollama

import (
	"net/http"
	"net/url"
	"sync"

	"github.com/ollama/ollama/api"
	"golang.org/x/sync/semaphore"

	"github.com/diwan-erp/correspondence/pkg/ai"
)

// EmbeddingOllamaClient implements ai.EmbeddingClient against a locally or
// remotely hosted Ollama server. A multilingual sentence-embedding model is
// expected; request parallelism is capped with a weighted semaphore.
type EmbeddingOllamaClient struct {
	embeddingModel string
	timeoutSec     int

	reqLock *semaphore.Weighted

	metricsLock sync.Mutex
	metrics     ai.ModelMetrics

	baseURL    *url.URL
	apiKey     string
	httpClient *http.Client

	Client *api.Client
}

// NewEmbeddingOllamaClientParams contains configuration options for creating
// a new EmbeddingOllamaClient.
type NewEmbeddingOllamaClientParams struct {
	EmbeddingModel string

	BaseURL string
	ApiKey  string

	MaxConcurrentRequests int64
	TimeoutSec            int
}

type headerTransport struct {
	headers map[string]string
	rt      http.RoundTripper
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// clone so original request isn't modified
	r := req.Clone(req.Context())
	for k, v := range t.headers {
		// don't overwrite if already set
		if r.Header.Get(k) == "" {
			r.Header.Set(k, v)
		}
	}
	return t.rt.RoundTrip(r)
}

// NewEmbeddingOllamaClient creates a new Ollama-based embedding client.
// It connects to the Ollama server at the given BaseURL (or the default if
// empty) and uses the configured model for all embedding requests.
func NewEmbeddingOllamaClient(
	params NewEmbeddingOllamaClientParams,
) (*EmbeddingOllamaClient, error) {
	var (
		u   *url.URL
		err error
	)

	if params.BaseURL != "" {
		u, err = url.Parse(params.BaseURL)
		if err != nil {
			return nil, err
		}
	}

	httpClient := &http.Client{
		Transport: &headerTransport{
			headers: map[string]string{
				"Authorization": "Bearer " + params.ApiKey,
			},
			rt: http.DefaultTransport,
		},
	}

	cli := api.NewClient(u, httpClient)

	maxReq := params.MaxConcurrentRequests
	if maxReq <= 0 {
		maxReq = 1
	}
	timeout := params.TimeoutSec
	if timeout <= 0 {
		timeout = 30
	}

	return &EmbeddingOllamaClient{
		embeddingModel: params.EmbeddingModel,
		timeoutSec:     timeout,

		reqLock: semaphore.NewWeighted(maxReq),

		metricsLock: sync.Mutex{},
		metrics:     ai.ModelMetrics{},

		baseURL:    u,
		apiKey:     params.ApiKey,
		httpClient: httpClient,

		Client: cli,
	}, nil
}
