package similarity

import (
	"context"
	"errors"
	"testing"

	"github.com/diwan-erp/correspondence/pkg/common"
	"github.com/diwan-erp/correspondence/pkg/corpus"
)

// stubEmbedder returns a fixed vector per known text and fails on anything
// else, standing in for a live embedding backend.
type stubEmbedder struct {
	vectors map[string][]float32
	err     error
}

func (s *stubEmbedder) GenerateEmbedding(_ context.Context, input []byte) ([]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	if v, ok := s.vectors[string(input)]; ok {
		return v, nil
	}
	return nil, errors.New("unknown text")
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 0}, []float32{1, 0}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"zero vector", []float32{0, 0}, []float32{1, 0}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := cosineSimilarity(tt.a, tt.b)
			if got != tt.want {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestSimilarity_ClampsNegative(t *testing.T) {
	emb := &stubEmbedder{vectors: map[string][]float32{
		"a": {1, 0},
		"b": {-1, 0},
	}}
	engine := NewEngine(emb, corpus.NewMemory())

	got, err := engine.Similarity(context.Background(), "a", "b")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if got != 0 {
		t.Fatalf("expected negative cosine clamped to 0, got %v", got)
	}
}

func TestSimilarity_BackendUnavailable(t *testing.T) {
	engine := NewEngine(nil, corpus.NewMemory())
	_, err := engine.Similarity(context.Background(), "a", "b")
	if !errors.Is(err, ErrBackendUnavailable) {
		t.Fatalf("expected ErrBackendUnavailable, got %v", err)
	}
}

func TestFindSimilar_RanksAndFilters(t *testing.T) {
	mem := corpus.NewMemory()
	mem.PutLetter(common.Letter{ID: "close", Direction: common.Incoming, Subject: "close"})
	mem.PutLetter(common.Letter{ID: "closer", Direction: common.Incoming, Subject: "closer"})
	mem.PutLetter(common.Letter{ID: "far", Direction: common.Incoming, Subject: "far"})

	emb := &stubEmbedder{vectors: map[string][]float32{
		"query":  {1, 0},
		"close":  {0.8, 0.6},
		"closer": {0.99, 0.141},
		"far":    {0.1, 0.995},
	}}
	engine := NewEngine(emb, mem)

	got := engine.FindSimilar(context.Background(), common.Incoming, "", "query", 10, 0.4)
	if len(got) != 2 {
		t.Fatalf("expected 2 candidates above threshold, got %d: %v", len(got), got)
	}
	if got[0].Target.ID != "closer" || got[1].Target.ID != "close" {
		t.Fatalf("expected ranking closer, close — got %s, %s", got[0].Target.ID, got[1].Target.ID)
	}
	if got[0].Score <= got[1].Score {
		t.Fatalf("scores not descending: %v", got)
	}
}

func TestFindSimilar_RespectsLimitAndExclude(t *testing.T) {
	mem := corpus.NewMemory()
	vectors := map[string][]float32{"query": {1, 0}}
	for _, id := range []string{"a", "b", "c"} {
		mem.PutLetter(common.Letter{ID: id, Direction: common.Incoming, Subject: id})
		vectors[id] = []float32{1, 0}
	}

	engine := NewEngine(&stubEmbedder{vectors: vectors}, mem)

	got := engine.FindSimilar(context.Background(), common.Incoming, "a", "query", 1, 0.4)
	if len(got) != 1 {
		t.Fatalf("expected limit of 1, got %d", len(got))
	}
	if got[0].Target.ID == "a" {
		t.Fatalf("excluded letter returned")
	}
}

func TestFindSimilar_EmptyQuery(t *testing.T) {
	engine := NewEngine(&stubEmbedder{}, corpus.NewMemory())
	if got := engine.FindSimilar(context.Background(), common.Incoming, "", "", 10, 0.4); got != nil {
		t.Fatalf("expected nil for empty query, got %v", got)
	}
}

func TestFindSimilar_FallbackOnBackendError(t *testing.T) {
	mem := corpus.NewMemory()
	mem.PutLetter(common.Letter{ID: "hit", Direction: common.Incoming, Subject: "Annual budget meeting"})
	mem.PutLetter(common.Letter{ID: "miss", Direction: common.Incoming, Subject: "Unrelated"})

	engine := NewEngine(&stubEmbedder{err: errors.New("backend down")}, mem)

	got := engine.FindSimilar(context.Background(), common.Incoming, "", "budget figures for review", 10, 0.4)
	if len(got) != 1 {
		t.Fatalf("expected 1 fallback candidate, got %d: %v", len(got), got)
	}
	if got[0].Target.ID != "hit" {
		t.Fatalf("expected hit, got %s", got[0].Target.ID)
	}
	if got[0].Score != 0.5 {
		t.Fatalf("expected flat fallback score 0.5, got %v", got[0].Score)
	}
}

func TestSignificantTokens(t *testing.T) {
	got := significantTokens("The quick Quick brown fox jumps over seventeen lazy dogs today", 5)
	want := []string{"quick", "brown", "jumps", "over", "seventeen"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("token %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}
