package corpus

import (
	"context"
	"errors"
	"time"

	"github.com/diwan-erp/correspondence/pkg/common"
)

// ErrNotFound is returned when a letter or topic does not exist.
var ErrNotFound = errors.New("not found")

// Filter narrows a ListLetters query. Zero-valued fields are ignored, so
// the predicate set stays the small equality/range/substring surface the
// matchers need and nothing more.
type Filter struct {
	ExcludeID         string
	CorrespondentLike string
	DateFrom          *time.Time
	DateTo            *time.Time
	Limit             int
}

// Reader is the read-only corpus contract consumed by the matchers and the
// classifier. Implementations must treat all methods as side-effect free.
type Reader interface {
	GetLetter(ctx context.Context, ref common.Ref) (*common.Letter, error)
	ListLetters(ctx context.Context, dir common.Direction, filter Filter) ([]common.Letter, error)
	GetLetterTopics(ctx context.Context, ref common.Ref) ([]string, error)

	ListTopics(ctx context.Context, autoOnly bool) ([]common.Topic, error)
	GetTopic(ctx context.Context, name string) (*common.Topic, error)
	// CountTopics bounds the hierarchy cycle walk.
	CountTopics(ctx context.Context) (int, error)
}

// Writer covers the persistence steps the engine's exposed operations need.
// Relation recomputation only ever replaces Auto links; Manual links are
// owned by users and never touched here.
type Writer interface {
	ReplaceAutoRelations(ctx context.Context, ref common.Ref, links []common.RelationLink) error
	AppendTopics(ctx context.Context, ref common.Ref, topics []string) (int, error)
	UpdateTopic(ctx context.Context, topic common.Topic) error
	SaveEmbedding(ctx context.Context, ref common.Ref, embedding []float32) error
}

// Store combines read and write access to the letter corpus.
type Store interface {
	Reader
	Writer
}

// VectorSearcher is an optional fast path a corpus can provide when it
// persists letter embeddings. Results carry cosine similarity in [0,1],
// already filtered by threshold and sorted descending.
type VectorSearcher interface {
	SearchByEmbedding(ctx context.Context, dir common.Direction, excludeID string, embedding []float32, limit int, threshold float64) ([]common.Candidate, error)
}
