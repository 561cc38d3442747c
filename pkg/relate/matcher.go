package relate

import (
	"context"

	"github.com/diwan-erp/correspondence/pkg/common"
)

// Matcher is a single relation signal producer. Implementations are pure
// with respect to the corpus: they only read and return an independent
// candidate list. A matcher that lacks its required input (no topics, no
// date, no correspondent) returns an empty list, not an error; errors are
// reserved for corpus access failures.
type Matcher interface {
	Name() string
	Find(ctx context.Context, letter common.Letter) ([]common.Candidate, error)
}
