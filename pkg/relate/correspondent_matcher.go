package relate

import (
	"context"
	"fmt"

	"github.com/diwan-erp/correspondence/internal/util"
	"github.com/diwan-erp/correspondence/pkg/common"
	"github.com/diwan-erp/correspondence/pkg/corpus"
)

const (
	// Substring containment is treated as a binary correspondent match,
	// not graded by similarity, so every hit gets the same score.
	correspondentScore = 0.85
	correspondentLimit = 10
)

// CorrespondentMatcher finds letters exchanged with the same correspondent:
// incoming letters whose sender contains the source correspondent as a
// substring, and outgoing letters matched the same way on recipient.
type CorrespondentMatcher struct {
	reader corpus.Reader
}

func NewCorrespondentMatcher(reader corpus.Reader) *CorrespondentMatcher {
	return &CorrespondentMatcher{reader: reader}
}

func (m *CorrespondentMatcher) Name() string { return "correspondent" }

func (m *CorrespondentMatcher) Find(ctx context.Context, letter common.Letter) ([]common.Candidate, error) {
	// ERP-entered names carry stray whitespace often enough to break
	// substring matching.
	correspondent := util.NormalizeSpace(letter.Correspondent)
	if correspondent == "" {
		return nil, nil
	}

	var results []common.Candidate
	for _, dir := range []common.Direction{common.Incoming, common.Outgoing} {
		filter := corpus.Filter{
			CorrespondentLike: correspondent,
			Limit:             correspondentLimit,
		}
		if dir == letter.Direction {
			filter.ExcludeID = letter.ID
		}

		letters, err := m.reader.ListLetters(ctx, dir, filter)
		if err != nil {
			return nil, fmt.Errorf("correspondent matcher scan %s: %w", dir, err)
		}

		label := "Same Sender"
		if dir == common.Outgoing {
			label = "Same Recipient"
		}
		for _, candidate := range letters {
			results = append(results, common.Candidate{
				Target: common.Ref{Direction: dir, ID: candidate.ID},
				Score:  correspondentScore,
				Reason: fmt.Sprintf("%s: %s", label, candidate.Correspondent),
			})
		}
	}
	return results, nil
}
