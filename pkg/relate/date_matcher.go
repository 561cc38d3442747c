package relate

import (
	"context"
	"fmt"
	"math"

	"github.com/diwan-erp/correspondence/pkg/common"
	"github.com/diwan-erp/correspondence/pkg/corpus"
)

const (
	dateWindowDays = 30
	dateMaxScore   = 0.7
	dateMinScore   = 0.3
)

// DateProximityMatcher scores candidates whose canonical date falls within
// ±30 days of the source letter's date, decaying linearly from 0.7 at zero
// distance to 0.3 at the window edge. The signal is intentionally noisy and
// capped so it never outranks a strong topic or correspondent match.
type DateProximityMatcher struct {
	reader corpus.Reader
}

func NewDateProximityMatcher(reader corpus.Reader) *DateProximityMatcher {
	return &DateProximityMatcher{reader: reader}
}

func (m *DateProximityMatcher) Name() string { return "date" }

func (m *DateProximityMatcher) Find(ctx context.Context, letter common.Letter) ([]common.Candidate, error) {
	if letter.Date == nil {
		return nil, nil
	}

	from := letter.Date.AddDate(0, 0, -dateWindowDays)
	to := letter.Date.AddDate(0, 0, dateWindowDays)

	var results []common.Candidate
	for _, dir := range []common.Direction{common.Incoming, common.Outgoing} {
		filter := corpus.Filter{DateFrom: &from, DateTo: &to}
		if dir == letter.Direction {
			filter.ExcludeID = letter.ID
		}

		letters, err := m.reader.ListLetters(ctx, dir, filter)
		if err != nil {
			return nil, fmt.Errorf("date matcher scan %s: %w", dir, err)
		}

		for _, candidate := range letters {
			if candidate.Date == nil {
				continue
			}
			daysApart := int(math.Abs(letter.Date.Sub(*candidate.Date).Hours()) / 24)
			score := dateMaxScore - float64(daysApart)/dateWindowDays*0.4
			if score < dateMinScore {
				score = dateMinScore
			}
			results = append(results, common.Candidate{
				Target: common.Ref{Direction: dir, ID: candidate.ID},
				Score:  score,
				Reason: fmt.Sprintf("Date Proximity: %d days apart", daysApart),
			})
		}
	}
	return results, nil
}
