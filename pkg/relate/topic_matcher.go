package relate

import (
	"context"
	"fmt"
	"strings"

	"github.com/diwan-erp/correspondence/pkg/common"
	"github.com/diwan-erp/correspondence/pkg/corpus"
)

const (
	topicBaseScore = 0.5
	topicPerMatch  = 0.1
	topicMaxScore  = 0.9
)

// TopicMatcher scores candidates by shared topic tags. The score grows with
// the size of the intersection and is capped below the correspondent score,
// so a single shared topic never outranks a direct correspondent match.
type TopicMatcher struct {
	reader corpus.Reader
}

func NewTopicMatcher(reader corpus.Reader) *TopicMatcher {
	return &TopicMatcher{reader: reader}
}

func (m *TopicMatcher) Name() string { return "topic" }

func (m *TopicMatcher) Find(ctx context.Context, letter common.Letter) ([]common.Candidate, error) {
	if len(letter.Topics) == 0 {
		return nil, nil
	}

	sourceTopics := make(map[string]struct{}, len(letter.Topics))
	for _, topic := range letter.Topics {
		sourceTopics[topic] = struct{}{}
	}

	var results []common.Candidate
	for _, dir := range []common.Direction{common.Incoming, common.Outgoing} {
		filter := corpus.Filter{}
		if dir == letter.Direction {
			filter.ExcludeID = letter.ID
		}

		letters, err := m.reader.ListLetters(ctx, dir, filter)
		if err != nil {
			return nil, fmt.Errorf("topic matcher scan %s: %w", dir, err)
		}

		for _, candidate := range letters {
			topics, err := m.reader.GetLetterTopics(ctx, common.Ref{Direction: dir, ID: candidate.ID})
			if err != nil {
				return nil, fmt.Errorf("topic matcher topics of %s/%s: %w", dir, candidate.ID, err)
			}

			shared := intersect(letter.Topics, topics, sourceTopics)
			if len(shared) == 0 {
				continue
			}

			score := topicBaseScore + float64(len(shared))*topicPerMatch
			if score > topicMaxScore {
				score = topicMaxScore
			}
			results = append(results, common.Candidate{
				Target: common.Ref{Direction: dir, ID: candidate.ID},
				Score:  score,
				Reason: "Common Topics: " + strings.Join(shared, ", "),
			})
		}
	}
	return results, nil
}

// intersect returns the source topics also present on the candidate, in the
// source letter's topic order so reasons stay deterministic.
func intersect(sourceOrder, candidateTopics []string, sourceSet map[string]struct{}) []string {
	candidateSet := make(map[string]struct{}, len(candidateTopics))
	for _, topic := range candidateTopics {
		if _, relevant := sourceSet[topic]; relevant {
			candidateSet[topic] = struct{}{}
		}
	}
	if len(candidateSet) == 0 {
		return nil
	}

	shared := make([]string, 0, len(candidateSet))
	for _, topic := range sourceOrder {
		if _, ok := candidateSet[topic]; ok {
			shared = append(shared, topic)
			delete(candidateSet, topic)
		}
	}
	return shared
}
