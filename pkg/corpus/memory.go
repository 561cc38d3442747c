package corpus

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/diwan-erp/correspondence/pkg/common"
)

// Memory is an in-memory corpus used by tests and by tooling that runs the
// engine against an ad-hoc letter set. Iteration order is insertion order,
// which keeps matcher output deterministic.
type Memory struct {
	mu      sync.RWMutex
	order   []common.Ref
	letters map[common.Ref]*common.Letter
	topics  []common.Topic
}

func NewMemory() *Memory {
	return &Memory{
		letters: make(map[common.Ref]*common.Letter),
	}
}

// PutLetter inserts or replaces a letter.
func (m *Memory) PutLetter(letter common.Letter) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ref := common.Ref{Direction: letter.Direction, ID: letter.ID}
	if _, exists := m.letters[ref]; !exists {
		m.order = append(m.order, ref)
	}
	stored := letter
	m.letters[ref] = &stored
}

// PutTopic inserts or replaces a topic by name.
func (m *Memory) PutTopic(topic common.Topic) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.topics {
		if m.topics[i].Name == topic.Name {
			m.topics[i] = topic
			return
		}
	}
	m.topics = append(m.topics, topic)
}

func (m *Memory) GetLetter(_ context.Context, ref common.Ref) (*common.Letter, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	letter, exists := m.letters[ref]
	if !exists {
		return nil, ErrNotFound
	}
	copied := *letter
	copied.Topics = slices.Clone(letter.Topics)
	copied.Relations = slices.Clone(letter.Relations)
	return &copied, nil
}

func (m *Memory) ListLetters(_ context.Context, dir common.Direction, filter Filter) ([]common.Letter, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var results []common.Letter
	for _, ref := range m.order {
		letter := m.letters[ref]
		if letter.Direction != dir {
			continue
		}
		if filter.ExcludeID != "" && letter.ID == filter.ExcludeID {
			continue
		}
		if filter.CorrespondentLike != "" && !strings.Contains(letter.Correspondent, filter.CorrespondentLike) {
			continue
		}
		if filter.DateFrom != nil {
			if letter.Date == nil || letter.Date.Before(*filter.DateFrom) {
				continue
			}
		}
		if filter.DateTo != nil {
			if letter.Date == nil || letter.Date.After(*filter.DateTo) {
				continue
			}
		}
		results = append(results, *letter)
		if filter.Limit > 0 && len(results) >= filter.Limit {
			break
		}
	}
	return results, nil
}

func (m *Memory) GetLetterTopics(_ context.Context, ref common.Ref) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	letter, exists := m.letters[ref]
	if !exists {
		return nil, ErrNotFound
	}
	return slices.Clone(letter.Topics), nil
}

func (m *Memory) ListTopics(_ context.Context, autoOnly bool) ([]common.Topic, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var results []common.Topic
	for _, topic := range m.topics {
		if autoOnly && !topic.AutoCategorize {
			continue
		}
		results = append(results, topic)
	}
	return results, nil
}

func (m *Memory) GetTopic(_ context.Context, name string) (*common.Topic, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, topic := range m.topics {
		if topic.Name == name {
			copied := topic
			return &copied, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) CountTopics(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.topics), nil
}

func (m *Memory) ReplaceAutoRelations(_ context.Context, ref common.Ref, links []common.RelationLink) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	letter, exists := m.letters[ref]
	if !exists {
		return ErrNotFound
	}
	kept := letter.Relations[:0:0]
	held := make(map[common.Ref]struct{})
	for _, link := range letter.Relations {
		if link.Origin == common.OriginManual {
			kept = append(kept, link)
			held[link.Target] = struct{}{}
		}
	}
	// one link per target pair, Manual wins
	for _, link := range links {
		if _, taken := held[link.Target]; taken {
			continue
		}
		held[link.Target] = struct{}{}
		kept = append(kept, link)
	}
	letter.Relations = kept
	return nil
}

func (m *Memory) AppendTopics(_ context.Context, ref common.Ref, topics []string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	letter, exists := m.letters[ref]
	if !exists {
		return 0, ErrNotFound
	}
	added := 0
	for _, topic := range topics {
		if slices.Contains(letter.Topics, topic) {
			continue
		}
		letter.Topics = append(letter.Topics, topic)
		added++
	}
	return added, nil
}

func (m *Memory) UpdateTopic(_ context.Context, topic common.Topic) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.topics {
		if m.topics[i].Name == topic.Name {
			m.topics[i] = topic
			return nil
		}
	}
	return ErrNotFound
}

func (m *Memory) SaveEmbedding(_ context.Context, ref common.Ref, _ []float32) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, exists := m.letters[ref]; !exists {
		return ErrNotFound
	}
	return nil
}
