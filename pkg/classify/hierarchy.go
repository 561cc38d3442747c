package classify

import (
	"context"
	"errors"
	"fmt"

	"github.com/diwan-erp/correspondence/pkg/corpus"
)

var (
	// ErrOwnParent rejects a topic set as its own parent.
	ErrOwnParent = errors.New("topic cannot be its own parent")
	// ErrHierarchyCycle rejects a parent edge that would close a cycle.
	ErrHierarchyCycle = errors.New("circular hierarchy detected in topic structure")
)

// Hierarchy validates topic parent edges. Topics reference parents by name
// only; the chain is walked by lookup, and the walk is bounded by the topic
// count so corrupted external data cannot loop it forever.
type Hierarchy struct {
	reader corpus.Reader
}

func NewHierarchy(reader corpus.Reader) *Hierarchy {
	return &Hierarchy{reader: reader}
}

// ValidateParent checks whether newParent may become topic's parent. An
// empty newParent always validates (clearing the edge). The walk follows
// parent references from newParent upward: revisiting any node, or reaching
// topic itself, is a cycle.
func (h *Hierarchy) ValidateParent(ctx context.Context, topic, newParent string) error {
	if newParent == "" {
		return nil
	}
	if newParent == topic {
		return ErrOwnParent
	}

	bound, err := h.reader.CountTopics(ctx)
	if err != nil {
		return fmt.Errorf("count topics: %w", err)
	}

	visited := make(map[string]struct{})
	current := newParent
	for steps := 0; current != ""; steps++ {
		if steps > bound {
			return ErrHierarchyCycle
		}
		if current == topic {
			return ErrHierarchyCycle
		}
		if _, seen := visited[current]; seen {
			return ErrHierarchyCycle
		}
		visited[current] = struct{}{}

		parent, err := h.reader.GetTopic(ctx, current)
		if err != nil {
			if errors.Is(err, corpus.ErrNotFound) {
				return nil
			}
			return fmt.Errorf("load topic %q: %w", current, err)
		}
		current = parent.Parent
	}
	return nil
}
