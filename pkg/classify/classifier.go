package classify

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/diwan-erp/correspondence/pkg/common"
	"github.com/diwan-erp/correspondence/pkg/corpus"
	"github.com/diwan-erp/correspondence/pkg/logger"
)

// Classifier assigns topics to letter text by keyword matching and by
// evaluating each topic's optional condition tree. Rule trees are parsed
// once and cached per (topic, rule revision); a malformed rule disables
// that topic's rule check only — keyword matching and all other topics
// continue.
type Classifier struct {
	store corpus.Store

	mu    sync.Mutex
	rules map[string]cachedRule
}

type cachedRule struct {
	source string
	node   *ConditionNode
	err    error
}

func NewClassifier(store corpus.Store) *Classifier {
	return &Classifier{
		store: store,
		rules: make(map[string]cachedRule),
	}
}

// Classify returns the names of all auto-categorization topics matching
// the given text, in topic listing order, each at most once. Empty text
// yields no suggestions.
func (c *Classifier) Classify(ctx context.Context, text string) ([]string, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	topics, err := c.store.ListTopics(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("list topics: %w", err)
	}

	textLower := strings.ToLower(text)
	var matched []string
	for _, topic := range topics {
		if c.topicMatches(topic, text, textLower) {
			matched = append(matched, topic.Name)
		}
	}
	return matched, nil
}

func (c *Classifier) topicMatches(topic common.Topic, text, textLower string) bool {
	for _, keyword := range topic.KeywordList() {
		if strings.Contains(textLower, keyword) {
			return true
		}
	}

	if topic.RuleJSON == "" {
		return false
	}
	rule, err := c.ruleFor(topic)
	if err != nil {
		logger.Error("[Classify] Skipping malformed rule", "topic", topic.Name, "err", err)
		return false
	}
	return rule.Evaluate(text)
}

// ruleFor returns the parsed rule tree for the topic, parsing at most once
// per rule revision. Parse failures are cached too, so a broken rule is
// logged per classification call but parsed only once.
func (c *Classifier) ruleFor(topic common.Topic) (*ConditionNode, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cached, ok := c.rules[topic.Name]
	if ok && cached.source == topic.RuleJSON {
		return cached.node, cached.err
	}

	node, err := ParseRule(topic.Name, topic.RuleJSON)
	c.rules[topic.Name] = cachedRule{source: topic.RuleJSON, node: node, err: err}
	return node, err
}

// ClassifyLetter builds the letter's comparison text and classifies it.
// Suggestions are returned, not applied.
func (c *Classifier) ClassifyLetter(ctx context.Context, ref common.Ref) ([]string, error) {
	letter, err := c.store.GetLetter(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("load letter %s/%s: %w", ref.Direction, ref.ID, err)
	}
	return c.Classify(ctx, common.BuildText(*letter))
}

// ApplyTopics appends the given topics to a letter's topic set, skipping
// ones already present. Returns how many were actually added.
func (c *Classifier) ApplyTopics(ctx context.Context, ref common.Ref, topics []string) (int, error) {
	added, err := c.store.AppendTopics(ctx, ref, topics)
	if err != nil {
		return 0, fmt.Errorf("apply topics to %s/%s: %w", ref.Direction, ref.ID, err)
	}
	logger.Info("[Classify] Topics applied", "letter", ref.ID, "direction", ref.Direction, "added", added)
	return added, nil
}
