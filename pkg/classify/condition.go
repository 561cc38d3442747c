package classify

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// NodeOperator combines the results of a condition group.
type NodeOperator string

const (
	OpAnd NodeOperator = "AND"
	OpOr  NodeOperator = "OR"
)

// LeafOperator is one of the closed set of text tests a condition can apply.
type LeafOperator string

const (
	OpContains    LeafOperator = "contains"
	OpNotContains LeafOperator = "not_contains"
	OpStartsWith  LeafOperator = "starts_with"
	OpEndsWith    LeafOperator = "ends_with"
	OpRegex       LeafOperator = "regex"
)

// MalformedRuleError is the typed parse failure attached to a topic whose
// rule JSON cannot be decoded. Classification isolates it per topic.
type MalformedRuleError struct {
	Topic string
	Err   error
}

func (e *MalformedRuleError) Error() string {
	return fmt.Sprintf("malformed rule on topic %q: %v", e.Topic, e.Err)
}

func (e *MalformedRuleError) Unwrap() error { return e.Err }

// Condition is a single boolean text test.
type Condition struct {
	Field string
	Op    LeafOperator
	Value string

	pattern *regexp.Regexp
}

// ConditionNode is one node of a rule tree: either a group (Operator over
// Children) or a leaf (Leaf set). Rules observed in practice are one level
// deep, but groups nest arbitrarily.
type ConditionNode struct {
	Operator NodeOperator
	Children []*ConditionNode
	Leaf     *Condition
}

type rawNode struct {
	Field      string            `json:"field"`
	Operator   string            `json:"operator"`
	Value      string            `json:"value"`
	Pattern    string            `json:"pattern"`
	Conditions []json.RawMessage `json:"conditions"`
}

// ParseRule decodes a topic's rule JSON into a condition tree, once, at
// load time. Slightly broken JSON (trailing commas, single quotes) is run
// through a repair pass before giving up. All failures come back as a
// MalformedRuleError naming the topic.
func ParseRule(topic, ruleJSON string) (*ConditionNode, error) {
	trimmed := strings.TrimSpace(ruleJSON)
	if trimmed == "" {
		return nil, nil
	}

	var raw json.RawMessage
	if err := json.Unmarshal([]byte(trimmed), &raw); err != nil {
		repaired, rerr := jsonrepair.JSONRepair(trimmed)
		if rerr != nil {
			return nil, &MalformedRuleError{Topic: topic, Err: err}
		}
		if err := json.Unmarshal([]byte(repaired), &raw); err != nil {
			return nil, &MalformedRuleError{Topic: topic, Err: err}
		}
	}

	node, err := parseNode(raw)
	if err != nil {
		return nil, &MalformedRuleError{Topic: topic, Err: err}
	}
	return node, nil
}

func parseNode(raw json.RawMessage) (*ConditionNode, error) {
	var rn rawNode
	if err := json.Unmarshal(raw, &rn); err != nil {
		return nil, err
	}

	// An object with a conditions list is a group; anything else is a leaf.
	if rn.Conditions != nil {
		op := NodeOperator(strings.ToUpper(rn.Operator))
		if op == "" {
			op = OpAnd
		}
		if op != OpAnd && op != OpOr {
			return nil, fmt.Errorf("unknown group operator %q", rn.Operator)
		}

		node := &ConditionNode{Operator: op}
		for _, child := range rn.Conditions {
			parsed, err := parseNode(child)
			if err != nil {
				return nil, err
			}
			node.Children = append(node.Children, parsed)
		}
		return node, nil
	}

	return parseLeaf(rn)
}

func parseLeaf(rn rawNode) (*ConditionNode, error) {
	if rn.Field != "text" {
		return nil, fmt.Errorf("unknown condition field %q", rn.Field)
	}

	leaf := &Condition{Field: rn.Field, Op: LeafOperator(rn.Operator)}
	switch leaf.Op {
	case OpContains, OpNotContains, OpStartsWith, OpEndsWith:
		leaf.Value = strings.ToLower(rn.Value)
	case OpRegex:
		pattern, err := regexp.Compile("(?i)" + rn.Pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", rn.Pattern, err)
		}
		leaf.pattern = pattern
	default:
		return nil, fmt.Errorf("unknown condition operator %q", rn.Operator)
	}
	return &ConditionNode{Leaf: leaf}, nil
}

// Evaluate applies the condition tree to the given text. Substring tests
// run case-insensitively on the lower-cased text; regex tests run against
// the original text with case-insensitive matching. An empty group never
// matches.
func (n *ConditionNode) Evaluate(text string) bool {
	if n == nil {
		return false
	}
	if n.Leaf != nil {
		return n.Leaf.evaluate(text, strings.ToLower(text))
	}
	if len(n.Children) == 0 {
		return false
	}

	for _, child := range n.Children {
		matched := child.Evaluate(text)
		if n.Operator == OpAnd && !matched {
			return false
		}
		if n.Operator == OpOr && matched {
			return true
		}
	}
	return n.Operator == OpAnd
}

func (c *Condition) evaluate(text, textLower string) bool {
	switch c.Op {
	case OpContains:
		return strings.Contains(textLower, c.Value)
	case OpNotContains:
		return !strings.Contains(textLower, c.Value)
	case OpStartsWith:
		return strings.HasPrefix(textLower, c.Value)
	case OpEndsWith:
		return strings.HasSuffix(textLower, c.Value)
	case OpRegex:
		return c.pattern.MatchString(text)
	}
	return false
}
