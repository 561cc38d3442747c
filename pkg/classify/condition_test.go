package classify

import (
	"errors"
	"testing"
)

func mustParse(t *testing.T, ruleJSON string) *ConditionNode {
	t.Helper()
	node, err := ParseRule("test", ruleJSON)
	if err != nil {
		t.Fatalf("expected rule to parse, got %v", err)
	}
	return node
}

func TestParseRule_EmptyRule(t *testing.T) {
	node, err := ParseRule("test", "   ")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if node != nil {
		t.Fatalf("expected nil node for empty rule")
	}
	if node.Evaluate("anything") {
		t.Fatalf("nil rule must never match")
	}
}

func TestEvaluate_AndGroup(t *testing.T) {
	node := mustParse(t, `{
		"operator": "AND",
		"conditions": [
			{"field": "text", "operator": "contains", "value": "water"},
			{"field": "text", "operator": "contains", "value": "bill"}
		]
	}`)

	if !node.Evaluate("Your WATER bill is overdue") {
		t.Fatalf("expected AND group to match")
	}
	if node.Evaluate("Your water supply is fine") {
		t.Fatalf("expected AND group to fail with one condition unmet")
	}
}

func TestEvaluate_OrGroup(t *testing.T) {
	node := mustParse(t, `{
		"operator": "OR",
		"conditions": [
			{"field": "text", "operator": "starts_with", "value": "urgent"},
			{"field": "text", "operator": "ends_with", "value": "asap"}
		]
	}`)

	if !node.Evaluate("URGENT: pipe burst") {
		t.Fatalf("expected starts_with branch to match")
	}
	if !node.Evaluate("please respond asap") {
		t.Fatalf("expected ends_with branch to match")
	}
	if node.Evaluate("nothing special") {
		t.Fatalf("expected OR group to fail with no branch met")
	}
}

func TestEvaluate_NotContains(t *testing.T) {
	node := mustParse(t, `{
		"operator": "AND",
		"conditions": [
			{"field": "text", "operator": "not_contains", "value": "spam"}
		]
	}`)

	if !node.Evaluate("a normal letter") {
		t.Fatalf("expected not_contains to match clean text")
	}
	if node.Evaluate("obvious SPAM content") {
		t.Fatalf("expected not_contains to reject matching text")
	}
}

func TestEvaluate_RegexCaseInsensitive(t *testing.T) {
	node := mustParse(t, `{
		"operator": "OR",
		"conditions": [
			{"field": "text", "operator": "regex", "pattern": "invoice\\s+#\\d+"}
		]
	}`)

	if !node.Evaluate("Attached INVOICE  #42 for services") {
		t.Fatalf("expected regex to match case-insensitively")
	}
	if node.Evaluate("invoice without a number") {
		t.Fatalf("expected regex to reject non-matching text")
	}
}

func TestEvaluate_NestedGroups(t *testing.T) {
	node := mustParse(t, `{
		"operator": "AND",
		"conditions": [
			{"field": "text", "operator": "contains", "value": "permit"},
			{
				"operator": "OR",
				"conditions": [
					{"field": "text", "operator": "contains", "value": "building"},
					{"field": "text", "operator": "contains", "value": "demolition"}
				]
			}
		]
	}`)

	if !node.Evaluate("application for a demolition permit") {
		t.Fatalf("expected nested group to match")
	}
	if node.Evaluate("building inspection report") {
		t.Fatalf("expected outer AND to fail without 'permit'")
	}
}

func TestEvaluate_EmptyConditionsNeverMatch(t *testing.T) {
	node := mustParse(t, `{"operator": "OR", "conditions": []}`)
	if node.Evaluate("anything at all") {
		t.Fatalf("empty condition group must never match")
	}

	node = mustParse(t, `{"operator": "AND", "conditions": []}`)
	if node.Evaluate("anything at all") {
		t.Fatalf("empty AND group must never match")
	}
}

func TestParseRule_RepairsSloppyJSON(t *testing.T) {
	// trailing comma and single quotes, as saved by hand-edited rules
	node := mustParse(t, `{'operator': 'OR', 'conditions': [{'field': 'text', 'operator': 'contains', 'value': 'tax'},]}`)
	if !node.Evaluate("property tax assessment") {
		t.Fatalf("expected repaired rule to match")
	}
}

func TestParseRule_MalformedRule(t *testing.T) {
	cases := []struct {
		name string
		rule string
	}{
		{"not json", "{{{{"},
		{"unknown field", `{"operator":"AND","conditions":[{"field":"subject","operator":"contains","value":"x"}]}`},
		{"unknown operator", `{"operator":"AND","conditions":[{"field":"text","operator":"fuzzy","value":"x"}]}`},
		{"bad group operator", `{"operator":"XOR","conditions":[{"field":"text","operator":"contains","value":"x"}]}`},
		{"bad regex", `{"operator":"AND","conditions":[{"field":"text","operator":"regex","pattern":"["}]}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseRule("broken-topic", tc.rule)
			if err == nil {
				t.Fatalf("expected parse error")
			}
			var malformed *MalformedRuleError
			if !errors.As(err, &malformed) {
				t.Fatalf("expected MalformedRuleError, got %T", err)
			}
			if malformed.Topic != "broken-topic" {
				t.Fatalf("expected topic name in error, got %q", malformed.Topic)
			}
		})
	}
}
