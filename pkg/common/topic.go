package common

import "strings"

// Topic is a named category letters can be filed under. Keywords is a
// comma-separated list checked by the classifier; RuleJSON optionally holds
// a boolean condition tree (parsed by pkg/classify). Parent references
// another topic by name only, and the parent chain must stay acyclic.
type Topic struct {
	Name           string `json:"name"`
	Keywords       string `json:"keywords"`
	RuleJSON       string `json:"rule_json"`
	Parent         string `json:"parent"`
	AutoCategorize bool   `json:"auto_categorize"`
}

// KeywordList splits the comma-separated keyword field into trimmed,
// lower-cased entries, dropping empties.
func (t Topic) KeywordList() []string {
	if t.Keywords == "" {
		return nil
	}
	parts := strings.Split(t.Keywords, ",")
	keywords := make([]string, 0, len(parts))
	for _, p := range parts {
		kw := strings.ToLower(strings.TrimSpace(p))
		if kw != "" {
			keywords = append(keywords, kw)
		}
	}
	return keywords
}
