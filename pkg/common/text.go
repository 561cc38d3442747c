package common

import "strings"

// BuildText assembles the comparison text for a letter: subject, then the
// direction-specific body field (summary for incoming, body for outgoing),
// then OCR text, joined by single spaces. Absent fields contribute empty
// strings. Returns "" when every part is empty; callers treat that as
// "no signal" and skip the letter.
func BuildText(letter Letter) string {
	body := letter.Body
	if letter.Direction == Incoming {
		body = letter.Summary
	}

	parts := make([]string, 0, 3)
	for _, part := range []string{letter.Subject, body, letter.OCRText} {
		if strings.TrimSpace(part) == "" {
			continue
		}
		parts = append(parts, part)
	}
	return strings.Join(parts, " ")
}
