package util

import "testing"

func TestSanitizePostgresText(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "plain utf8",
			input: "Common Topics: water, roads",
			want:  "Common Topics: water, roads",
		},
		{
			name:  "contains null byte",
			input: "Same Sender: Ac\x00me",
			want:  "Same Sender: Acme",
		},
		{
			name:  "contains invalid utf8",
			input: string([]byte{'a', 0xff, 'b'}),
			want:  "ab",
		},
		{
			name:  "empty",
			input: "",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SanitizePostgresText(tt.input)
			if got != tt.want {
				t.Fatalf("unexpected sanitized value: got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNormalizeSpace(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "already normal",
			input: "Public Works Department",
			want:  "Public Works Department",
		},
		{
			name:  "runs and ends",
			input: "  Public   Works\tDepartment \n",
			want:  "Public Works Department",
		},
		{
			name:  "whitespace only",
			input: " \t\n ",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeSpace(tt.input)
			if got != tt.want {
				t.Fatalf("unexpected normalized value: got %q, want %q", got, tt.want)
			}
		})
	}
}
