package utils

import (
	"testing"
)

func TestCleanMarkdown(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"markdown fence", "```markdown\n# 見出し\n本文\n```", "# 見出し\n本文"},
		{"bare fence", "```\n本文\n```", "本文"},
		{"no fence", "# 見出し\n本文", "# 見出し\n本文"},
		{"whitespace only trimmed", "  本文  ", "本文"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CleanMarkdown(tc.in); got != tc.want {
				t.Errorf("CleanMarkdown = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestCountCharacters(t *testing.T) {
	cases := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"abc", 3},
		{"a b\nc\t", 3},
		{"売上高 1,234", 8},
		{"　全角空白　", 4},
	}
	for _, tc := range cases {
		if got := CountCharacters(tc.in); got != tc.want {
			t.Errorf("CountCharacters(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestDecodeLenient(t *testing.T) {
	type payload struct {
		Revenue float64 `json:"revenue"`
		Name    string  `json:"name"`
	}

	// Strict JSON passes straight through.
	var p1 payload
	if err := DecodeLenient(`{"revenue": 100.5, "name": "abc"}`, &p1); err != nil {
		t.Errorf("strict decode failed: %v", err)
	}
	if p1.Revenue != 100.5 {
		t.Errorf("revenue = %v", p1.Revenue)
	}

	// Unquoted keys need the repair path.
	var p2 payload
	if err := DecodeLenient(`{revenue: 200, name: "xyz"}`, &p2); err != nil {
		t.Errorf("lenient decode failed: %v", err)
	}
	if p2.Revenue != 200 || p2.Name != "xyz" {
		t.Errorf("payload = %+v", p2)
	}
}

func TestValidateMarkdown(t *testing.T) {
	if !ValidateMarkdown("# 見出し\n\n- 箇条書き\n") {
		t.Error("well-formed markdown should validate")
	}
	if !ValidateMarkdown("") {
		t.Error("empty input still parses as markdown")
	}
}
