package llmx

import (
	"encoding/json"
	"testing"
)

func TestExtractObject(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  string
		ok    bool
	}{
		{"bare object", `{"a":1}`, `{"a":1}`, true},
		{"leading prose", "Here you go:\n{\"a\":1}\nanything after", `{"a":1}`, true},
		{"nested objects", `{"a":{"b":{"c":2}}}`, `{"a":{"b":{"c":2}}}`, true},
		{"brace inside string", `{"text":"closing } brace"} trailing`, `{"text":"closing } brace"}`, true},
		{"escaped quote in string", `{"text":"she said \"}\" ok"}`, `{"text":"she said \"}\" ok"}`, true},
		{"no object at all", "no JSON here", "", false},
		{"unbalanced", `{"a":1`, "", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ExtractObject(tc.input)
			if ok != tc.ok {
				t.Fatalf("ok = %v, want %v", ok, tc.ok)
			}
			if got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
			if ok {
				var v map[string]any
				if err := json.Unmarshal([]byte(got), &v); err != nil {
					t.Errorf("extracted text is not valid JSON: %v", err)
				}
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("short", 100, "..."); got != "short" {
		t.Errorf("expected passthrough, got %q", got)
	}
	if got := Truncate("abcdef", 3, "[cut]"); got != "abc[cut]" {
		t.Errorf("expected 'abc[cut]', got %q", got)
	}
}
