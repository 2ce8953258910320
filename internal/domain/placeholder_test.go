package domain

import (
	"reflect"
	"testing"
)

func TestExtractVariables(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    []string
	}{
		{name: "simple", content: "Hello {name}", want: []string{"name"}},
		{name: "dedup keeps order", content: "{b} {a} {b}", want: []string{"b", "a"}},
		{name: "builtins skipped", content: "{date} {name} {url} {time}", want: []string{"name"}},
		{name: "json braces ignored", content: `{"a": 1} { spaced }`, want: nil},
		{name: "none", content: "plain", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractVariables(tt.content)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ExtractVariables(%q) = %v, want %v", tt.content, got, tt.want)
			}
		})
	}
}

func TestReplacePlaceholdersKeepsUnresolved(t *testing.T) {
	got := ReplacePlaceholders("Hi {name}, from {team}", func(name string) (string, bool) {
		if name == "name" {
			return "Ada", true
		}
		return "", false
	})
	if got != "Hi Ada, from {team}" {
		t.Errorf("ReplacePlaceholders() = %q", got)
	}
}
