package fileformat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/snip/internal/domain"
)

var now = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestParseFormats(t *testing.T) {
	tests := []struct {
		name string
		file string
		data string
	}{
		{
			name: "json list",
			file: "a.json",
			data: `[{"id":"1","trigger":";hi","content":"Hi!","createdAt":"2024-01-02T03:04:05.000Z"}]`,
		},
		{
			name: "json document",
			file: "a.json",
			data: `{"snippets":[{"id":"1","trigger":";hi","content":"Hi!","createdAt":"2024-01-02T03:04:05.000Z"}]}`,
		},
		{
			name: "yaml list",
			file: "a.yml",
			data: "- id: \"1\"\n  trigger: ;hi\n  content: Hi!\n  createdAt: 2024-01-02T03:04:05.000Z\n",
		},
		{
			name: "yaml document",
			file: "a.yaml",
			data: "snippets:\n  - id: \"1\"\n    trigger: \";hi\"\n    content: \"Hi!\"\n    createdAt: \"2024-01-02T03:04:05.000Z\"\n",
		},
		{
			name: "toml document",
			file: "a.toml",
			data: "[[snippets]]\nid = \"1\"\ntrigger = \";hi\"\ncontent = \"Hi!\"\ncreatedAt = \"2024-01-02T03:04:05.000Z\"\n",
		},
	}

	want := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snippets, repairs, err := ParseFile(tt.file, []byte(tt.data), now)
			require.NoError(t, err)
			assert.Empty(t, repairs)
			require.Len(t, snippets, 1)
			assert.Equal(t, "1", snippets[0].ID)
			assert.Equal(t, ";hi", snippets[0].Trigger)
			assert.Equal(t, "Hi!", snippets[0].Content)
			assert.True(t, snippets[0].CreatedAt.Equal(want), "createdAt = %v", snippets[0].CreatedAt)
			assert.True(t, snippets[0].UpdatedAt.IsZero(), "missing updatedAt stays zero")
		})
	}
}

func TestParseMalformedYieldsNothing(t *testing.T) {
	tests := []struct {
		file string
		data string
	}{
		{file: "bad.json", data: `[{"id":"1","trigger":";a"},`},
		{file: "bad.yaml", data: "- id: [unclosed\n"},
		{file: "bad.toml", data: "[[snippets]\nid = 1"},
		{file: "scalar.yaml", data: "just a string"},
	}

	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			snippets, _, err := ParseFile(tt.file, []byte(tt.data), now)
			assert.Error(t, err)
			assert.Nil(t, snippets)
		})
	}
}

func TestParseEmptyFile(t *testing.T) {
	snippets, _, err := ParseFile("empty.yaml", []byte("  \n"), now)
	require.NoError(t, err)
	assert.Empty(t, snippets)
}

func TestEncodeRoundTrip(t *testing.T) {
	def := "Ada"
	in := []domain.Snippet{{
		ID:        "s1",
		Trigger:   ";greet",
		Content:   "Hello {name}",
		Variables: []domain.Variable{{Name: "name", Placeholder: "Who?", Default: &def}},
		CreatedAt: time.Date(2025, 5, 6, 7, 8, 9, 123_000_000, time.UTC),
		UpdatedAt: time.Date(2025, 5, 7, 7, 8, 9, 456_000_000, time.UTC),
	}}

	for _, f := range []Format{JSON, YAML, TOML} {
		t.Run(string(f), func(t *testing.T) {
			data, err := Encode(f, in)
			require.NoError(t, err)

			out, repairs, err := Parse(f, data, now)
			require.NoError(t, err)
			assert.Empty(t, repairs)
			require.Len(t, out, 1)
			assert.Equal(t, in[0].Trigger, out[0].Trigger)
			assert.Equal(t, in[0].Content, out[0].Content)
			assert.True(t, in[0].CreatedAt.Equal(out[0].CreatedAt))
			assert.True(t, in[0].UpdatedAt.Equal(out[0].UpdatedAt))
			require.Len(t, out[0].Variables, 1)
			v, ok := out[0].Variables[0].DefaultValue()
			assert.True(t, ok)
			assert.Equal(t, "Ada", v)
		})
	}
}

func TestSupported(t *testing.T) {
	assert.True(t, Supported("team.yaml"))
	assert.True(t, Supported("dir/ORG.JSON"))
	assert.False(t, Supported(".snippets.json.swp"))
	assert.False(t, Supported(".hidden.json"))
	assert.False(t, Supported("notes.txt"))
	assert.False(t, Supported("snippets.json~"))
}
