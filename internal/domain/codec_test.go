package domain

import (
	"testing"
	"time"
)

func TestTimestampRoundTrip(t *testing.T) {
	created := time.Date(2025, 3, 14, 9, 26, 53, 589_793_238, time.FixedZone("CET", 3600))
	updated := created.Add(90 * time.Minute)

	in := []Snippet{{
		ID:        "s1",
		Trigger:   ";hi",
		Content:   "Hi!",
		CreatedAt: created,
		UpdatedAt: updated,
	}}

	data, err := EncodeSnippets(in)
	if err != nil {
		t.Fatalf("EncodeSnippets() error = %v", err)
	}

	out, repairs, err := DecodeSnippets(data, time.Now())
	if err != nil {
		t.Fatalf("DecodeSnippets() error = %v", err)
	}
	if len(repairs) != 0 {
		t.Fatalf("DecodeSnippets() repairs = %v, want none", repairs)
	}
	if len(out) != 1 {
		t.Fatalf("DecodeSnippets() returned %d snippets, want 1", len(out))
	}

	if !out[0].CreatedAt.Equal(created.Truncate(time.Millisecond)) {
		t.Errorf("CreatedAt = %v, want %v", out[0].CreatedAt, created.Truncate(time.Millisecond))
	}
	if !out[0].UpdatedAt.Equal(updated.Truncate(time.Millisecond)) {
		t.Errorf("UpdatedAt = %v, want %v", out[0].UpdatedAt, updated.Truncate(time.Millisecond))
	}
}

func TestDecodeSnippetsRepairsBadTimestamps(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	data := []byte(`[{"id":"a","trigger":";a","content":"x","createdAt":"not a date","updatedAt":"2024-05-01T10:00:00Z"}]`)

	out, repairs, err := DecodeSnippets(data, now)
	if err != nil {
		t.Fatalf("DecodeSnippets() error = %v", err)
	}
	if len(repairs) != 1 || repairs[0].Field != "createdAt" {
		t.Fatalf("repairs = %+v, want one createdAt repair", repairs)
	}
	if !out[0].CreatedAt.Equal(now) {
		t.Errorf("CreatedAt = %v, want fallback %v", out[0].CreatedAt, now)
	}
	want := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	if !out[0].UpdatedAt.Equal(want) {
		t.Errorf("UpdatedAt = %v, want %v", out[0].UpdatedAt, want)
	}
}

func TestDecodeSnippetsKeepsAbsentTimestampsZero(t *testing.T) {
	data := []byte(`[{"id":"a","trigger":";a","content":"x"}]`)

	first, repairs, err := DecodeSnippets(data, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	if err != nil {
		t.Fatalf("DecodeSnippets() error = %v", err)
	}
	if len(repairs) != 0 {
		t.Errorf("repairs = %+v, want none for absent timestamps", repairs)
	}
	if !first[0].CreatedAt.IsZero() || !first[0].UpdatedAt.IsZero() {
		t.Errorf("timestamps = %v / %v, want zero", first[0].CreatedAt, first[0].UpdatedAt)
	}

	second, _, _ := DecodeSnippets(data, time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC))
	a, _ := EncodeSnippets(first)
	b, _ := EncodeSnippets(second)
	if string(a) != string(b) {
		t.Errorf("decoding twice gave %s and %s", a, b)
	}
}

func TestDecodeSnippetsMalformed(t *testing.T) {
	_, _, err := DecodeSnippets([]byte(`[{"id":`), time.Now())
	if err == nil {
		t.Fatal("DecodeSnippets() with malformed JSON should return error")
	}
}

func TestDecodeSnippetsSkipsEmptyTrigger(t *testing.T) {
	data := []byte(`[{"id":"a","trigger":"","content":"x"},{"id":"b","trigger":";b","content":"y"}]`)
	out, _, err := DecodeSnippets(data, time.Now())
	if err != nil {
		t.Fatalf("DecodeSnippets() error = %v", err)
	}
	if len(out) != 1 || out[0].ID != "b" {
		t.Errorf("DecodeSnippets() = %+v, want only b", out)
	}
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    time.Time
		wantErr bool
	}{
		{name: "iso millis", raw: "2024-01-02T03:04:05.678Z", want: time.Date(2024, 1, 2, 3, 4, 5, 678_000_000, time.UTC)},
		{name: "rfc3339", raw: "2024-01-02T03:04:05+02:00", want: time.Date(2024, 1, 2, 1, 4, 5, 0, time.UTC)},
		{name: "epoch millis", raw: "1704164645678", want: time.UnixMilli(1704164645678).UTC()},
		{name: "garbage", raw: "yesterday", wantErr: true},
		{name: "empty", raw: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTimestamp(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseTimestamp(%q) error = nil, want error", tt.raw)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseTimestamp(%q) error = %v", tt.raw, err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("ParseTimestamp(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestSnippetCloneIsDeep(t *testing.T) {
	def := "x"
	orig := Snippet{Trigger: ";a", Variables: []Variable{{Name: "n", Default: &def, Choices: []string{"a"}}}}
	c := orig.Clone()
	*c.Variables[0].Default = "changed"
	c.Variables[0].Choices[0] = "changed"

	if *orig.Variables[0].Default != "x" || orig.Variables[0].Choices[0] != "a" {
		t.Error("Clone() shares variable state with the original")
	}
}
