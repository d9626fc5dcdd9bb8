package usecase

import (
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestSplitUnits(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		maxWords int
		want     []string
	}{
		{
			name:     "empty input",
			text:     "   ",
			maxWords: 40,
			want:     nil,
		},
		{
			name:     "single sentence",
			text:     "Hello there.",
			maxWords: 40,
			want:     []string{"Hello there."},
		},
		{
			name:     "splits at sentence boundaries",
			text:     "One. Two! Three?",
			maxWords: 40,
			want:     []string{"One.", "Two!", "Three?"},
		},
		{
			name:     "keeps closing quote with sentence",
			text:     `He said "go." Then he left.`,
			maxWords: 40,
			want:     []string{`He said "go."`, "Then he left."},
		},
		{
			name:     "windows an overlong sentence",
			text:     "a b c d e f g",
			maxWords: 3,
			want:     []string{"a b c", "d e f", "g"},
		},
		{
			name:     "no trailing separator",
			text:     "Trailing text without punctuation",
			maxWords: 40,
			want:     []string{"Trailing text without punctuation"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SplitUnits(tt.text, tt.maxWords)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("SplitUnits() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestSplitUnitsNeverDropsWords(t *testing.T) {
	text := "The quick brown fox jumps over the lazy dog. Again and again! Why? Because it can."
	units := SplitUnits(text, 5)

	joined := strings.Fields(strings.Join(units, " "))
	original := strings.Fields(text)
	if !reflect.DeepEqual(joined, original) {
		t.Errorf("unit words %v differ from input words %v", joined, original)
	}
}

func TestSanitizeSpeechText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "plain text untouched",
			in:   "Hello, how are you today?",
			want: "Hello, how are you today?",
		},
		{
			name: "strips fenced code",
			in:   "Look:\n```go\nfmt.Println(1)\n```\ndone",
			want: "Look: done",
		},
		{
			name: "strips inline code",
			in:   "Run `make test` now",
			want: "Run now",
		},
		{
			name: "keeps link text, drops url",
			in:   "See [the docs](https://example.com/x) please",
			want: "See the docs please",
		},
		{
			name: "drops bare urls",
			in:   "Visit https://example.com today",
			want: "Visit today",
		},
		{
			name: "drops markdown emphasis",
			in:   "This is *really* __important__",
			want: "This is really important",
		},
		{
			name: "collapses whitespace",
			in:   "too   many\n\nspaces",
			want: "too many spaces",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeSpeechText(tt.in); got != tt.want {
				t.Errorf("SanitizeSpeechText(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestEstimateSpokenDuration(t *testing.T) {
	tests := []struct {
		name string
		text string
		wpm  int
		want time.Duration
	}{
		{name: "empty text", text: "", wpm: 150, want: 0},
		{name: "one word at 60wpm", text: "hello", wpm: 60, want: time.Second},
		{name: "ten words at 150wpm", text: strings.Repeat("word ", 10), wpm: 150, want: 4 * time.Second},
		{name: "zero rate falls back", text: strings.Repeat("word ", 150), wpm: 0, want: time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EstimateSpokenDuration(tt.text, tt.wpm); got != tt.want {
				t.Errorf("EstimateSpokenDuration() = %v, want %v", got, tt.want)
			}
		})
	}
}
