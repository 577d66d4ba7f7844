package optimizer

import (
	"strings"
	"testing"
)

func TestSplitSentences(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int
	}{
		{name: "empty", text: "", want: 0},
		{name: "single", text: "One sentence here.", want: 1},
		{name: "multiple terminators", text: "First. Second! Third?", want: 3},
		{name: "no terminator", text: "A heading line", want: 1},
		{name: "multiline", text: "First line one. First line two.\nSecond line.", want: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := splitSentences(tt.text)
			if len(got) != tt.want {
				t.Errorf("splitSentences(%q) = %d sentences, want %d", tt.text, len(got), tt.want)
			}
		})
	}
}

func TestCountSyllables(t *testing.T) {
	tests := []struct {
		word string
		want int
	}{
		{"cat", 1},
		{"water", 2},
		{"beautiful", 3},
		{"code", 1},  // silent e
		{"table", 2}, // -le keeps its syllable
		{"rhythm", 1},
		{"", 0},
	}

	for _, tt := range tests {
		if got := countSyllables(tt.word); got != tt.want {
			t.Errorf("countSyllables(%q) = %d, want %d", tt.word, got, tt.want)
		}
	}
}

func TestFleschReadingEase(t *testing.T) {
	simple := strings.Fields("The cat sat on the mat. The dog ran to the park.")
	dense := strings.Fields("Organizational transformation necessitates comprehensive interdepartmental collaboration initiatives.")

	simpleScore := fleschReadingEase(simple, 2)
	denseScore := fleschReadingEase(dense, 1)

	if simpleScore <= denseScore {
		t.Errorf("Expected simple prose (%f) to outscore dense prose (%f)", simpleScore, denseScore)
	}
	if simpleScore < 0 || simpleScore > 100 {
		t.Errorf("Score %f out of [0, 100]", simpleScore)
	}
	if denseScore < 0 || denseScore > 100 {
		t.Errorf("Score %f out of [0, 100]", denseScore)
	}

	if got := fleschReadingEase(nil, 0); got != 0 {
		t.Errorf("Expected 0 for empty input, got %f", got)
	}
}

func TestComplexWordRatio(t *testing.T) {
	words := strings.Fields("the cat organizational sat comprehensive mat")
	got := complexWordRatio(words)
	want := 2.0 / 6.0
	if got < want-0.001 || got > want+0.001 {
		t.Errorf("complexWordRatio = %f, want %f", got, want)
	}

	if got := complexWordRatio(nil); got != 0 {
		t.Errorf("Expected 0 for empty input, got %f", got)
	}
}
