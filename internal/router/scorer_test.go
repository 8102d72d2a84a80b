package router

import (
	"strings"
	"testing"
)

func TestKeywordScorer_Score(t *testing.T) {
	scorer := NewKeywordScorer()

	tests := []struct {
		name   string
		prompt string
		want   float64
	}{
		{
			name:   "plain prompt scores the base",
			prompt: "summarize the release notes",
			want:   5,
		},
		{
			name:   "simple query marker subtracts",
			prompt: "what is the current version",
			want:   3,
		},
		{
			name:   "one complex keyword adds",
			prompt: "refactor the parser",
			want:   6,
		},
		{
			name:   "keyword bonus caps at three",
			prompt: "architect a design to refactor and optimize the migrate path",
			want:   8,
		},
		{
			name:   "length over 200 adds one",
			prompt: strings.Repeat("describe the module ", 11),
			want:   6,
		},
		{
			name:   "length over 500 adds two",
			prompt: strings.Repeat("describe the module ", 26),
			want:   7,
		},
		{
			name:   "long prompt with keywords clamps at ten",
			prompt: strings.Repeat("x", 501) + " architect design refactor",
			want:   10,
		},
		{
			name:   "simple marker offsets a keyword",
			prompt: "show the debug output",
			want:   4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := scorer.Score(tt.prompt)
			if got != tt.want {
				t.Errorf("Score(%q) = %v, want %v", tt.prompt, got, tt.want)
			}
		})
	}
}

func TestKeywordScorer_Deterministic(t *testing.T) {
	scorer := NewKeywordScorer()
	prompt := "debug the concurrent shutdown path"

	first := scorer.Score(prompt)
	for i := 0; i < 10; i++ {
		if got := scorer.Score(prompt); got != first {
			t.Fatalf("Score varied: %v then %v", first, got)
		}
	}
}

func TestClampScore(t *testing.T) {
	if got := clampScore(-3); got != 0 {
		t.Errorf("clampScore(-3) = %v, want 0", got)
	}
	if got := clampScore(12); got != 10 {
		t.Errorf("clampScore(12) = %v, want 10", got)
	}
	if got := clampScore(7.5); got != 7.5 {
		t.Errorf("clampScore(7.5) = %v, want 7.5", got)
	}
}
