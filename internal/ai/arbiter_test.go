package ai

import (
	"strings"
	"testing"

	"github.com/stewardhq/steward/internal/types"
)

func TestParsePairsResponse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    int
		wantErr string
	}{
		{
			name:  "clean JSON",
			input: `{"results": [{"is_duplicate": true, "confidence": 0.92, "reason": "same project"}]}`,
			want:  1,
		},
		{
			name: "fenced JSON",
			input: "```json\n" +
				`{"results": [{"is_duplicate": false, "confidence": 0.2, "reason": "different"}]}` +
				"\n```",
			want: 1,
		},
		{
			name:    "wrong count",
			input:   `{"results": []}`,
			want:    2,
			wantErr: "expected 2",
		},
		{
			name:    "confidence out of range",
			input:   `{"results": [{"is_duplicate": true, "confidence": 1.4, "reason": "x"}]}`,
			want:    1,
			wantErr: "invalid confidence",
		},
		{
			name:    "not JSON",
			input:   "I think they are duplicates",
			want:    1,
			wantErr: "invalid JSON",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parsePairsResponse(tt.input, tt.want)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("parsePairsResponse() error = %v, want substring %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("parsePairsResponse() unexpected error: %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("got %d verdicts, want %d", len(got), tt.want)
			}
		})
	}
}

func TestBuildPairsPromptListsEveryPair(t *testing.T) {
	pairs := []Pair{
		{
			A: Candidate{ID: "1", Name: "Website redesign", Type: types.TypeProject},
			B: Candidate{ID: "2", Name: "Redesign the website", Type: types.TypeProject},
		},
		{
			A: Candidate{ID: "3", Name: "Learn Spanish", Type: types.TypeLearning},
			B: Candidate{ID: "4", Name: "Learn Portuguese", Type: types.TypeLearning},
		},
	}
	prompt := buildPairsPrompt(pairs)

	for _, needle := range []string{"Website redesign", "Redesign the website", "Learn Spanish", "Learn Portuguese", "[1]", "[2]"} {
		if !strings.Contains(prompt, needle) {
			t.Errorf("prompt missing %q", needle)
		}
	}
	if !strings.Contains(prompt, "ONLY raw JSON") {
		t.Error("prompt missing raw-JSON instruction")
	}
}

func TestStripFences(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"{\"a\":1}", "{\"a\":1}"},
		{"```json\n{\"a\":1}\n```", "{\"a\":1}"},
		{"```\n{\"a\":1}\n```", "{\"a\":1}"},
		{"  {\"a\":1}  ", "{\"a\":1}"},
	}
	for _, tt := range tests {
		if got := stripFences(tt.in); got != tt.want {
			t.Errorf("stripFences(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestIsRetryable(t *testing.T) {
	retryable := []string{
		"anthropic API error: 529 overloaded",
		"rate limit exceeded",
		"context deadline exceeded",
	}
	for _, msg := range retryable {
		if !isRetryable(errString(msg)) {
			t.Errorf("isRetryable(%q) = false, want true", msg)
		}
	}
	if isRetryable(errString("invalid request: model not found")) {
		t.Error("non-transient error reported as retryable")
	}
}

type errString string

func (e errString) Error() string { return string(e) }
