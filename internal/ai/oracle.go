// Package ai wraps the external LLM used to arbitrate ambiguous duplicate
// candidates. The rest of the system treats it as a black-box oracle: pairs
// of (name, type) go in, per-pair verdicts with a confidence score come out.
package ai

import (
	"context"
	"fmt"

	"github.com/stewardhq/steward/internal/types"
)

// Candidate is one side of a duplicate comparison
type Candidate struct {
	ID   string             `json:"id"`
	Name string             `json:"name"`
	Type types.ActivityType `json:"type"`
}

// Pair is a single comparison submitted to the oracle
type Pair struct {
	A Candidate `json:"a"`
	B Candidate `json:"b"`
}

// Verdict is the oracle's determination for one pair
type Verdict struct {
	IsDuplicate bool    `json:"is_duplicate"`
	Confidence  float64 `json:"confidence"` // 0.0-1.0
	Reason      string  `json:"reason"`
}

// Validate checks the verdict has a sane confidence score
func (v *Verdict) Validate() error {
	if v.Confidence < 0.0 || v.Confidence > 1.0 {
		return fmt.Errorf("invalid confidence score: %.2f (must be 0.0-1.0)", v.Confidence)
	}
	return nil
}

// Oracle arbitrates duplicate candidates. Implementations must return one
// verdict per input pair, in order, or an error; they never return a
// partial slice.
type Oracle interface {
	CheckDuplicatePairs(ctx context.Context, pairs []Pair) ([]Verdict, error)
}
