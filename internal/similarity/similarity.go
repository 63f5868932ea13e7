// Package similarity contains the pure string and vector comparison
// functions shared by the duplicate detector, the orphan resolver, and the
// batch dedup job. Everything here is deterministic and side-effect free.
package similarity

import (
	"math"
	"regexp"
	"strings"
)

// costAnnotation matches trailing currency/cost annotations humans append to
// names, e.g. "Deck repair ($450)", "Deck repair - 450 EUR", "Deck repair 450€".
var costAnnotation = regexp.MustCompile(`\s*[-–(]?\s*[$€£]?\s*\d+([.,]\d+)?\s*(usd|eur|gbp|€|\$|£)?\s*[)]?\s*$`)

// NormalizeName lower-cases, trims, and strips cost annotations from a name.
// Two activities are exact duplicates when their normalized names and types
// are equal.
func NormalizeName(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = costAnnotation.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// Similarity returns a score in [0,1] derived from Levenshtein distance:
// 1 - dist(a,b)/max(len(a),len(b)). Comparison is case-insensitive.
// Identical strings score 1.0, as do two empty strings; one empty string
// against a non-empty one scores 0.0. Symmetric by construction.
func Similarity(a, b string) float64 {
	a = strings.ToLower(a)
	b = strings.ToLower(b)
	if a == b {
		return 1.0
	}
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}
	dist := Levenshtein(a, b)
	maxLen := len([]rune(a))
	if l := len([]rune(b)); l > maxLen {
		maxLen = l
	}
	return 1.0 - float64(dist)/float64(maxLen)
}

// Levenshtein computes the edit distance between two strings, by rune.
// Single-row dynamic programming; O(len(a)*len(b)) time, O(len(b)) space.
func Levenshtein(a, b string) int {
	ra := []rune(a)
	rb := []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	row := make([]int, len(rb)+1)
	for j := range row {
		row[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		prev := row[0]
		row[0] = i
		for j := 1; j <= len(rb); j++ {
			cur := row[j]
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			row[j] = min3(row[j]+1, row[j-1]+1, prev+cost)
			prev = cur
		}
	}
	return row[len(rb)]
}

// Cosine returns the cosine similarity of two vectors in [-1,1].
// Mismatched dimensions or a zero vector yield 0.
func Cosine(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
