package utils

import (
	"errors"
	"math"
	"strings"
	"unicode"
)

var (
	ErrDimensionMismatch = errors.New("vectors must have the same dimension")
	ErrEmptyVector       = errors.New("vectors cannot be empty")
)

// CosineSimilarity of two embeddings. A zero vector scores 0.
func CosineSimilarity(a, b []float32) (float32, error) {
	if len(a) == 0 || len(b) == 0 {
		return 0, ErrEmptyVector
	}
	if len(a) != len(b) {
		return 0, ErrDimensionMismatch
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0, nil
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB))), nil
}

var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {}, "by": {},
	"do": {}, "does": {}, "for": {}, "from": {}, "how": {}, "i": {}, "in": {}, "is": {},
	"it": {}, "of": {}, "on": {}, "or": {}, "that": {}, "the": {}, "this": {}, "to": {},
	"was": {}, "what": {}, "when": {}, "where": {}, "which": {}, "who": {}, "why": {},
	"with": {}, "you": {}, "your": {}, "can": {}, "my": {}, "we": {}, "our": {},
}

// Terms lowercases text and splits it into words, dropping stopwords.
func Terms(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if _, stop := stopwords[f]; stop {
			continue
		}
		out = append(out, f)
	}
	return out
}

// LexicalOverlap is the share of distinct query terms that appear in text.
// It stands in for embeddings when no embedding model is configured.
func LexicalOverlap(query, text string) float32 {
	queryTerms := Terms(query)
	if len(queryTerms) == 0 {
		return 0
	}
	present := make(map[string]struct{})
	for _, t := range Terms(text) {
		present[t] = struct{}{}
	}

	seen := make(map[string]struct{}, len(queryTerms))
	var hits int
	for _, t := range queryTerms {
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		if _, ok := present[t]; ok {
			hits++
		}
	}
	return float32(hits) / float32(len(seen))
}
