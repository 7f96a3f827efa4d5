// Copyright 2025 The Danmarkskort Authors
// SPDX-License-Identifier: Apache-2.0

// Package textutil provides text normalization helpers for search matching.
package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fold normalizes a string for matching: combining marks removed, lowercased,
// spaces trimmed. Danish æ and ø have no decomposition and survive folding,
// so "Rødby" matches "rødby" but not "rodby"; å folds to a.
func Fold(s string) string {
	s, _, _ = transform.String(
		transform.Chain(
			norm.NFD,
			runes.Remove(runes.In(unicode.Mn)),
			norm.NFC,
		),
		strings.TrimSpace(strings.ToLower(s)),
	)

	return s
}

// MatchClass grades how well text matches a query, case-insensitively.
// 0 exact, 1 prefix, 2 substring, 3 no match. Lower sorts first.
func MatchClass(text, query string) int {
	return MatchClassFolded(text, Fold(query))
}

// MatchClassFolded is MatchClass with the query already folded, for callers
// grading many texts against one query.
func MatchClassFolded(text, foldedQuery string) int {
	t := Fold(text)
	q := foldedQuery

	switch {
	case t == q:
		return 0
	case strings.HasPrefix(t, q):
		return 1
	case strings.Contains(t, q):
		return 2
	default:
		return 3
	}
}

// Wildcard appends a trailing * to every whitespace-separated word, the query
// form the named-road registry expects for prefix searches.
func Wildcard(query string) string {
	words := strings.Fields(query)
	for i, w := range words {
		words[i] = w + "*"
	}

	return strings.Join(words, " ")
}
