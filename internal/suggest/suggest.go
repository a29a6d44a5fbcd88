// Package suggest finds close matches for mistyped data source and column
// names using Levenshtein distance.
package suggest

import (
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// levenshtein calculates the edit distance between two rune slices
func levenshtein(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		cur[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			cur[j] = min(
				prev[j]+1,      // deletion
				cur[j-1]+1,     // insertion
				prev[j-1]+cost, // substitution
			)
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}

func fold(s string) []rune {
	return []rune(strings.ToLower(norm.NFC.String(strings.TrimSpace(s))))
}

// Names returns up to three of candidates close to unknown, best first.
// Comparison ignores case; "ecoles" matches "Écoles" only by distance.
func Names(unknown string, candidates []string) []string {
	u := fold(unknown)

	type scored struct {
		name  string
		score int
	}
	var matches []scored
	for _, c := range candidates {
		dist := levenshtein(u, fold(c))
		// Only suggest if reasonably close (within 2 edits or a third of the length)
		if dist <= max(2, len(u)/3) {
			matches = append(matches, scored{c, dist})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].score < matches[j].score })

	var result []string
	for i := 0; i < len(matches) && i < 3; i++ {
		result = append(result, matches[i].name)
	}
	return result
}

// Hint formats suggestions as ` (did you mean "a" or "b"?)`, or "" if there
// are none.
func Hint(unknown string, candidates []string) string {
	names := Names(unknown, candidates)
	if len(names) == 0 {
		return ""
	}
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = `"` + n + `"`
	}
	return " (did you mean " + strings.Join(quoted, " or ") + "?)"
}
