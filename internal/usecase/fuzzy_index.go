package usecase

import (
	"regexp"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/ecolens/backend/internal/domain"
)

// punctuationRegex turns everything that is not a letter, digit or space into a separator
var punctuationRegex = regexp.MustCompile(`[^\p{L}\p{N}\s]+`)

// minFuzzyRunes is the shortest word that may match with edits; shorter words must be exact
const minFuzzyRunes = 4

// FuzzyIndex is a read-only approximate-match index over a fixed list of phrases.
// Similarity is 1 - levenshtein/maxRuneLen over the best-aligned window of words.
type FuzzyIndex struct {
	threshold float64
	entries   []indexEntry
}

type indexEntry struct {
	term  string
	words []string
}

// NewFuzzyIndex builds an index; words in ignore are left out of every entry
func NewFuzzyIndex(terms []string, threshold float64, ignore map[string]bool) *FuzzyIndex {
	idx := &FuzzyIndex{threshold: threshold}
	seen := make(map[string]bool, len(terms))
	for _, term := range terms {
		words := indexWords(term, ignore)
		if len(words) == 0 {
			continue
		}
		key := strings.Join(words, " ")
		if seen[key] {
			continue
		}
		seen[key] = true
		idx.entries = append(idx.entries, indexEntry{term: term, words: words})
	}
	return idx
}

// Len returns the number of indexed entries
func (idx *FuzzyIndex) Len() int {
	return len(idx.entries)
}

// Threshold returns the minimum similarity an entry needs to match
func (idx *FuzzyIndex) Threshold() float64 {
	return idx.threshold
}

// Search returns every entry whose similarity to query reaches the threshold,
// best first. Entries with equal scores keep their corpus order.
func (idx *FuzzyIndex) Search(query string) []domain.FoodMatch {
	words := indexWords(query, nil)
	if len(words) == 0 {
		return nil
	}

	var matches []domain.FoodMatch
	for _, entry := range idx.entries {
		score := idx.bestWindowSimilarity(words, entry.words)
		if score >= idx.threshold {
			matches = append(matches, domain.FoodMatch{Term: entry.term, Score: score})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	return matches
}

// Matches reports whether any entry reaches the threshold. It stops at the first hit.
func (idx *FuzzyIndex) Matches(query string) bool {
	words := indexWords(query, nil)
	if len(words) == 0 {
		return false
	}
	for _, entry := range idx.entries {
		if idx.bestWindowSimilarity(words, entry.words) >= idx.threshold {
			return true
		}
	}
	return false
}

// bestWindowSimilarity slides windows of k = min(len(a), len(b)) words over
// both sides and returns the best similarity between any two windows.
func (idx *FuzzyIndex) bestWindowSimilarity(a, b []string) float64 {
	k := min(len(a), len(b))
	best := 0.0
	for i := 0; i+k <= len(a); i++ {
		left := strings.Join(a[i:i+k], " ")
		for j := 0; j+k <= len(b); j++ {
			right := strings.Join(b[j:j+k], " ")
			score := similarity(left, right, idx.threshold)
			if score == 1 {
				return 1
			}
			if score > best {
				best = score
			}
		}
	}
	return best
}

// similarity returns 1 - levenshtein/maxRuneLen, or 0 when the strings cannot
// reach floor. Short strings only match exactly.
func similarity(a, b string, floor float64) float64 {
	if a == b {
		return 1
	}
	ra, rb := []rune(a), []rune(b)
	if len(ra) < minFuzzyRunes || len(rb) < minFuzzyRunes {
		return 0
	}

	maxLen := max(len(ra), len(rb))
	lenDiff := len(ra) - len(rb)
	if lenDiff < 0 {
		lenDiff = -lenDiff
	}
	// The length difference is a lower bound on the edit distance
	if 1-float64(lenDiff)/float64(maxLen) < floor {
		return 0
	}

	return 1 - float64(levenshteinDistance(a, b))/float64(maxLen)
}

// indexWords folds diacritics, lower-cases, strips punctuation and splits into words
func indexWords(s string, ignore map[string]bool) []string {
	folded := punctuationRegex.ReplaceAllString(strings.ToLower(foldDiacritics(s)), " ")
	var words []string
	for _, w := range strings.Fields(folded) {
		if ignore[w] {
			continue
		}
		words = append(words, w)
	}
	return words
}

// foldDiacritics maps "crème brûlée" to "creme brulee"
func foldDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return folded
}

// isNumeric checks if a string contains only digits
func isNumeric(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return len(s) > 0
}

// levenshteinDistance calculates the edit distance between two strings
func levenshteinDistance(s1, s2 string) int {
	r1 := []rune(s1)
	r2 := []rune(s2)
	m := len(r1)
	n := len(r2)
	if m == 0 {
		return n
	}
	if n == 0 {
		return m
	}

	// Two rows instead of the full matrix
	prev := make([]int, n+1)
	curr := make([]int, n+1)
	for j := 0; j <= n; j++ {
		prev[j] = j
	}

	for i := 1; i <= m; i++ {
		curr[0] = i
		for j := 1; j <= n; j++ {
			cost := 0
			if r1[i-1] != r2[j-1] {
				cost = 1
			}
			curr[j] = min(
				prev[j]+1,      // deletion
				curr[j-1]+1,    // insertion
				prev[j-1]+cost, // substitution
			)
		}
		prev, curr = curr, prev
	}

	return prev[n]
}
