package scoring

import (
	"strings"
	"unicode"
)

// normalizeText lower-cases, drops punctuation and collapses whitespace.
func normalizeText(s string) string {
	out := make([]rune, 0, len(s))
	space := false
	for _, r := range s {
		switch {
		case unicode.IsSpace(r):
			space = true
		case unicode.IsPunct(r):
		default:
			if space && len(out) > 0 {
				out = append(out, ' ')
			}
			space = false
			out = append(out, unicode.ToLower(r))
		}
	}
	return string(out)
}

func normalizeOption(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func parseBool(s string) (bool, bool) {
	switch normalizeOption(s) {
	case "true", "t":
		return true, true
	case "false", "f":
		return false, true
	default:
		return false, false
	}
}

// containsPhrase matches a normalized phrase on word boundaries.
func containsPhrase(text, phrase string) bool {
	if phrase == "" {
		return false
	}
	return strings.Contains(" "+text+" ", " "+phrase+" ")
}

// tokenOverlap is the share of distinct reference tokens present in the response.
func tokenOverlap(reference, response string) float64 {
	refTokens := distinctTokens(reference)
	if len(refTokens) == 0 {
		return 0
	}
	respTokens := make(map[string]struct{})
	for _, tok := range strings.Fields(response) {
		respTokens[tok] = struct{}{}
	}

	hits := 0
	for _, tok := range refTokens {
		if _, ok := respTokens[tok]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(refTokens))
}

func distinctTokens(s string) []string {
	fields := strings.Fields(s)
	seen := make(map[string]struct{}, len(fields))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}

// levenshtein computes edit distance with unit costs.
func levenshtein(a, b string) int {
	ar := []rune(a)
	br := []rune(b)
	n, m := len(ar), len(br)
	if n == 0 {
		return m
	}
	if m == 0 {
		return n
	}
	dp := make([]int, m+1)
	for j := 0; j <= m; j++ {
		dp[j] = j
	}
	for i := 1; i <= n; i++ {
		prev := dp[0]
		dp[0] = i
		for j := 1; j <= m; j++ {
			tmp := dp[j]
			cost := 1
			if ar[i-1] == br[j-1] {
				cost = 0
			}
			dp[j] = minInt(dp[j]+1, minInt(dp[j-1]+1, prev+cost))
			prev = tmp
		}
	}
	return dp[m]
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
