package secretstore

import "unicode"

// fuzzyMatch reports whether every rune of query occurs in name, in order
// and case-insensitively (a subsequence match), plus a score favoring
// consecutive runs and word-boundary starts, and the rune indices in name
// where a query rune matched (for highlighting).
func fuzzyMatch(name, query string) (score int, highlights []int, ok bool) {
	if query == "" {
		return 0, nil, true
	}
	nameRunes := []rune(name)
	queryRunes := []rune(query)

	qi := 0
	lastMatch := -2
	for ni := 0; ni < len(nameRunes) && qi < len(queryRunes); ni++ {
		if unicode.ToLower(nameRunes[ni]) != unicode.ToLower(queryRunes[qi]) {
			continue
		}
		score += 10
		if ni == lastMatch+1 {
			score += 5
		}
		if ni == 0 || isWordBoundary(nameRunes[ni-1]) {
			score += 5
		}
		highlights = append(highlights, ni)
		lastMatch = ni
		qi++
	}
	if qi != len(queryRunes) {
		return 0, nil, false
	}
	return score, highlights, true
}

func isWordBoundary(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}
