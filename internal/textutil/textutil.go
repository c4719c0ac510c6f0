package textutil

import (
	"regexp"
	"strings"
)

var whitespaceRegex = regexp.MustCompile(`\s+`)

// NormalizeName lowercases a name and strips all whitespace so that
// "Mono  PERC" and "mono perc" compare equal.
func NormalizeName(name string) string {
	name = strings.ToLower(name)
	name = whitespaceRegex.ReplaceAllString(name, "")
	return name
}

// MatchName reports if any of the matchers is a substring of name, both sides
// are normalized first.
func MatchName(name string, matchers []string) bool {
	name = NormalizeName(name)
	for _, m := range matchers {
		m = NormalizeName(m)
		if m == "" {
			continue
		}
		if strings.Contains(name, m) {
			return true
		}
	}
	return false
}

// EqualName reports if name equals any of the candidates once normalized.
func EqualName(name string, candidates []string) bool {
	name = NormalizeName(name)
	for _, c := range candidates {
		if NormalizeName(c) == name {
			return true
		}
	}
	return false
}
