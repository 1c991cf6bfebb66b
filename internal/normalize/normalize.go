// Package normalize provides identifier padding and author-name matching shared by the catalog and recommendation code.
package normalize

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// BookIDWidth is the length of a canonical book identifier.
const BookIDWidth = 14

// BookID returns the canonical form of a catalog record id: trimmed and
// left-padded with zeros to BookIDWidth. Ids already at or beyond the width
// are returned trimmed but otherwise unchanged, so BookID is idempotent.
func BookID(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" || len(s) >= BookIDWidth {
		return s
	}
	return strings.Repeat("0", BookIDWidth-len(s)) + s
}

// BookIDs pads every id and drops duplicates, keeping first-seen order.
func BookIDs(raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		v := BookID(r)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

var (
	parenthetical = regexp.MustCompile(`\([^)]*\)`)
	punctuation   = strings.NewReplacer(".", "", ",", "", ";", "", ":", "")
)

// AuthorName normalizes an author string for comparison:
// lowercase, parenthetical groups removed, ".,;:" removed, whitespace collapsed.
//
//	AuthorName("Clarke, Arthur C. (1917-2008)") == "clarke arthur c"
func AuthorName(raw string) string {
	s := strings.ToLower(norm.NFC.String(raw))
	s = parenthetical.ReplaceAllString(s, " ")
	s = punctuation.Replace(s)
	return strings.Join(strings.Fields(s), " ")
}

// AuthorMatches reports whether candidate names the author in query.
// It matches when the normalized candidate contains the normalized query, or
// when every query token longer than two characters is a substring of, or
// contains, some candidate token.
func AuthorMatches(candidate, query string) bool {
	c := AuthorName(candidate)
	q := AuthorName(query)
	if c == "" || q == "" {
		return false
	}
	if strings.Contains(c, q) {
		return true
	}

	candidateTokens := strings.Fields(c)
	significant := 0
	for _, qt := range strings.Fields(q) {
		if len([]rune(qt)) <= 2 {
			continue
		}
		significant++
		if !tokenMatches(qt, candidateTokens) {
			return false
		}
	}
	return significant > 0
}

func tokenMatches(queryToken string, candidateTokens []string) bool {
	for _, ct := range candidateTokens {
		if strings.Contains(ct, queryToken) || strings.Contains(queryToken, ct) {
			return true
		}
	}
	return false
}

// FirstNameToken returns the first word of an author query with trailing
// punctuation removed. The upstream author filter is queried with it.
//
//	FirstNameToken("Clarke, Arthur C.") == "Clarke"
func FirstNameToken(query string) string {
	fields := strings.Fields(parenthetical.ReplaceAllString(query, " "))
	if len(fields) == 0 {
		return ""
	}
	return strings.TrimRight(fields[0], ".,;:")
}

// CatalogValue cleans a free-text catalog field: null bytes removed, trimmed.
// An empty result means the field is missing.
func CatalogValue(s string) string {
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		if r == 0 {
			return -1
		}
		return r
	}, s))
}
