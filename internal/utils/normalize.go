package utils

import (
	"errors"
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var wsRe = regexp.MustCompile(`\s+`)
var dateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// ErrInvalidDate is returned when a YYYY-MM-DD date does not parse.
var ErrInvalidDate = errors.New("invalid date")

// FoldLower lowercases s, collapses whitespace and strips diacritics, so
// "Rondo Pívot" and "rondo pivot" share a search key.
func FoldLower(s string) string {
	s = strings.TrimSpace(s)
	s = wsRe.ReplaceAllString(s, " ")
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(out)
}

// SearchKeywords returns the folded words of the given strings, plus every
// full folded string, deduplicated. Words shorter than 2 runes are skipped.
func SearchKeywords(strs ...string) []string {
	kw := make([]string, 0)
	seen := map[string]bool{}
	add := func(s string) {
		if s == "" || seen[s] {
			return
		}
		seen[s] = true
		kw = append(kw, s)
	}
	for _, s := range strs {
		f := FoldLower(s)
		if f == "" {
			continue
		}
		add(f)
		for _, word := range strings.Fields(f) {
			if utf8.RuneCountInString(word) >= 2 {
				add(word)
			}
		}
	}
	return kw
}

// TrimMax trims a string to at most max runes.
func TrimMax(s string, max int) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}

// ParseDate parses a YYYY-MM-DD calendar date.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if !dateRe.MatchString(s) {
		return time.Time{}, ErrInvalidDate
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return t, nil
}

// SplitList splits a comma or semicolon separated cell into trimmed values.
func SplitList(s string) []string {
	f := func(r rune) bool { return r == ',' || r == ';' }
	out := []string{}
	for _, p := range strings.FieldsFunc(s, f) {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Contains reports whether list contains v.
func Contains(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}
