// Package normalize implements the string-utility collaborator the dedup
// engine's match predicate and candidate generator depend on: case-fold,
// diacritic-strip, whitespace/punctuation collapse, a Levenshtein-based
// edit distance, and the derived title/author comparison heuristics.
package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// leadingArticles are stripped from the front of a title before it becomes
// a candidate key, so "The Art of Computer Programming" and "Art of
// Computer Programming" land in the same posting list.
var leadingArticles = []string{"the ", "a ", "an "}

// diacriticStripper decomposes accented runes (e.g. é -> e + combining
// acute) and drops the combining marks, leaving plain ASCII-ish letters.
var diacriticStripper = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize case-folds, strips diacritics, and collapses whitespace and
// punctuation to single spaces. It is the building block every other
// function in this package composes.
func Normalize(s string) string {
	s = sanitizeString(s)
	s = strings.ToLower(strings.TrimSpace(s))

	if stripped, _, err := transform.String(diacriticStripper, s); err == nil {
		s = stripped
	}

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsNumber(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}

	return strings.Join(strings.Fields(b.String()), " ")
}

// TitleKey builds a candidate-generation key from a title: normalizes it
// and drops one leading article, so title variants that differ only by
// "The"/"A"/"An" collide in the title_keys posting list.
func TitleKey(title string) string {
	s := Normalize(title)
	for _, article := range leadingArticles {
		if strings.HasPrefix(s, article) {
			s = s[len(article):]
			break
		}
	}
	return s
}

// AuthorMatch reports whether two normalized author strings plausibly name
// the same person, tolerating a full given name on one side and an
// initial on the other ("Donald Knuth" vs "Knuth, D."). Both inputs are
// normalized internally, which drops the comma of "surname, given", so each
// name is read both with its last and with its first word as the surname;
// any pair of readings with equal surnames and compatible given names
// matches.
func AuthorMatch(a, b string) bool {
	na, nb := Normalize(a), Normalize(b)
	if na == "" || nb == "" {
		return na == nb
	}
	if na == nb {
		return true
	}

	sa, ga := splitAuthor(na)
	sb, gb := splitAuthor(nb)
	fa, fb := strings.Fields(na), strings.Fields(nb)
	readingsA := [][2]string{{sa, ga}, {fa[0], strings.Join(fa[1:], " ")}}
	readingsB := [][2]string{{sb, gb}, {fb[0], strings.Join(fb[1:], " ")}}
	for _, ra := range readingsA {
		for _, rb := range readingsB {
			if ra[0] == rb[0] && (ra[1] == "" || rb[1] == "" || initialsCompatible(ra[1], rb[1])) {
				return true
			}
		}
	}
	return false
}

// splitAuthor separates a normalized author string into a surname and a
// given-name remainder. It accepts both "surname, given" and "given
// surname" orderings, since record factories differ in which they emit.
func splitAuthor(s string) (surname, given string) {
	if idx := strings.Index(s, ","); idx >= 0 {
		surname = strings.TrimSpace(s[:idx])
		given = strings.TrimSpace(strings.Trim(s[idx+1:], "., "))
		return surname, given
	}

	fields := strings.Fields(s)
	if len(fields) == 0 {
		return "", ""
	}
	surname = fields[len(fields)-1]
	given = strings.Join(fields[:len(fields)-1], " ")
	return surname, given
}

// initialsCompatible reports whether every initial-length token in one
// given-name string has a matching first letter in the other, and every
// full-length token in one matches the corresponding full token in the
// other. Either side may be reduced to bare initials.
func initialsCompatible(a, b string) bool {
	fa := strings.Fields(strings.ReplaceAll(a, ".", " "))
	fb := strings.Fields(strings.ReplaceAll(b, ".", " "))
	if len(fa) == 0 || len(fb) == 0 {
		return true
	}

	n := min(len(fa), len(fb))
	for i := 0; i < n; i++ {
		ta, tb := fa[i], fb[i]
		if len(ta) == 1 || len(tb) == 1 {
			if ta[0] != tb[0] {
				return false
			}
			continue
		}
		if ta != tb {
			return false
		}
	}
	return true
}

// IDSortKey derives a sortable form of an identifier string; the dedup
// cascader orders component parts by it. When the normalized id contains
// digits, the key is those digits alone, zero-padded to 20 so lexical and
// numeric order agree (letters are dropped). An id without digits keys on
// its normalized form.
func IDSortKey(id string) string {
	s := Normalize(id)
	if s == "" {
		return s
	}

	var b strings.Builder
	for _, r := range s {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if digits == "" {
		return s
	}

	const width = 20
	if len(digits) < width {
		digits = strings.Repeat("0", width-len(digits)) + digits
	}
	return digits
}

// Levenshtein computes the classical edit distance between a and b.
func Levenshtein(a, b string) int {
	if a == b {
		return 0
	}
	if len(a) == 0 {
		return len([]rune(b))
	}
	if len(b) == 0 {
		return len([]rune(a))
	}

	ra, rb := []rune(a), []rune(b)

	matrix := make([][]int, len(ra)+1)
	for i := range matrix {
		matrix[i] = make([]int, len(rb)+1)
		matrix[i][0] = i
	}
	for j := range matrix[0] {
		matrix[0][j] = j
	}

	for i := 1; i <= len(ra); i++ {
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			matrix[i][j] = min3(
				matrix[i-1][j]+1,
				matrix[i][j-1]+1,
				matrix[i-1][j-1]+cost,
			)
		}
	}

	return matrix[len(ra)][len(rb)]
}

// Truncate255 truncates s to at most 255 runes, the bound the match
// predicate's title and author gates apply before computing edit distance.
func Truncate255(s string) string {
	r := []rune(s)
	if len(r) <= 255 {
		return s
	}
	return string(r[:255])
}

func min3(a, b, c int) int {
	if a <= b && a <= c {
		return a
	}
	if b <= c {
		return b
	}
	return c
}

// sanitizeString removes null bytes from strings, which can slip in from
// upstream MARC/OAI feeds and would otherwise corrupt JSON encoding.
func sanitizeString(s string) string {
	return strings.Map(func(r rune) rune {
		if r == 0 {
			return -1
		}
		return r
	}, s)
}
