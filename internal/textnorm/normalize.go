// Package textnorm normalizes and tokenizes captured file paths.
// Listings exported from rig-site systems mix full-width and half-width
// punctuation, backslash separators and stray whitespace; everything
// downstream (learning, matching, feature extraction) works on the
// normalized form.
package textnorm

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/width"
)

// cjkPunct maps the CJK punctuation that width.Narrow folds to halfwidth
// forms (not ASCII) onto the ASCII characters we actually want.
var cjkPunct = strings.NewReplacer(
	"。", ".",
	"、", ",",
	"「", "[",
	"」", "]",
	"—", "-",
	"～", "~",
)

var spaceRE = regexp.MustCompile(`[ \t]+`)

// Normalize folds full-width characters to half-width, unifies path
// separators to "/" and collapses runs of spaces and tabs.
func Normalize(s string) string {
	if s == "" {
		return s
	}
	s = width.Narrow.String(s)
	s = cjkPunct.Replace(s)
	s = strings.ReplaceAll(s, "\\", "/")
	s = spaceRE.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

var (
	thousandsRE = regexp.MustCompile(`(\d),(\d{3})\b`)
	decimalRE   = regexp.MustCompile(`(\d),(\d+)`)
	rangeSepRE  = regexp.MustCompile(`(?i)(—|~|\bto\b)`)
	depthTailRE = regexp.MustCompile(`(?i)m[)\].,]+$`)
)

// NormalizeForDepth applies Normalize plus the depth-specific cleanups:
// range separators become "-", thousands commas are dropped, decimal
// commas become points, and trailing noise after the unit is stripped.
func NormalizeForDepth(s string) string {
	s = Normalize(s)
	s = rangeSepRE.ReplaceAllString(s, "-")
	s = thousandsRE.ReplaceAllString(s, "$1$2")
	s = decimalRE.ReplaceAllString(s, "$1.$2")
	s = depthTailRE.ReplaceAllString(s, "m")
	return s
}

// Tokenize splits a normalized path into its ordered token sequence:
// directory components and the filename, each further split on
// non-alphanumeric boundaries. Han runs and Latin/digit runs form
// separate tokens; a "." is kept inside a token only between digits, so
// depth values like "3025.5" survive as one token. The trailing file
// extension is dropped — scope filtering has already consumed it.
func Tokenize(path string) []string {
	norm := Normalize(path)
	parts := strings.Split(norm, "/")
	var tokens []string
	for i, part := range parts {
		if i == len(parts)-1 {
			part = stripExtension(part)
		}
		tokens = append(tokens, splitSegment(part)...)
	}
	return tokens
}

// stripExtension removes a trailing ".<alpha>" extension from a filename.
func stripExtension(name string) string {
	if idx := strings.LastIndex(name, "."); idx > 0 {
		ext := name[idx+1:]
		if ext != "" && isAlpha(ext) {
			return name[:idx]
		}
	}
	return name
}

func isAlpha(s string) bool {
	for _, r := range s {
		if !unicode.IsLetter(r) || isHan(r) {
			return false
		}
	}
	return true
}

func isHan(r rune) bool {
	return unicode.Is(unicode.Han, r)
}

func isLatinDigit(r rune) bool {
	return r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z'
}

// splitSegment breaks one path segment into tokens.
func splitSegment(seg string) []string {
	runes := []rune(seg)
	var tokens []string
	var cur []rune
	curHan := false

	flush := func() {
		if len(cur) > 0 {
			tokens = append(tokens, string(cur))
			cur = nil
		}
	}

	for i, r := range runes {
		switch {
		case isHan(r):
			if !curHan {
				flush()
			}
			curHan = true
			cur = append(cur, r)
		case isLatinDigit(r):
			if curHan {
				flush()
			}
			curHan = false
			cur = append(cur, r)
		case r == '.' && i > 0 && i < len(runes)-1 &&
			unicode.IsDigit(runes[i-1]) && unicode.IsDigit(runes[i+1]):
			// decimal point inside a number
			cur = append(cur, r)
		case r == '-' && !curHan && i > 0 && i < len(runes)-1 &&
			isLatinDigit(runes[i-1]) && isLatinDigit(runes[i+1]):
			// hyphen joining an identifier or range (BZ26-6, 3000-3005m)
			cur = append(cur, r)
		default:
			flush()
			curHan = false
		}
	}
	flush()
	return tokens
}
