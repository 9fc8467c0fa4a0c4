package ruleset

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/rigsight/wellscan-cli/internal/model"
)

// ExtractSlot validates a token against a placeholder kind and returns
// the extracted field value. Returning false means the token fails the
// slot's type check and the enclosing rule does not match.
func ExtractSlot(kind model.SegmentKind, tok string) (string, bool) {
	switch kind {
	case model.SegDepth:
		v, ok := ParseDepthToken(tok)
		if !ok {
			return "", false
		}
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case model.SegWellName:
		w, ok := wellValue(tok)
		return w, ok
	case model.SegCategory, model.SegSampleType:
		if isNumericToken(tok) {
			return "", false
		}
		if kind == model.SegSampleType {
			if label, ok := model.SampleTypeFor(tok); ok {
				return label, true
			}
		}
		return tok, true
	}
	return "", false
}

// ParseDepthToken reads a depth value in meters from a single token:
// "3025.5", "3025.5m", "120cm" or a range like "3000-3005m", which
// yields the range midpoint. Non-negative numbers only.
func ParseDepthToken(tok string) (float64, bool) {
	s := strings.ToLower(strings.TrimSpace(tok))
	if i := strings.IndexByte(s, '-'); i > 0 {
		lo, okLo := parseDepthValue(s[:i])
		hi, okHi := parseDepthValue(s[i+1:])
		if !okLo || !okHi {
			return 0, false
		}
		if hi < lo {
			lo, hi = hi, lo
		}
		return (lo + hi) / 2, true
	}
	return parseDepthValue(s)
}

func parseDepthValue(s string) (float64, bool) {
	div := 1.0
	switch {
	case strings.HasSuffix(s, "cm"):
		s, div = strings.TrimSuffix(s, "cm"), 100
	case strings.HasSuffix(s, "m"):
		s = strings.TrimSuffix(s, "m")
	case strings.HasSuffix(s, "米"):
		s = strings.TrimSuffix(s, "米")
	}
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 {
		return 0, false
	}
	return v / div, true
}

// wellValue validates a token as a well identifier and strips the 井
// marker. A well token must carry at least one letter or end in 井, and
// must contain a digit or the marker.
func wellValue(tok string) (string, bool) {
	trimmed := strings.TrimSuffix(tok, "井")
	if trimmed == "" {
		return "", false
	}
	if strings.HasSuffix(tok, "井") {
		return trimmed, true
	}
	var hasLetter, hasDigit bool
	for _, r := range trimmed {
		switch {
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsLetter(r):
			hasLetter = true
		}
	}
	return trimmed, hasLetter && hasDigit
}

func isNumericToken(tok string) bool {
	if tok == "" {
		return false
	}
	for _, r := range tok {
		if !unicode.IsDigit(r) && r != '.' {
			return false
		}
	}
	return true
}
