package bayes

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/rigsight/wellscan-cli/internal/extract"
	"github.com/rigsight/wellscan-cli/internal/model"
	"github.com/rigsight/wellscan-cli/internal/textnorm"
)

// Features derives the feature vector for one record from its path text
// alone. Extraction is deterministic and stateless: the same record
// always yields the same features, independent of any trained state.
func Features(rec model.FileRecord) []string {
	tokens := textnorm.Tokenize(rec.Path)

	var feats []string
	for i, tok := range tokens {
		low := strings.ToLower(tok)
		feats = append(feats, low)
		feats = append(feats, fmt.Sprintf("comp:%d:%s", i, composition(tok)))
		if i > 0 {
			feats = append(feats, strings.ToLower(tokens[i-1])+"+"+low)
		}
	}
	if len(tokens) > 0 {
		feats = append(feats, "first:"+strings.ToLower(tokens[0]))
		feats = append(feats, "last:"+strings.ToLower(tokens[len(tokens)-1]))
	}

	if w := extract.WellName(rec.Path); w != "" {
		feats = append(feats, "well:"+strings.ToLower(w))
	}
	if c := extract.Category(rec.Path); c != "" {
		feats = append(feats, "cat:"+c)
	}
	if s := extract.SampleType(rec.Path); s != "" {
		feats = append(feats, "sample:"+s)
	}
	if d, ok := extract.Depth(rec.Path); ok {
		feats = append(feats, "depth:"+depthBucket(d.Center()))
	}
	norm := textnorm.Normalize(rec.Path)
	for _, sp := range model.SpecialTokens {
		if strings.Contains(norm, sp) {
			feats = append(feats, "special:"+sp)
		}
	}

	return feats
}

// depthBucket coarsens a depth in meters into the bands used on site.
func depthBucket(d float64) string {
	switch {
	case d < 1000:
		return "shallow"
	case d < 3000:
		return "medium"
	case d < 5000:
		return "deep"
	default:
		return "very_deep"
	}
}

// composition tags a token's character makeup: digits, letters, han or a
// mix.
func composition(tok string) string {
	var digit, letter, han bool
	for _, r := range tok {
		switch {
		case unicode.IsDigit(r):
			digit = true
		case unicode.Is(unicode.Han, r):
			han = true
		case unicode.IsLetter(r):
			letter = true
		}
	}
	switch {
	case han && !digit && !letter:
		return "han"
	case digit && !letter && !han:
		return "num"
	case letter && !digit && !han:
		return "alpha"
	default:
		return "mixed"
	}
}
