package model

import "strings"

// SegmentKind tags one position of a rule pattern.
type SegmentKind string

const (
	// SegLiteral matches exactly one token value.
	SegLiteral SegmentKind = "literal"
	// SegWildcard matches any token and predicts nothing. Used for
	// positions that vary across training records without correlating
	// with any label field.
	SegWildcard SegmentKind = "any"
	// Typed placeholders match a token, validate its type and extract a
	// field value.
	SegWellName   SegmentKind = "well_name"
	SegCategory   SegmentKind = "category"
	SegSampleType SegmentKind = "sample_type"
	SegDepth      SegmentKind = "depth"
)

// Field returns the label field a placeholder kind extracts, or "" for
// literals and wildcards.
func (k SegmentKind) Field() (Field, bool) {
	switch k {
	case SegWellName:
		return FieldWellName, true
	case SegCategory:
		return FieldCategory, true
	case SegSampleType:
		return FieldSampleType, true
	case SegDepth:
		return FieldDepth, true
	}
	return "", false
}

// Segment is one position of a pattern: either a frozen literal token or
// a placeholder.
type Segment struct {
	Kind    SegmentKind `json:"kind" yaml:"kind"`
	Literal string      `json:"literal,omitempty" yaml:"literal,omitempty"`
}

// Pattern is the ordered tagged sequence a rule matches against a path's
// token sequence. Matching is positional and total: the token count must
// equal the segment count.
type Pattern []Segment

// Key returns a canonical string form of the pattern, used for
// deduplication and as the final deterministic ordering tiebreak.
func (p Pattern) Key() string {
	parts := make([]string, len(p))
	for i, s := range p {
		if s.Kind == SegLiteral {
			parts[i] = s.Literal
		} else {
			parts[i] = "<" + string(s.Kind) + ">"
		}
	}
	return strings.Join(parts, "/")
}

// Specificity counts literal segments. More literals means a more
// specific pattern.
func (p Pattern) Specificity() int {
	n := 0
	for _, s := range p {
		if s.Kind == SegLiteral {
			n++
		}
	}
	return n
}

// Wildcards counts untyped wildcard segments. Fewer wildcards means a
// more specific pattern.
func (p Pattern) Wildcards() int {
	n := 0
	for _, s := range p {
		if s.Kind == SegWildcard {
			n++
		}
	}
	return n
}

// PredictedFields lists the fields the pattern extracts, keyed by field
// with the segment index each one reads from.
func (p Pattern) PredictedFields() map[Field]int {
	out := make(map[Field]int)
	for i, s := range p {
		if f, ok := s.Kind.Field(); ok {
			out[f] = i
		}
	}
	return out
}

// Rule is one learned, immutable classification rule: a pattern scoped
// to a source, with the training support and agreement confidence
// computed at learning time.
type Rule struct {
	Pattern    Pattern `json:"pattern" yaml:"pattern"`
	Source     Source  `json:"source" yaml:"source"`
	Support    int     `json:"support" yaml:"support"`
	Confidence float64 `json:"confidence" yaml:"confidence"`
}

// Less is the total rule order: confidence desc, support desc, more
// literals, fewer wildcards, pattern key asc. Usable both at
// construction and for later re-sorting; list position never carries
// meaning on its own.
func (r Rule) Less(other Rule) bool {
	if r.Confidence != other.Confidence {
		return r.Confidence > other.Confidence
	}
	if r.Support != other.Support {
		return r.Support > other.Support
	}
	if a, b := r.Pattern.Specificity(), other.Pattern.Specificity(); a != b {
		return a > b
	}
	if a, b := r.Pattern.Wildcards(), other.Pattern.Wildcards(); a != b {
		return a < b
	}
	return r.Pattern.Key() < other.Pattern.Key()
}
