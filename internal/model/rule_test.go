package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func pat(kinds ...SegmentKind) Pattern {
	p := make(Pattern, len(kinds))
	for i, k := range kinds {
		p[i] = Segment{Kind: k}
		if k == SegLiteral {
			p[i].Literal = "lit"
		}
	}
	return p
}

func TestPatternKey(t *testing.T) {
	p := Pattern{
		{Kind: SegWellName},
		{Kind: SegLiteral, Literal: "荧光扫描"},
		{Kind: SegDepth},
	}
	assert.Equal(t, "<well_name>/荧光扫描/<depth>", p.Key())
}

func TestPatternCounts(t *testing.T) {
	p := pat(SegLiteral, SegWildcard, SegWellName, SegLiteral)
	assert.Equal(t, 2, p.Specificity())
	assert.Equal(t, 1, p.Wildcards())
	assert.Equal(t, map[Field]int{FieldWellName: 2}, p.PredictedFields())
}

func TestRuleLess_OrdersByConfidenceThenSupport(t *testing.T) {
	a := Rule{Pattern: pat(SegWellName), Confidence: 0.9, Support: 2}
	b := Rule{Pattern: pat(SegWellName), Confidence: 0.8, Support: 10}
	assert.True(t, a.Less(b))
	assert.False(t, b.Less(a))

	c := Rule{Pattern: pat(SegCategory), Confidence: 0.9, Support: 5}
	assert.True(t, c.Less(a))
}

func TestRuleLess_FewerWildcardsWin(t *testing.T) {
	// Same confidence, support and literal count: the pattern
	// predicting more (fewer untyped wildcards) ranks first.
	maximal := Rule{Pattern: pat(SegWellName, SegCategory, SegWildcard), Confidence: 1, Support: 3}
	sparse := Rule{Pattern: pat(SegWildcard, SegCategory, SegWildcard), Confidence: 1, Support: 3}
	assert.True(t, maximal.Less(sparse))
	assert.False(t, sparse.Less(maximal))
}

func TestRuleLess_DeterministicTiebreak(t *testing.T) {
	a := Rule{Pattern: pat(SegCategory), Confidence: 1, Support: 3}
	b := Rule{Pattern: pat(SegDepth), Confidence: 1, Support: 3}
	// Exactly one direction holds, keyed on the pattern key.
	assert.NotEqual(t, a.Less(b), b.Less(a))
}

func TestLabelsGet(t *testing.T) {
	well := "BZ26-6"
	depth := 3025.5
	l := Labels{WellName: &well, Depth: &depth}

	v, ok := l.Get(FieldWellName)
	assert.True(t, ok)
	assert.Equal(t, "BZ26-6", v)

	v, ok = l.Get(FieldDepth)
	assert.True(t, ok)
	assert.Equal(t, "3025.5", v)

	_, ok = l.Get(FieldCategory)
	assert.False(t, ok)

	assert.False(t, l.Empty())
	assert.True(t, Labels{}.Empty())
}

func TestNewFileRecord_DerivesExtension(t *testing.T) {
	r := NewFileRecord(`well\scan\照片.JPG`, "s1", Labels{})
	assert.Equal(t, ".jpg", r.Ext)

	r = NewFileRecord("well/noext", "s1", Labels{})
	assert.Equal(t, "", r.Ext)
}
