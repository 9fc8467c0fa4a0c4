// Package extract pulls well names, depths and sample types out of raw
// capture paths. These parsers back the learner's correlation checks and
// rule slot validation, and are exposed directly on the serve API for
// ad-hoc inspection.
package extract

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/rigsight/wellscan-cli/internal/model"
	"github.com/rigsight/wellscan-cli/internal/textnorm"
)

// wellRE matches bare well identifiers: a short alpha prefix, a number
// chain, and an optional alphanumeric suffix (BZ26-6, KL10-4-A12H).
var wellRE = regexp.MustCompile(`[A-Za-z]{1,4}\d+(?:-\d+){0,3}(?:-[A-Za-z0-9]+)?`)

// WellName extracts the well identifier from a path. A segment ending in
// the 井 marker wins; otherwise the first bare identifier match is used.
// Returns "" when nothing well-shaped is present.
func WellName(path string) string {
	s := textnorm.Normalize(path)
	parts := strings.Split(s, "/")
	for i := len(parts) - 1; i >= 0; i-- {
		if idx := strings.Index(parts[i], "井"); idx > 0 {
			return strings.TrimSpace(parts[i][:idx])
		}
	}
	return wellRE.FindString(s)
}

// DepthRange is a parsed depth interval in meters. Single depths have
// Start == End.
type DepthRange struct {
	Start float64
	End   float64
}

// Center returns the interval midpoint.
func (d DepthRange) Center() float64 { return (d.Start + d.End) / 2 }

var (
	depthRangeRE  = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*-\s*(\d+(?:\.\d+)?)\s*(m|米|cm)\b`)
	depthSingleRE = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(m|米|cm)`)
	numberRE      = regexp.MustCompile(`\d+(?:\.\d+)?`)
)

func toMeters(v float64, unit string) float64 {
	if strings.EqualFold(unit, "cm") {
		return v / 100
	}
	return v
}

// Depth parses the depth from a path's filename. Range-with-unit wins
// over single-with-unit; as a last resort the trailing underscore
// segment's bare numbers are read (the legacy listing format omits the
// unit). Reversed ranges are corrected. Returns false when the filename
// carries no depth.
func Depth(path string) (DepthRange, bool) {
	s := textnorm.NormalizeForDepth(path)
	if idx := strings.LastIndex(s, "/"); idx >= 0 {
		s = s[idx+1:]
	}
	last := s
	if idx := strings.LastIndex(last, "_"); idx >= 0 {
		last = last[idx+1:]
	}
	last = stripExt(last)

	if m := depthRangeRE.FindStringSubmatch(last); m != nil {
		start, _ := strconv.ParseFloat(m[1], 64)
		end, _ := strconv.ParseFloat(m[2], 64)
		return ordered(toMeters(start, m[3]), toMeters(end, m[3])), true
	}
	if m := depthSingleRE.FindStringSubmatch(last); m != nil {
		v, _ := strconv.ParseFloat(m[1], 64)
		v = toMeters(v, m[2])
		return DepthRange{Start: v, End: v}, true
	}

	// Legacy: bare numbers in the last underscore segment.
	nums := numberRE.FindAllString(last, 2)
	switch len(nums) {
	case 0:
		return DepthRange{}, false
	case 1:
		v, _ := strconv.ParseFloat(nums[0], 64)
		return DepthRange{Start: v, End: v}, true
	default:
		start, _ := strconv.ParseFloat(nums[0], 64)
		end, _ := strconv.ParseFloat(nums[1], 64)
		return ordered(start, end), true
	}
}

func ordered(start, end float64) DepthRange {
	if start > end {
		start, end = end, start
	}
	return DepthRange{Start: start, End: end}
}

var extRE = regexp.MustCompile(`\.[^.]+$`)

func stripExt(s string) string {
	return extRE.ReplaceAllString(s, "")
}

// sampleTokens is the (label, token) vocabulary flattened and sorted by
// token length descending so the more specific token wins (壁取心 before
// 取心).
var sampleTokens = buildSampleTokens()

type labeledToken struct {
	label string
	token string
}

func buildSampleTokens() []labeledToken {
	var pairs []labeledToken
	for label, toks := range model.SampleTypeVocab {
		for _, t := range toks {
			pairs = append(pairs, labeledToken{label: label, token: strings.ToLower(t)})
		}
	}
	sort.Slice(pairs, func(i, j int) bool {
		if len(pairs[i].token) != len(pairs[j].token) {
			return len(pairs[i].token) > len(pairs[j].token)
		}
		return pairs[i].token < pairs[j].token
	})
	return pairs
}

// SampleType resolves the sample-type label present in a path via the
// vocabulary, or "" when none matches.
func SampleType(path string) string {
	low := strings.ToLower(textnorm.Normalize(path))
	for _, p := range sampleTokens {
		if strings.Contains(low, p.token) {
			return p.label
		}
	}
	return ""
}

// Category returns the category keyword present in a path, or "".
func Category(path string) string {
	norm := textnorm.Normalize(path)
	for _, c := range model.CategoryKeywords {
		if strings.Contains(norm, c) {
			return c
		}
	}
	return ""
}

// Metadata is the combined extraction result for one path.
type Metadata struct {
	WellName   string      `json:"well_name,omitempty"`
	Category   string      `json:"category,omitempty"`
	SampleType string      `json:"sample_type,omitempty"`
	Depth      *DepthRange `json:"depth,omitempty"`
	Anomalies  []string    `json:"anomalies,omitempty"`
}

// Parse runs every extractor over a path and notes what is missing.
func Parse(path string) Metadata {
	md := Metadata{
		WellName:   WellName(path),
		Category:   Category(path),
		SampleType: SampleType(path),
	}
	if d, ok := Depth(path); ok {
		md.Depth = &d
	}
	if md.WellName == "" {
		md.Anomalies = append(md.Anomalies, "missing well name")
	}
	if md.Depth == nil {
		md.Anomalies = append(md.Anomalies, "missing depth")
	}
	if md.SampleType == "" {
		md.Anomalies = append(md.Anomalies, "missing sample type")
	}
	return md
}
