package model

import (
	"path"
	"strconv"
	"strings"
)

// formatDepth renders a depth in meters with trailing zeros trimmed,
// matching how depth tokens appear in filenames (e.g. "1234.5").
func formatDepth(d float64) string {
	return strconv.FormatFloat(d, 'f', -1, 64)
}

// Source identifies the logical batch an input listing came from (one
// originating CSV/XLSX export or API pull). Rules are learned and applied
// per source; a rule never crosses sources.
type Source string

// Field names a label a rule or classifier can predict.
type Field string

const (
	FieldWellName   Field = "well_name"
	FieldCategory   Field = "category"
	FieldSampleType Field = "sample_type"
	FieldDepth      Field = "depth"
)

// AllFields returns every predictable field in stable order.
func AllFields() []Field {
	return []Field{FieldWellName, FieldCategory, FieldSampleType, FieldDepth}
}

// Labels holds the optional ground-truth annotations attached to a record.
// Nil means unlabeled for that field; labels are present only on training
// rows.
type Labels struct {
	WellName   *string  `json:"well_name,omitempty"`
	Category   *string  `json:"category,omitempty"`
	SampleType *string  `json:"sample_type,omitempty"`
	Depth      *float64 `json:"depth,omitempty"`
}

// Get returns the label value for a field as a string and whether it is set.
// Depth is formatted without a unit.
func (l Labels) Get(f Field) (string, bool) {
	switch f {
	case FieldWellName:
		if l.WellName != nil {
			return *l.WellName, true
		}
	case FieldCategory:
		if l.Category != nil {
			return *l.Category, true
		}
	case FieldSampleType:
		if l.SampleType != nil {
			return *l.SampleType, true
		}
	case FieldDepth:
		if l.Depth != nil {
			return formatDepth(*l.Depth), true
		}
	}
	return "", false
}

// Empty reports whether no label field is set.
func (l Labels) Empty() bool {
	return l.WellName == nil && l.Category == nil && l.SampleType == nil && l.Depth == nil
}

// FileRecord is one row of an input listing: a captured file path plus
// optional ground truth. Constructed once at ingestion and read-only
// afterwards.
type FileRecord struct {
	Path   string `json:"path"`
	Ext    string `json:"ext"` // lower-cased, dot-prefixed, derived from Path
	Source Source `json:"source"`
	Labels Labels `json:"labels,omitempty"`
}

// NewFileRecord builds a record, deriving the extension from the path.
func NewFileRecord(p string, source Source, labels Labels) FileRecord {
	return FileRecord{
		Path:   p,
		Ext:    strings.ToLower(path.Ext(strings.ReplaceAll(p, "\\", "/"))),
		Source: source,
		Labels: labels,
	}
}

// ScopeDecision is the derived image/non-image call for a record. It is
// recomputed on demand and never persisted.
type ScopeDecision struct {
	IsImage bool   `json:"is_image"`
	Ext     string `json:"ext"`
}
