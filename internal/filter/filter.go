// Package filter decides which listing records are in scope for
// classification. The decision is purely extension-based; no file
// content is ever inspected.
package filter

import (
	"strings"

	"go.uber.org/zap"

	"github.com/rigsight/wellscan-cli/internal/model"
)

// DefaultImageExtensions is the image allow-list applied when the
// configuration does not override it.
var DefaultImageExtensions = []string{
	".jpg", ".jpeg", ".png", ".bmp", ".tiff", ".tif", ".gif", ".webp",
}

// OtherBucket is the stats key that collects every extension outside the
// allow-list.
const OtherBucket = "other"

// RecordFilter splits records into image and non-image sets against a
// fixed extension allow-list.
type RecordFilter struct {
	allowed map[string]bool
}

// New builds a filter. Extensions are matched case-insensitively; a nil
// or empty list falls back to DefaultImageExtensions.
func New(extensions []string) *RecordFilter {
	if len(extensions) == 0 {
		extensions = DefaultImageExtensions
	}
	allowed := make(map[string]bool, len(extensions))
	for _, ext := range extensions {
		ext = strings.ToLower(ext)
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		allowed[ext] = true
	}
	return &RecordFilter{allowed: allowed}
}

// Decide computes the scope decision for a single record.
func (f *RecordFilter) Decide(rec model.FileRecord) model.ScopeDecision {
	return model.ScopeDecision{
		IsImage: f.allowed[rec.Ext],
		Ext:     rec.Ext,
	}
}

// Stats summarizes a filter pass. Distribution covers allow-listed
// extensions only (keyed without the leading dot); everything else lands
// in the "other" bucket.
type Stats struct {
	Total        int            `json:"total"`
	ImageCount   int            `json:"image_count"`
	NonImage     int            `json:"non_image_count"`
	Distribution map[string]int `json:"distribution"`
}

// Split partitions records into image and non-image subsets and reports
// coverage stats. Pure over its input; an empty input yields all-zero
// stats, not an error.
func (f *RecordFilter) Split(records []model.FileRecord) (images, others []model.FileRecord, stats Stats) {
	stats.Distribution = make(map[string]int)

	for _, rec := range records {
		stats.Total++
		if f.allowed[rec.Ext] {
			stats.ImageCount++
			stats.Distribution[strings.TrimPrefix(rec.Ext, ".")]++
			images = append(images, rec)
		} else {
			stats.NonImage++
			stats.Distribution[OtherBucket]++
			others = append(others, rec)
		}
	}

	zap.L().Debug("filter: scoped records",
		zap.Int("total", stats.Total),
		zap.Int("images", stats.ImageCount),
		zap.Int("non_images", stats.NonImage),
	)
	return images, others, stats
}
