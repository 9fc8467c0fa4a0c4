// Package fetcher loads listing files (CSV, XLSX) into file records.
// Listings are tabular exports of capture databases: one row per
// captured file, a path column, and optionally label columns carrying
// ground truth for training.
package fetcher

import (
	"context"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/rigsight/wellscan-cli/internal/model"
)

// Options configures how listing rows map to records.
type Options struct {
	// PathColumn is the header name of the captured-path column.
	PathColumn string
	// SourceColumn optionally names a column holding the source id.
	// Empty means every record uses Source, or the file stem when that
	// is empty too.
	SourceColumn string
	// Source overrides the per-file default source id.
	Source model.Source
	// Encoding forces a charset for CSV input ("gb18030", "utf-8", any
	// WHATWG label). Empty means detect: UTF-8 with GB18030 fallback.
	Encoding string
}

// Label columns recognized in listings, matched case-insensitively.
const (
	colWellName   = "well_name"
	colCategory   = "category"
	colSampleType = "sample_type"
	colDepth      = "depth"
)

// LoadListing reads one listing file into records, dispatching on the
// file extension.
func LoadListing(ctx context.Context, path string, opts Options) ([]model.FileRecord, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return LoadCSV(ctx, path, opts)
	case ".xlsx":
		return LoadXLSX(ctx, path, opts)
	default:
		return nil, eris.Errorf("fetcher: unsupported listing format %q", filepath.Ext(path))
	}
}

// sourceFor resolves the default source for a listing file.
func sourceFor(path string, opts Options) model.Source {
	if opts.Source != "" {
		return opts.Source
	}
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return model.Source(stem)
}

// columnIndex maps recognized headers to their column positions.
type columnIndex struct {
	path       int
	source     int
	wellName   int
	category   int
	sampleType int
	depth      int
}

func indexColumns(header []string, opts Options) (columnIndex, error) {
	idx := columnIndex{path: -1, source: -1, wellName: -1, category: -1, sampleType: -1, depth: -1}
	pathCol := strings.ToLower(opts.PathColumn)
	sourceCol := strings.ToLower(opts.SourceColumn)

	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case pathCol:
			idx.path = i
		case sourceCol:
			if sourceCol != "" {
				idx.source = i
			}
		case colWellName:
			idx.wellName = i
		case colCategory:
			idx.category = i
		case colSampleType:
			idx.sampleType = i
		case colDepth:
			idx.depth = i
		}
	}
	if idx.path == -1 {
		return idx, eris.Errorf("fetcher: listing has no %q column", opts.PathColumn)
	}
	return idx, nil
}

// rowToRecord builds one record from a listing row. Rows with an empty
// path cell yield ok=false and are skipped, not errors.
func rowToRecord(row []string, idx columnIndex, defaultSource model.Source) (model.FileRecord, bool) {
	cell := func(i int) string {
		if i < 0 || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	path := cell(idx.path)
	if path == "" {
		return model.FileRecord{}, false
	}

	source := defaultSource
	if s := cell(idx.source); s != "" {
		source = model.Source(s)
	}

	var labels model.Labels
	if v := cell(idx.wellName); v != "" {
		labels.WellName = &v
	}
	if v := cell(idx.category); v != "" {
		labels.Category = &v
	}
	if v := cell(idx.sampleType); v != "" {
		labels.SampleType = &v
	}
	if v := cell(idx.depth); v != "" {
		if d, err := strconv.ParseFloat(v, 64); err == nil {
			depth := d
			labels.Depth = &depth
		}
	}

	return model.NewFileRecord(path, source, labels), true
}
