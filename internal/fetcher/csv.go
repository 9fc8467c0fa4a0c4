package fetcher

import (
	"bytes"
	"context"
	"encoding/csv"
	"io"
	"os"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"

	"github.com/rigsight/wellscan-cli/internal/model"
)

// LoadCSV reads a CSV listing into records. Capture-station exports are
// frequently GB18030-encoded; input that is not valid UTF-8 is decoded
// as GB18030 unless Options.Encoding forces a specific charset.
func LoadCSV(ctx context.Context, path string, opts Options) ([]model.FileRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: open csv")
	}
	defer f.Close()

	r, err := decodeReader(f, opts.Encoding)
	if err != nil {
		return nil, err
	}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // allow variable fields

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: read csv header")
	}
	idx, err := indexColumns(header, opts)
	if err != nil {
		return nil, err
	}

	source := sourceFor(path, opts)

	var records []model.FileRecord
	for {
		if ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "fetcher: read csv")
		}
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "fetcher: read csv row")
		}
		if rec, ok := rowToRecord(row, idx, source); ok {
			records = append(records, rec)
		}
	}
	return records, nil
}

// decodeReader wraps raw listing bytes in a UTF-8 reader. A forced
// charset is looked up by its WHATWG label; otherwise the content is
// sniffed and falls back to GB18030 when it is not valid UTF-8.
func decodeReader(r io.Reader, charset string) (io.Reader, error) {
	if charset != "" {
		enc, err := htmlindex.Get(charset)
		if err != nil {
			return nil, eris.Wrapf(err, "fetcher: unknown charset %q", charset)
		}
		return transform.NewReader(r, enc.NewDecoder()), nil
	}

	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: read listing")
	}
	raw = bytes.TrimPrefix(raw, []byte{0xEF, 0xBB, 0xBF})
	if utf8.Valid(raw) {
		return bytes.NewReader(raw), nil
	}
	return transform.NewReader(bytes.NewReader(raw), simplifiedchinese.GB18030.NewDecoder()), nil
}
