package dataset

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/exponent-ml/exponent/internal/domain"
)

// sampleRows caps how many rows feed type inference and column statistics.
// Rows past the cap are still counted so the reported row count matches the
// file, but their values are not inspected.
const sampleRows = 10000

// maxSampleValues is the number of example values kept per column.
const maxSampleValues = 3

// Load reads a tabular file and returns a schema/statistics snapshot.
// The source file is never modified and no handle to it is retained.
func Load(path string) (*domain.DatasetSummary, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("failed to stat dataset: %w", err)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset: %w", err)
	}
	defer f.Close()

	var header []string
	var rows int
	var sampled bool
	var stats []*columnStats

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		header, stats, rows, sampled, err = scanDelimited(f, ',')
	case ".tsv":
		header, stats, rows, sampled, err = scanDelimited(f, '\t')
	case ".json", ".jsonl":
		header, stats, rows, sampled, err = scanJSON(f, strings.ToLower(filepath.Ext(path)) == ".jsonl")
	default:
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedFormat, filepath.Ext(path))
	}
	if err != nil {
		return nil, err
	}

	summary := &domain.DatasetSummary{
		FileName: filepath.Base(path),
		FileSize: info.Size(),
		Rows:     rows,
		Sampled:  sampled,
	}
	for i, name := range header {
		summary.Columns = append(summary.Columns, stats[i].summarize(name))
	}
	// The original pipeline assumes the last column is the prediction target.
	if len(header) > 0 {
		summary.TargetColumn = header[len(header)-1]
	}
	return summary, nil
}

// columnStats accumulates per-column statistics over the sampled rows.
type columnStats struct {
	nulls   int
	uniques map[string]struct{}
	samples []string
	// inference flags, narrowed as values are observed
	seen      bool
	allInt    bool
	allFloat  bool
	allBool   bool
}

func newColumnStats() *columnStats {
	return &columnStats{
		uniques:  make(map[string]struct{}),
		allInt:   true,
		allFloat: true,
		allBool:  true,
	}
}

func (c *columnStats) observe(value string) {
	v := strings.TrimSpace(value)
	if v == "" || strings.EqualFold(v, "null") || strings.EqualFold(v, "nan") {
		c.nulls++
		return
	}
	c.seen = true
	c.uniques[v] = struct{}{}
	if len(c.samples) < maxSampleValues && !contains(c.samples, v) {
		c.samples = append(c.samples, v)
	}
	if c.allInt {
		if _, err := strconv.ParseInt(v, 10, 64); err != nil {
			c.allInt = false
		}
	}
	if c.allFloat {
		if _, err := strconv.ParseFloat(v, 64); err != nil {
			c.allFloat = false
		}
	}
	if c.allBool {
		switch strings.ToLower(v) {
		case "true", "false", "0", "1", "yes", "no":
		default:
			c.allBool = false
		}
	}
}

func contains(s []string, v string) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}

func (c *columnStats) summarize(name string) domain.ColumnSummary {
	typ := domain.ColumnTypeString
	switch {
	case !c.seen:
		typ = domain.ColumnTypeString
	case c.allBool && !c.allInt:
		typ = domain.ColumnTypeBoolean
	case c.allInt:
		typ = domain.ColumnTypeInteger
	case c.allFloat:
		typ = domain.ColumnTypeFloat
	}
	return domain.ColumnSummary{
		Name:         name,
		Type:         typ,
		NullCount:    c.nulls,
		UniqueCount:  len(c.uniques),
		SampleValues: c.samples,
	}
}

func scanDelimited(r io.Reader, comma rune) ([]string, []*columnStats, int, bool, error) {
	reader := csv.NewReader(r)
	reader.Comma = comma
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, nil, 0, false, fmt.Errorf("%w", domain.ErrMalformedData)
	}
	if len(header) == 0 || allBlank(header) {
		return nil, nil, 0, false, fmt.Errorf("%w", domain.ErrMalformedData)
	}

	stats := make([]*columnStats, len(header))
	for i := range stats {
		stats[i] = newColumnStats()
	}

	rows := 0
	sampled := false
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, 0, false, fmt.Errorf("failed to read row %d: %w", rows+2, err)
		}
		rows++
		if rows > sampleRows {
			sampled = true
			continue
		}
		for i := range header {
			if i < len(record) {
				stats[i].observe(record[i])
			} else {
				stats[i].observe("")
			}
		}
	}
	return header, stats, rows, sampled, nil
}

// scanJSON handles a JSON array of flat objects, or one object per line
// when jsonl is true. Objects are walked token by token so column order
// follows first appearance in the document, not Go map iteration.
func scanJSON(r io.Reader, jsonl bool) ([]string, []*columnStats, int, bool, error) {
	dec := json.NewDecoder(r)

	if !jsonl {
		tok, err := dec.Token()
		if err != nil || tok != json.Delim('[') {
			return nil, nil, 0, false, fmt.Errorf("%w", domain.ErrMalformedData)
		}
	}

	var header []string
	var stats []*columnStats
	index := make(map[string]int)
	rows := 0

	for {
		if !jsonl && !dec.More() {
			if _, err := dec.Token(); err != nil { // closing ']'
				return nil, nil, 0, false, fmt.Errorf("%w", domain.ErrMalformedData)
			}
			break
		}

		keys, values, err := decodeFlatObject(dec)
		if err != nil {
			if jsonl && errors.Is(err, io.EOF) {
				break
			}
			return nil, nil, 0, false, fmt.Errorf("%w", domain.ErrMalformedData)
		}

		rows++
		if rows > sampleRows {
			continue
		}

		for _, k := range keys {
			if _, ok := index[k]; !ok {
				index[k] = len(header)
				header = append(header, k)
				cs := newColumnStats()
				// columns absent from earlier rows were null there
				for i := 1; i < rows; i++ {
					cs.observe("")
				}
				stats = append(stats, cs)
			}
		}
		for k, idx := range index {
			stats[idx].observe(jsonValueString(values[k]))
		}
	}

	if rows == 0 {
		return nil, nil, 0, false, fmt.Errorf("%w", domain.ErrMalformedData)
	}
	return header, stats, rows, rows > sampleRows, nil
}

// decodeFlatObject reads one JSON object from the decoder, returning its
// keys in document order alongside the decoded values.
func decodeFlatObject(dec *json.Decoder) ([]string, map[string]interface{}, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, nil, err
	}
	if tok != json.Delim('{') {
		return nil, nil, fmt.Errorf("%w", domain.ErrMalformedData)
	}

	var keys []string
	values := make(map[string]interface{})
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, nil, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, nil, fmt.Errorf("%w", domain.ErrMalformedData)
		}
		var v interface{}
		if err := dec.Decode(&v); err != nil {
			return nil, nil, err
		}
		if _, seen := values[key]; !seen {
			keys = append(keys, key)
		}
		values[key] = v
	}
	if _, err := dec.Token(); err != nil { // closing '}'
		return nil, nil, err
	}
	return keys, values, nil
}

func jsonValueString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		b, _ := json.Marshal(t)
		return string(b)
	}
}

func allBlank(fields []string) bool {
	for _, f := range fields {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
