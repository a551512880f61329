package domain

// ColumnType is the inferred type of a dataset column, derived from
// sampled values rather than the full file.
type ColumnType string

const (
	ColumnTypeInteger ColumnType = "integer"
	ColumnTypeFloat   ColumnType = "float"
	ColumnTypeBoolean ColumnType = "boolean"
	ColumnTypeString  ColumnType = "string"
)

// ColumnSummary describes one column of a dataset: inferred type plus
// null/unique counts over the sampled rows, and a few sample values.
type ColumnSummary struct {
	Name         string     `json:"name"`
	Type         ColumnType `json:"type"`
	NullCount    int        `json:"null_count"`
	UniqueCount  int        `json:"unique_count"`
	SampleValues []string   `json:"sample_values,omitempty"`
}

// DatasetSummary is a read-only snapshot of a dataset's schema and
// statistics. It is computed once per analysis and never holds a live
// reference to the source file.
type DatasetSummary struct {
	FileName     string          `json:"file_name"`
	FileSize     int64           `json:"file_size"`
	Rows         int             `json:"rows"`
	Columns      []ColumnSummary `json:"columns"`
	TargetColumn string          `json:"target_column,omitempty"`
	Sampled      bool            `json:"sampled"`
}

// ColumnCount returns the number of columns in the snapshot.
func (d *DatasetSummary) ColumnCount() int {
	return len(d.Columns)
}
