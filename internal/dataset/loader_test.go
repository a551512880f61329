package dataset

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/exponent-ml/exponent/internal/domain"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadCSV(t *testing.T) {
	path := writeFile(t, "churn.csv",
		"age,income,active,churn\n"+
			"34,55000.5,true,no\n"+
			"29,,false,yes\n"+
			"41,72000.0,true,no\n")

	summary, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Rows)
	assert.Equal(t, 4, summary.ColumnCount())
	assert.Equal(t, "churn", summary.TargetColumn)
	assert.False(t, summary.Sampled)

	byName := map[string]domain.ColumnSummary{}
	for _, c := range summary.Columns {
		byName[c.Name] = c
	}
	assert.Equal(t, domain.ColumnTypeInteger, byName["age"].Type)
	assert.Equal(t, domain.ColumnTypeFloat, byName["income"].Type)
	assert.Equal(t, domain.ColumnTypeBoolean, byName["active"].Type)
	assert.Equal(t, domain.ColumnTypeString, byName["churn"].Type)
	assert.Equal(t, 1, byName["income"].NullCount)
	assert.Equal(t, 3, byName["age"].UniqueCount)
	assert.Equal(t, 2, byName["churn"].UniqueCount)
}

func TestLoadCountsMatchFile(t *testing.T) {
	content := "id,value\n"
	const n = 137
	for i := 0; i < n; i++ {
		content += "1,2\n"
	}
	path := writeFile(t, "counts.csv", content)

	summary, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, n, summary.Rows)
	assert.Equal(t, 2, summary.ColumnCount())
}

func TestLoadJSON(t *testing.T) {
	path := writeFile(t, "rows.json",
		`[{"a": 1, "b": "x"}, {"a": 2, "b": "y"}, {"a": 3, "b": null}]`)

	summary, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Rows)
	assert.Equal(t, 2, summary.ColumnCount())

	byName := map[string]domain.ColumnSummary{}
	for _, c := range summary.Columns {
		byName[c.Name] = c
	}
	assert.Equal(t, domain.ColumnTypeInteger, byName["a"].Type)
	assert.Equal(t, 1, byName["b"].NullCount)
}

func TestLoadJSONColumnOrderFollowsDocument(t *testing.T) {
	content := `[
		{"h": 7, "b": 1, "f": 2, "a": 3, "e": 4, "g": 5, "c": 6, "outcome": "yes"},
		{"h": 8, "b": 9, "f": 10, "a": 11, "e": 12, "g": 13, "c": 14, "outcome": "no"}
	]`
	path := writeFile(t, "wide.json", content)
	want := []string{"h", "b", "f", "a", "e", "g", "c", "outcome"}

	for i := 0; i < 50; i++ {
		summary, err := Load(path)
		require.NoError(t, err)

		names := make([]string, 0, summary.ColumnCount())
		for _, c := range summary.Columns {
			names = append(names, c.Name)
		}
		require.Equal(t, want, names, "load %d", i)
		require.Equal(t, "outcome", summary.TargetColumn, "load %d", i)
	}
}

func TestLoadJSONLColumnOrderAndLateColumns(t *testing.T) {
	path := writeFile(t, "rows.jsonl",
		`{"z": 1, "m": "x"}
{"z": 2, "m": "y", "extra": true}
`)

	summary, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Rows)

	names := make([]string, 0, summary.ColumnCount())
	for _, c := range summary.Columns {
		names = append(names, c.Name)
	}
	// columns keep first-appearance order; late columns append at the end
	assert.Equal(t, []string{"z", "m", "extra"}, names)
	assert.Equal(t, "extra", summary.TargetColumn)

	byName := map[string]domain.ColumnSummary{}
	for _, c := range summary.Columns {
		byName[c.Name] = c
	}
	// the first row had no "extra" value
	assert.Equal(t, 1, byName["extra"].NullCount)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		path func(t *testing.T) string
		want error
	}{
		{
			name: "missing file",
			path: func(t *testing.T) string {
				return filepath.Join(t.TempDir(), "nope.csv")
			},
			want: domain.ErrFileNotFound,
		},
		{
			name: "unsupported extension",
			path: func(t *testing.T) string {
				return writeFile(t, "model.pkl", "binary")
			},
			want: domain.ErrUnsupportedFormat,
		},
		{
			name: "no header",
			path: func(t *testing.T) string {
				return writeFile(t, "empty.csv", "")
			},
			want: domain.ErrMalformedData,
		},
		{
			name: "blank header",
			path: func(t *testing.T) string {
				return writeFile(t, "blank.csv", " , ,\n1,2,3\n")
			},
			want: domain.ErrMalformedData,
		},
		{
			name: "empty json array",
			path: func(t *testing.T) string {
				return writeFile(t, "empty.json", "[]")
			},
			want: domain.ErrMalformedData,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(tc.path(t))
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.want), "got %v, want %v", err, tc.want)
		})
	}
}
