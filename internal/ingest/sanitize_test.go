package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "sales.csv", "sales"},
		{"spaces and parens", "Sales Report (2024).csv", "sales_report__2024_"},
		{"only last extension", "archive.tar.gz", "archive_tar"},
		{"no extension", "README", "readme"},
		{"hyphen", "q1-revenue.parquet", "q1_revenue"},
		{"unicode", "café.json", "caf_"},
		{"dotfile", ".hidden", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Sanitize(tt.input)
			assert.Equal(t, tt.want, got)
			assert.Regexp(t, `^[a-z0-9_]*$`, got)
		})
	}
}

func TestSanitize_Idempotent(t *testing.T) {
	for _, name := range []string{"Sales Report (2024).csv", "a.b.c", "x"} {
		once := Sanitize(name)
		assert.Equal(t, once, Sanitize(once), name)
	}
}

func TestDecoderFor(t *testing.T) {
	tests := []struct {
		file    string
		want    string
		wantErr bool
	}{
		{"sales.csv", "read_csv_auto", false},
		{"SALES.CSV", "read_csv_auto", false},
		{"events.json", "read_json_auto", false},
		{"facts.parquet", "read_parquet", false},
		{"facts.Parquet", "read_parquet", false},
		{"data.txt", "", true},
		{"noext", "", true},
		{"sheet.xlsx", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			got, err := DecoderFor(tt.file)
			if tt.wantErr {
				var ferr *UnsupportedFormatError
				require.ErrorAs(t, err, &ferr)
				assert.Equal(t, tt.file, ferr.File)
				assert.False(t, Supported(tt.file))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
