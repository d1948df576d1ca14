package ingest

import (
	"path/filepath"
	"regexp"
	"strings"
)

var (
	extensionPattern = regexp.MustCompile(`\.[^/.]+$`)
	invalidIdentChar = regexp.MustCompile(`[^A-Za-z0-9_]`)
)

// Sanitize derives a table name from a file name: the trailing extension is
// dropped, every character outside [A-Za-z0-9_] becomes '_', and the result
// is lowercased. Sanitize is idempotent.
func Sanitize(name string) string {
	base := extensionPattern.ReplaceAllString(name, "")
	return strings.ToLower(invalidIdentChar.ReplaceAllString(base, "_"))
}

// decoders maps a lowercased extension to the engine table function that
// reads it.
var decoders = map[string]string{
	".csv":     "read_csv_auto",
	".json":    "read_json_auto",
	".parquet": "read_parquet",
}

// DecoderFor returns the engine decoder for a file name. Matching ignores
// case.
func DecoderFor(name string) (string, error) {
	if d, ok := decoders[strings.ToLower(filepath.Ext(name))]; ok {
		return d, nil
	}
	return "", &UnsupportedFormatError{File: name}
}

// Supported reports whether name has a decodable extension.
func Supported(name string) bool {
	_, err := DecoderFor(name)
	return err == nil
}
