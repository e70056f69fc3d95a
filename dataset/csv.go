package dataset

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/YuminosukeSato/trainedml/pkg/errors"
)

// CSVOptions controls ReadCSV.
type CSVOptions struct {
	// Sep is the field separator. Empty means ",".
	Sep string

	// Names overrides the column names. When set, the file is treated as
	// headerless unless Header is true, in which case the first row is
	// discarded.
	Names []string
	Header bool
}

var missingMarkers = map[string]bool{
	"":     true,
	"NA":   true,
	"N/A":  true,
	"NaN":  true,
	"nan":  true,
	"null": true,
	"NULL": true,
	"?":    true,
}

// IsMissingMarker reports whether a raw cell denotes a missing value.
func IsMissingMarker(s string) bool {
	return missingMarkers[strings.TrimSpace(s)]
}

// DetectSeparator guesses the separator from a source location. The UCI
// wine quality files are semicolon separated.
func DetectSeparator(source string) string {
	if strings.Contains(strings.ToLower(source), "winequality") {
		return ";"
	}
	return ","
}

// ReadCSV parses r into a Frame. A column is numeric when all non-missing
// cells parse as floats, otherwise categorical.
func ReadCSV(r io.Reader, opts CSVOptions) (*Frame, error) {
	sep := opts.Sep
	if sep == "" {
		sep = ","
	}
	if sep == `\t` {
		sep = "\t"
	}
	comma, size := utf8.DecodeRuneInString(sep)
	if size != len(sep) {
		return nil, errors.NewValidationError("sep", "must be a single character", sep)
	}

	reader := csv.NewReader(r)
	reader.Comma = comma
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "parse csv")
	}
	// skip blank trailing lines that some mirrors append
	for len(records) > 0 && len(records[len(records)-1]) == 1 && strings.TrimSpace(records[len(records)-1][0]) == "" {
		records = records[:len(records)-1]
	}
	if len(records) == 0 {
		return nil, errors.WithStack(errors.ErrEmptyData)
	}

	names := opts.Names
	if len(names) == 0 {
		names = records[0]
		records = records[1:]
	} else if opts.Header {
		records = records[1:]
	}
	names = append([]string(nil), names...)
	for i, n := range names {
		names[i] = strings.TrimSpace(n)
	}

	width := len(names)
	for i, rec := range records {
		if len(rec) != width {
			return nil, errors.WithHint(
				errors.NewDimensionError("ReadCSV", width, len(rec), 1),
				"row "+strconv.Itoa(i+1)+" has a different number of fields; check the separator",
			)
		}
	}

	cols := make([]*Column, width)
	for j, name := range names {
		cols[j] = parseColumn(name, records, j)
	}
	return NewFrame(cols...)
}

func parseColumn(name string, records [][]string, j int) *Column {
	floats := make([]float64, len(records))
	numeric, floatLike := true, false
	for i, rec := range records {
		cell := strings.TrimSpace(rec[j])
		if IsMissingMarker(cell) {
			floats[i] = nan
			floatLike = true
			continue
		}
		v, err := strconv.ParseFloat(cell, 64)
		if err != nil {
			numeric = false
			break
		}
		if strings.ContainsAny(cell, ".eEnN") {
			floatLike = true
		}
		floats[i] = v
	}
	if numeric {
		// A column with a decimal point, an exponent or a missing cell reads
		// as float, so "1.0,2.0" targets are regression targets.
		col := NewNumericColumn(name, floats)
		col.Integer = col.Integer && !floatLike
		return col
	}

	strs := make([]string, len(records))
	for i, rec := range records {
		cell := strings.TrimSpace(rec[j])
		if !IsMissingMarker(cell) {
			strs[i] = cell
		}
	}
	return NewCategoricalColumn(name, strs)
}
