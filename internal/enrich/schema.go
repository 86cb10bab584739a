// Package enrich merges cadastre parcel attributes onto input rows.
package enrich

import (
	"errors"
	"fmt"

	"github.com/sells-group/cadastre-cli/internal/model"
)

// Row statuses recorded for non-exceptional failure outcomes.
const (
	StatusMissingCoordinates = "missing latitude or longitude"
	StatusNotFound           = "cadastre data not found for this geometry"
	StatusUnknownError       = "unknown error"
)

// DefaultPrefix namespaces the parcel columns added to each row.
const DefaultPrefix = "cadastre_"

// collisionSuffix is appended to an input column whose name matches an
// added parcel or status column.
const collisionSuffix = "_input"

// ColumnNotFoundError reports a coordinate column absent from the header.
type ColumnNotFoundError struct {
	Column string
}

func (e *ColumnNotFoundError) Error() string {
	return "column name <" + e.Column + "> is missing in csv file"
}

// Schema maps one input header onto the enriched output header.
type Schema struct {
	latIdx int
	lonIdx int

	width   int
	columns []string
	prefix  string
}

// NewSchema validates the coordinate columns against the input header and
// computes the output header: all input columns, then the parcel columns,
// then the status column.
func NewSchema(columns []string, latColumn, lonColumn, prefix string) (*Schema, error) {
	if prefix == "" {
		prefix = DefaultPrefix
	}

	s := &Schema{latIdx: -1, lonIdx: -1, prefix: prefix}
	for i, c := range columns {
		if s.latIdx < 0 && c == latColumn {
			s.latIdx = i
		}
		if s.lonIdx < 0 && c == lonColumn {
			s.lonIdx = i
		}
	}
	if s.latIdx < 0 {
		return nil, &ColumnNotFoundError{Column: latColumn}
	}
	if s.lonIdx < 0 {
		return nil, &ColumnNotFoundError{Column: lonColumn}
	}

	added := make(map[string]bool, len(model.ParcelFields)+1)
	for _, f := range model.ParcelFields {
		added[prefix+f] = true
	}
	added[s.StatusColumn()] = true

	// Every input column is kept; one named like an added column is renamed.
	taken := make(map[string]bool, len(columns)+len(added))
	for _, c := range columns {
		taken[c] = true
	}
	s.width = len(columns)
	for _, c := range columns {
		if added[c] {
			c = renameColumn(c, taken, added)
		}
		s.columns = append(s.columns, c)
	}
	for _, f := range model.ParcelFields {
		s.columns = append(s.columns, prefix+f)
	}
	s.columns = append(s.columns, s.StatusColumn())

	return s, nil
}

// Columns returns the output header.
func (s *Schema) Columns() []string {
	out := make([]string, len(s.columns))
	copy(out, s.columns)
	return out
}

// Column returns the output name of a parcel field, e.g. "numero".
func (s *Schema) Column(field string) string {
	return s.prefix + field
}

// StatusColumn returns the output name of the status column.
func (s *Schema) StatusColumn() string {
	return s.prefix + "status"
}

// Coordinates returns the raw latitude and longitude values of row.
func (s *Schema) Coordinates(row model.Row) (lat, lon string) {
	return cell(row, s.latIdx), cell(row, s.lonIdx)
}

// merge builds an output row from the input values, the parcel values
// (nil parcel leaves them empty) and the status.
func (s *Schema) merge(row model.Row, parcel *model.Parcel, status string) model.Row {
	out := make(model.Row, 0, len(s.columns))
	for i := 0; i < s.width; i++ {
		out = append(out, cell(row, i))
	}
	if parcel != nil {
		out = append(out, parcel.Values()...)
	} else {
		for range model.ParcelFields {
			out = append(out, "")
		}
	}
	return append(out, status)
}

func cell(row model.Row, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}

// renameColumn suffixes c until it collides with neither an input column
// nor an added column, and marks the result taken.
func renameColumn(c string, taken, added map[string]bool) string {
	name := c + collisionSuffix
	for n := 2; taken[name] || added[name]; n++ {
		name = fmt.Sprintf("%s%s_%d", c, collisionSuffix, n)
	}
	taken[name] = true
	return name
}

// IsColumnNotFound reports whether err is a ColumnNotFoundError.
func IsColumnNotFound(err error) bool {
	var cnf *ColumnNotFoundError
	return errors.As(err, &cnf)
}
