// Package export converts enriched tables into point shapefiles.
package export

import (
	"os"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/cadastre-cli/internal/enrich"
	"github.com/sells-group/cadastre-cli/internal/model"
)

const (
	maxFieldName   = 10
	maxFieldLength = 254
)

// wgs84 is the projection written next to every shapefile.
const wgs84 = `GEOGCS["GCS_WGS_1984",DATUM["D_WGS_1984",SPHEROID["WGS_1984",6378137.0,298.257223563]],PRIMEM["Greenwich",0.0],UNIT["Degree",0.0174532925199433]]`

// Stats counts the rows written and skipped by WriteShapefile.
type Stats struct {
	Written int
	Skipped int
}

// WriteShapefile writes one POINT per row with valid coordinates to path
// (plus the .shx, .dbf and .prj siblings). Every column becomes a DBF
// string field. Rows without usable coordinates are skipped.
func WriteShapefile(path string, t *model.Table, latColumn, lonColumn string) (Stats, error) {
	var stats Stats

	latIdx := t.ColumnIndex(latColumn)
	if latIdx < 0 {
		return stats, &enrich.ColumnNotFoundError{Column: latColumn}
	}
	lonIdx := t.ColumnIndex(lonColumn)
	if lonIdx < 0 {
		return stats, &enrich.ColumnNotFoundError{Column: lonColumn}
	}

	w, err := shp.Create(path, shp.POINT)
	if err != nil {
		return stats, eris.Wrapf(err, "export: create %s", path)
	}
	defer w.Close()

	names := FieldNames(t.Columns)
	widths := fieldWidths(t)
	fields := make([]shp.Field, len(names))
	for i, name := range names {
		fields[i] = shp.StringField(name, uint8(widths[i]))
	}
	if err := w.SetFields(fields); err != nil {
		return stats, eris.Wrap(err, "export: set fields")
	}

	for _, row := range t.Rows {
		lat, okLat := enrich.ParseCoordinate(cell(row, latIdx))
		lon, okLon := enrich.ParseCoordinate(cell(row, lonIdx))
		if !okLat || !okLon {
			stats.Skipped++
			continue
		}

		n := int(w.Write(&shp.Point{X: lon, Y: lat}))
		for i := range fields {
			if err := w.WriteAttribute(n, i, truncate(cell(row, i), widths[i])); err != nil {
				return stats, eris.Wrapf(err, "export: write attribute %s", names[i])
			}
		}
		stats.Written++
	}

	prj := strings.TrimSuffix(path, ".shp") + ".prj"
	if err := os.WriteFile(prj, []byte(wgs84), 0o644); err != nil {
		return stats, eris.Wrap(err, "export: write projection")
	}

	zap.L().Info("export: shapefile written",
		zap.String("path", path),
		zap.Int("written", stats.Written),
		zap.Int("skipped", stats.Skipped),
	)
	return stats, nil
}

// FieldNames maps column names onto unique DBF field names of at most ten
// ASCII characters.
func FieldNames(columns []string) []string {
	names := make([]string, len(columns))
	used := make(map[string]bool, len(columns))
	for i, c := range columns {
		base := sanitize(c)
		name := base
		for n := 1; used[strings.ToUpper(name)]; n++ {
			suffix := "_" + strconv.Itoa(n)
			keep := maxFieldName - len(suffix)
			if keep > len(base) {
				keep = len(base)
			}
			name = base[:keep] + suffix
		}
		used[strings.ToUpper(name)] = true
		names[i] = name
	}
	return names
}

func sanitize(column string) string {
	var b strings.Builder
	for _, r := range column {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '.':
			b.WriteByte('_')
		}
		if b.Len() == maxFieldName {
			break
		}
	}
	if b.Len() == 0 {
		return "field"
	}
	return b.String()
}

func fieldWidths(t *model.Table) []int {
	widths := make([]int, len(t.Columns))
	for i := range widths {
		widths[i] = 1
	}
	for _, row := range t.Rows {
		for i := range widths {
			if l := len(cell(row, i)); l > widths[i] {
				widths[i] = l
			}
		}
	}
	for i := range widths {
		if widths[i] > maxFieldLength {
			widths[i] = maxFieldLength
		}
	}
	return widths
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func cell(row model.Row, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}
