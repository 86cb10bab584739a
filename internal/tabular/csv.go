// Package tabular reads and writes the delimited-text tables exchanged with
// the file store, and converts Excel workbooks into them.
package tabular

import (
	"bytes"
	"encoding/csv"
	"io"
	"unicode/utf8"

	"github.com/rotisserie/eris"

	"github.com/sells-group/cadastre-cli/internal/model"
)

// DefaultDelimiter separates fields when the caller does not choose one.
const DefaultDelimiter = ';'

// ParseDelimiter converts a user-supplied separator into a rune. An empty
// string selects DefaultDelimiter; "tab" and `\t` select a tab.
func ParseDelimiter(s string) (rune, error) {
	switch s {
	case "":
		return DefaultDelimiter, nil
	case "tab", `\t`:
		return '\t', nil
	}
	if utf8.RuneCountInString(s) != 1 {
		return 0, eris.Errorf("tabular: delimiter %q must be a single character", s)
	}
	r, _ := utf8.DecodeRuneInString(s)
	if r == '"' || r == '\r' || r == '\n' || r == utf8.RuneError {
		return 0, eris.Errorf("tabular: invalid delimiter %q", s)
	}
	return r, nil
}

func newReader(r io.Reader, delim rune) *csv.Reader {
	reader := csv.NewReader(r)
	reader.Comma = delim
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	return reader
}

// ReadHeader returns only the header row of a delimited table.
func ReadHeader(r io.Reader, delim rune) ([]string, error) {
	reader := newReader(r, delim)
	header, err := reader.Read()
	if err == io.EOF {
		return nil, eris.New("tabular: empty input")
	}
	if err != nil {
		return nil, eris.Wrap(err, "tabular: read header")
	}
	return header, nil
}

// ReadTable parses a delimited table with a header row. Records shorter than
// the header are padded with empty values; longer records are rejected.
func ReadTable(r io.Reader, delim rune) (*model.Table, error) {
	reader := newReader(r, delim)

	header, err := reader.Read()
	if err == io.EOF {
		return nil, eris.New("tabular: empty input")
	}
	if err != nil {
		return nil, eris.Wrap(err, "tabular: read header")
	}

	t := &model.Table{Columns: header}
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrapf(err, "tabular: read row %d", line)
		}
		if len(record) > len(header) {
			return nil, eris.Errorf("tabular: row %d has %d fields, header has %d", line, len(record), len(header))
		}
		for len(record) < len(header) {
			record = append(record, "")
		}
		t.Rows = append(t.Rows, model.Row(record))
	}

	return t, nil
}

// WriteTable serializes t with a header row.
func WriteTable(w io.Writer, t *model.Table, delim rune) error {
	writer := csv.NewWriter(w)
	writer.Comma = delim

	if err := writer.Write(t.Columns); err != nil {
		return eris.Wrap(err, "tabular: write header")
	}
	for i, row := range t.Rows {
		if err := writer.Write(row); err != nil {
			return eris.Wrapf(err, "tabular: write row %d", i+1)
		}
	}
	writer.Flush()
	return eris.Wrap(writer.Error(), "tabular: flush")
}

// Marshal serializes t into a byte slice.
func Marshal(t *model.Table, delim rune) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteTable(&buf, t, delim); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes data (see Decode) and parses it as a table.
func Unmarshal(data []byte, delim rune) (*model.Table, error) {
	text, err := Decode(data)
	if err != nil {
		return nil, err
	}
	return ReadTable(bytes.NewReader(text), delim)
}
