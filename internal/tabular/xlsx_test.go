package tabular

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/cadastre-cli/internal/model"
)

func createTestXLSX(t *testing.T, sheets map[string][][]string) []byte {
	t.Helper()
	f := xlsx.NewFile()
	for name, rows := range sheets {
		sheet, err := f.AddSheet(name)
		require.NoError(t, err)
		for _, rowData := range rows {
			row := sheet.AddRow()
			for _, cellData := range rowData {
				cell := row.AddCell()
				cell.SetString(cellData)
			}
		}
	}
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return buf.Bytes()
}

func TestReadXLSX_Basic(t *testing.T) {
	data := createTestXLSX(t, map[string][][]string{
		"Feuil1": {
			{"id", "lat", "lon"},
			{"1", "48.85", "2.35"},
			{"2", "", "2.35"},
		},
	})
	require.True(t, IsXLSX(data))

	tbl, err := ReadXLSX(data, XLSXOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "lat", "lon"}, tbl.Columns)
	require.Len(t, tbl.Rows, 2)
	assert.Equal(t, model.Row{"1", "48.85", "2.35"}, tbl.Rows[0])
	assert.Equal(t, model.Row{"2", "", "2.35"}, tbl.Rows[1])
}

func TestReadXLSX_SheetByName(t *testing.T) {
	data := createTestXLSX(t, map[string][][]string{
		"points": {{"a", "b"}, {"1", "2"}},
	})

	tbl, err := ReadXLSX(data, XLSXOptions{SheetName: "points"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, tbl.Columns)

	_, err = ReadXLSX(data, XLSXOptions{SheetName: "missing"})
	assert.Error(t, err)
}

func TestReadXLSX_SheetIndexOutOfRange(t *testing.T) {
	data := createTestXLSX(t, map[string][][]string{"s": {{"a"}}})
	_, err := ReadXLSX(data, XLSXOptions{SheetIndex: 3})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of range")
}

func TestReadXLSX_NotAWorkbook(t *testing.T) {
	assert.False(t, IsXLSX([]byte("id;lat;lon\n")))
	_, err := ReadXLSX([]byte("id;lat;lon\n"), XLSXOptions{})
	assert.Error(t, err)
}

func TestNormalize(t *testing.T) {
	data := createTestXLSX(t, map[string][][]string{
		"Feuil1": {{"id", "lat"}, {"1", "48.85"}},
	})
	out, err := Normalize(data, ';')
	require.NoError(t, err)
	assert.Equal(t, "id;lat\n1;48.85\n", string(out))

	out, err = Normalize([]byte("\xef\xbb\xbfid;lat\n"), ';')
	require.NoError(t, err)
	assert.Equal(t, "id;lat\n", string(out))
}
