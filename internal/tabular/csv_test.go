package tabular

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/cadastre-cli/internal/model"
)

func TestParseDelimiter(t *testing.T) {
	tests := []struct {
		in      string
		want    rune
		wantErr bool
	}{
		{"", ';', false},
		{";", ';', false},
		{",", ',', false},
		{"|", '|', false},
		{"tab", '\t', false},
		{`\t`, '\t', false},
		{";;", 0, true},
		{`"`, 0, true},
		{"\n", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseDelimiter(tt.in)
		if tt.wantErr {
			assert.Error(t, err, "input %q", tt.in)
			continue
		}
		require.NoError(t, err, "input %q", tt.in)
		assert.Equal(t, tt.want, got, "input %q", tt.in)
	}
}

func TestReadTable_Basic(t *testing.T) {
	tbl, err := ReadTable(strings.NewReader("id;lat;lon\n1;48.85;2.35\n2;;2.35\n"), ';')
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "lat", "lon"}, tbl.Columns)
	require.Len(t, tbl.Rows, 2)
	assert.Equal(t, model.Row{"1", "48.85", "2.35"}, tbl.Rows[0])
	assert.Equal(t, model.Row{"2", "", "2.35"}, tbl.Rows[1])
}

func TestReadTable_PadsShortRows(t *testing.T) {
	tbl, err := ReadTable(strings.NewReader("a,b,c\n1\n"), ',')
	require.NoError(t, err)
	assert.Equal(t, model.Row{"1", "", ""}, tbl.Rows[0])
}

func TestReadTable_RejectsLongRows(t *testing.T) {
	_, err := ReadTable(strings.NewReader("a,b\n1,2,3\n"), ',')
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 2 has 3 fields")
}

func TestReadTable_Empty(t *testing.T) {
	_, err := ReadTable(strings.NewReader(""), ';')
	require.Error(t, err)
}

func TestReadTable_HeaderOnly(t *testing.T) {
	tbl, err := ReadTable(strings.NewReader("id;lat;lon\n"), ';')
	require.NoError(t, err)
	assert.Equal(t, 0, tbl.Len())
}

func TestReadHeader(t *testing.T) {
	header, err := ReadHeader(strings.NewReader("x|y\n1|2\n"), '|')
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y"}, header)

	_, err = ReadHeader(strings.NewReader(""), '|')
	assert.Error(t, err)
}

func TestWriteTable_RoundTrip(t *testing.T) {
	in := &model.Table{
		Columns: []string{"id", "commune", "note"},
		Rows: []model.Row{
			{"1", "Saint-Étienne", "contains;delimiter"},
			{"2", "Brès", `quoted "value"`},
			{"3", "", ""},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteTable(&buf, in, ';'))

	out, err := ReadTable(&buf, ';')
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestMarshalUnmarshal(t *testing.T) {
	in := &model.Table{Columns: []string{"a", "b"}, Rows: []model.Row{{"1", "2"}}}
	data, err := Marshal(in, '\t')
	require.NoError(t, err)
	assert.Equal(t, "a\tb\n1\t2\n", string(data))

	out, err := Unmarshal(data, '\t')
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestDecode_StripsBOM(t *testing.T) {
	out, err := Decode([]byte("\xEF\xBB\xBFid;lat\n"))
	require.NoError(t, err)
	assert.Equal(t, "id;lat\n", string(out))
}

func TestDecode_Windows1252Fallback(t *testing.T) {
	out, err := Decode([]byte("id;commune\n1;Br\xe8s\n"))
	require.NoError(t, err)
	assert.Equal(t, "id;commune\n1;Brès\n", string(out))
}

func TestUnmarshal_Windows1252(t *testing.T) {
	tbl, err := Unmarshal([]byte("id;commune\n1;Ch\xe2teau\n"), ';')
	require.NoError(t, err)
	assert.Equal(t, "Château", tbl.Rows[0][1])
}
