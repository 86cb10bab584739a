package tabular

// Normalize returns raw as UTF-8 delimited text. Excel workbooks are
// converted (first sheet) using delim; text is decoded (see Decode).
func Normalize(raw []byte, delim rune) ([]byte, error) {
	if IsXLSX(raw) {
		t, err := ReadXLSX(raw, XLSXOptions{})
		if err != nil {
			return nil, err
		}
		return Marshal(t, delim)
	}
	return Decode(raw)
}
