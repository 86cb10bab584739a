package tabular

import (
	"bytes"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/htmlindex"
)

// FallbackCharset decodes input that is not valid UTF-8. Spreadsheet
// exports from French locales are usually windows-1252.
const FallbackCharset = "windows-1252"

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Decode returns data as UTF-8 text without a byte order mark.
func Decode(data []byte) ([]byte, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if utf8.Valid(data) {
		return data, nil
	}

	enc, err := htmlindex.Get(FallbackCharset)
	if err != nil {
		return nil, eris.Wrapf(err, "tabular: unsupported charset %q", FallbackCharset)
	}
	out, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return nil, eris.Wrapf(err, "tabular: decode %s", FallbackCharset)
	}
	return out, nil
}
