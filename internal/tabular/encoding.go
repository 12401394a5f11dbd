package tabular

import (
	"bufio"
	"bytes"
	"io"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// encodingSampleSize is how many leading bytes are inspected when
// detecting a file's encoding. 100 KB is enough to see non-ASCII text
// in any real disclosure file without reading the whole thing twice.
const encodingSampleSize = 100 * 1024

// Encoding identifies the detected character encoding of a raw file.
type Encoding int

const (
	EncodingUTF8 Encoding = iota
	EncodingUTF8BOM
	EncodingUTF16LE
	EncodingUTF16BE
	EncodingLatin1
)

func (e Encoding) String() string {
	switch e {
	case EncodingUTF8BOM:
		return "utf-8-sig"
	case EncodingUTF16LE:
		return "utf-16le"
	case EncodingUTF16BE:
		return "utf-16be"
	case EncodingLatin1:
		return "iso-8859-1"
	default:
		return "utf-8"
	}
}

// DetectEncoding inspects a sample of the file's leading bytes.
// BOMs win outright; otherwise the sample is checked for UTF-8
// validity, and invalid sequences fall back to ISO-8859-1, which is
// what the regulator's older filings actually use.
func DetectEncoding(sample []byte) Encoding {
	switch {
	case bytes.HasPrefix(sample, []byte{0xEF, 0xBB, 0xBF}):
		return EncodingUTF8BOM
	case bytes.HasPrefix(sample, []byte{0xFF, 0xFE}):
		return EncodingUTF16LE
	case bytes.HasPrefix(sample, []byte{0xFE, 0xFF}):
		return EncodingUTF16BE
	}

	if utf8.Valid(sample) {
		return EncodingUTF8
	}
	// A multi-byte sequence cut at the sample boundary can fail
	// validation on otherwise clean UTF-8. Only a full sample can be
	// truncated; a short one was read to EOF and its invalid bytes are
	// real Latin-1.
	if len(sample) == encodingSampleSize {
		for i := 1; i <= 3 && i < len(sample); i++ {
			if utf8.Valid(sample[:len(sample)-i]) {
				return EncodingUTF8
			}
		}
	}
	return EncodingLatin1
}

// DecodeReader wraps r so that reads yield UTF-8 regardless of the
// file's on-disk encoding. The detected encoding is returned alongside
// for logging.
func DecodeReader(r io.Reader) (io.Reader, Encoding, error) {
	br := bufio.NewReaderSize(r, encodingSampleSize)
	sample, err := br.Peek(encodingSampleSize)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return nil, EncodingUTF8, err
	}

	enc := DetectEncoding(sample)
	switch enc {
	case EncodingUTF8BOM:
		return transform.NewReader(br, unicode.UTF8BOM.NewDecoder()), enc, nil
	case EncodingUTF16LE:
		dec := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder()
		return transform.NewReader(br, dec), enc, nil
	case EncodingUTF16BE:
		dec := unicode.UTF16(unicode.BigEndian, unicode.UseBOM).NewDecoder()
		return transform.NewReader(br, dec), enc, nil
	case EncodingLatin1:
		return transform.NewReader(br, charmap.ISO8859_1.NewDecoder()), enc, nil
	default:
		return br, EncodingUTF8, nil
	}
}
