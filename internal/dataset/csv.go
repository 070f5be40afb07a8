package dataset

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

type csvLoader struct{}

func (csvLoader) CanLoad(path string) bool {
	// Plain text fallback: anything the other loaders reject is tried as CSV.
	return true
}

var sniffOrder = []rune{',', ';', '\t', '|'}

func (csvLoader) Load(ctx context.Context, path string, opt LoadOptions) (*Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Path: path, Op: "open csv", Err: err}
	}
	text, enc, err := decodeText(data, opt.Encoding)
	if err != nil {
		return nil, &LoadError{Path: path, Op: "decode csv", Err: err}
	}
	delim := opt.Delimiter
	if delim == 0 {
		delim = sniffDelimiter(path, text)
	}

	r := newCSVReader(text, delim)
	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &LoadError{Path: path, Op: "read header", Err: ErrEmpty}
		}
		return nil, &LoadError{Path: path, Op: "read header", Err: err}
	}
	b := NewBuilder(header)
	maxRows := opt.MaxRows
	if maxRows <= 0 {
		maxRows = math.MaxInt
	}
	total := 0
	for {
		rec, err := r.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, &LoadError{Path: path, Op: fmt.Sprintf("read row %d", total+1), Err: err}
		}
		total++
		if total%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if b.Rows() >= maxRows {
			continue
		}
		b.Append(rec)
	}
	ds, err := b.Build(ctx, "", opt.ParseOptions)
	if err != nil {
		return nil, err
	}
	ds.Source.Format = "csv"
	ds.Source.Encoding = enc
	ds.Source.Delimiter = delimiterName(delim)
	if b.Rows() < total {
		ds.Notes = append(ds.Notes, truncationNote(b.Rows(), total))
	}
	return ds, nil
}

func newCSVReader(text string, delim rune) *csv.Reader {
	r := csv.NewReader(strings.NewReader(text))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	r.LazyQuotes = true
	r.Comma = delim
	return r
}

// sniffDelimiter keeps .tsv files on tabs and otherwise picks the first
// candidate that splits the header line into more than one field.
func sniffDelimiter(path, text string) rune {
	if strings.HasSuffix(strings.ToLower(path), ".tsv") {
		return '\t'
	}
	for _, d := range sniffOrder {
		rec, err := newCSVReader(text, d).Read()
		if err == nil && len(rec) > 1 {
			return d
		}
	}
	return ','
}

// decodeText returns the file as UTF-8. Valid UTF-8 is used as is; other
// input is read as Windows-1252 when it uses that code page's 0x80-0x9F
// printable range, and as Latin-1 otherwise.
func decodeText(data []byte, forced string) (string, string, error) {
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})
	var dec *encoding.Decoder
	name := strings.ToLower(strings.TrimSpace(forced))
	switch name {
	case "utf-8", "utf8":
		if !utf8.Valid(data) {
			return "", "", fmt.Errorf("input is not valid utf-8")
		}
		return string(data), "utf-8", nil
	case "latin-1", "latin1", "iso-8859-1":
		dec = charmap.ISO8859_1.NewDecoder()
		name = "latin-1"
	case "windows-1252", "cp1252":
		dec = charmap.Windows1252.NewDecoder()
		name = "windows-1252"
	case "":
		if utf8.Valid(data) {
			return string(data), "utf-8", nil
		}
		dec = charmap.ISO8859_1.NewDecoder()
		name = "latin-1"
		for _, c := range data {
			if c >= 0x80 && c <= 0x9F {
				dec = charmap.Windows1252.NewDecoder()
				name = "windows-1252"
				break
			}
		}
	default:
		return "", "", fmt.Errorf("unsupported encoding %q", forced)
	}
	out, err := dec.Bytes(data)
	if err != nil {
		return "", "", fmt.Errorf("decode %s: %w", name, err)
	}
	return string(out), name, nil
}

func delimiterName(d rune) string {
	if d == '\t' {
		return "tab"
	}
	return string(d)
}
