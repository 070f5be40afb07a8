package dataset

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"math"
	"os"
	"path"
	"strings"
)

type xlsxLoader struct{}

func (xlsxLoader) CanLoad(p string) bool {
	return strings.HasSuffix(strings.ToLower(p), ".xlsx")
}

// Load reads one worksheet. The first row is the header; cell values are
// taken as displayed text (shared, inline or literal), so type inference is
// the same as for CSV sources.
func (xlsxLoader) Load(ctx context.Context, p string, opt LoadOptions) (*Dataset, error) {
	book, err := openWorkbook(p)
	if err != nil {
		return nil, &LoadError{Path: p, Op: "open xlsx", Err: err}
	}
	target, sheet, err := book.resolveSheet(opt.Sheet, opt.SheetIndex)
	if err != nil {
		return nil, &LoadError{Path: p, Op: "select sheet", Err: err}
	}
	data := book.file(target)
	if data == nil {
		return nil, &LoadError{Path: p, Op: "select sheet", Err: fmt.Errorf("worksheet part %s missing", target)}
	}
	rows := newSheetRowReader(data, book.shared)
	header, ok := rows.Next()
	if !ok || len(header) == 0 {
		return nil, &LoadError{Path: p, Op: "read header", Err: ErrEmpty}
	}
	b := NewBuilder(header)
	maxRows := opt.MaxRows
	if maxRows <= 0 {
		maxRows = math.MaxInt
	}
	total := 0
	for {
		row, ok := rows.Next()
		if !ok {
			break
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
		b.Append(row)
	}
	ds, err := b.Build(ctx, "", opt.ParseOptions)
	if err != nil {
		return nil, err
	}
	ds.Source.Format = "xlsx"
	ds.Source.Table = sheet
	if b.Rows() < total {
		ds.Notes = append(ds.Notes, truncationNote(b.Rows(), total))
	}
	return ds, nil
}

type workbook struct {
	zr     *zip.Reader
	sheets []wbSheet
	rels   map[string]string
	shared []string
}

type wbSheet struct {
	Name    string `xml:"name,attr"`
	SheetID int    `xml:"sheetId,attr"`
	RID     string `xml:"id,attr"`
}

func openWorkbook(p string) (*workbook, error) {
	b, err := os.ReadFile(p)
	if err != nil {
		return nil, err
	}
	zr, err := zip.NewReader(bytes.NewReader(b), int64(len(b)))
	if err != nil {
		return nil, err
	}
	wb := &workbook{zr: zr, rels: map[string]string{}}

	var doc struct {
		Sheets []wbSheet `xml:"sheets>sheet"`
	}
	if raw := wb.file("xl/workbook.xml"); raw != nil {
		if err := xml.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("parse workbook: %w", err)
		}
	}
	wb.sheets = doc.Sheets

	var rels struct {
		Items []struct {
			ID     string `xml:"Id,attr"`
			Target string `xml:"Target,attr"`
		} `xml:"Relationship"`
	}
	if raw := wb.file("xl/_rels/workbook.xml.rels"); raw != nil {
		if err := xml.Unmarshal(raw, &rels); err != nil {
			return nil, fmt.Errorf("parse relationships: %w", err)
		}
	}
	for _, r := range rels.Items {
		if r.ID != "" && r.Target != "" {
			wb.rels[r.ID] = r.Target
		}
	}

	var sst struct {
		Items []struct {
			T    string `xml:"t"`
			Runs []struct {
				T string `xml:"t"`
			} `xml:"r"`
		} `xml:"si"`
	}
	if raw := wb.file("xl/sharedStrings.xml"); raw != nil {
		if err := xml.Unmarshal(raw, &sst); err != nil {
			return nil, fmt.Errorf("parse shared strings: %w", err)
		}
	}
	for _, si := range sst.Items {
		if len(si.Runs) == 0 {
			wb.shared = append(wb.shared, si.T)
			continue
		}
		var sb strings.Builder
		sb.WriteString(si.T)
		for _, r := range si.Runs {
			sb.WriteString(r.T)
		}
		wb.shared = append(wb.shared, sb.String())
	}
	return wb, nil
}

func (wb *workbook) file(name string) []byte {
	for _, f := range wb.zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil
		}
		defer rc.Close()
		b, err := io.ReadAll(rc)
		if err != nil {
			return nil
		}
		return b
	}
	return nil
}

// resolveSheet maps a sheet name, or a 1-based index when name is empty,
// to its ZIP part path.
func (wb *workbook) resolveSheet(name string, index int) (part, sheet string, err error) {
	if name != "" {
		for _, s := range wb.sheets {
			if strings.EqualFold(s.Name, name) {
				if rel, ok := wb.rels[s.RID]; ok {
					return normalizeRelPath(rel), s.Name, nil
				}
			}
		}
		avail := make([]string, len(wb.sheets))
		for i, s := range wb.sheets {
			avail[i] = s.Name
		}
		return "", "", fmt.Errorf("sheet %q not found; available sheets: %s", name, strings.Join(avail, ", "))
	}
	if index <= 0 {
		index = 1
	}
	for _, s := range wb.sheets {
		if s.SheetID == index {
			if rel, ok := wb.rels[s.RID]; ok {
				return normalizeRelPath(rel), s.Name, nil
			}
		}
	}
	return path.Join("xl", "worksheets", fmt.Sprintf("sheet%d.xml", index)), fmt.Sprintf("sheet%d", index), nil
}

// sheetRowReader streams rows out of a worksheet part, placing each cell by
// its A1 reference so sparse rows keep their column positions.
type sheetRowReader struct {
	dec    *xml.Decoder
	shared []string
}

func newSheetRowReader(data []byte, shared []string) *sheetRowReader {
	return &sheetRowReader{dec: xml.NewDecoder(bytes.NewReader(data)), shared: shared}
}

func (r *sheetRowReader) Next() ([]string, bool) {
	var row []string
	inRow := false
	next := 0
	for {
		tok, err := r.dec.Token()
		if err != nil {
			return nil, false
		}
		switch se := tok.(type) {
		case xml.StartElement:
			switch {
			case se.Name.Local == "row":
				inRow, row, next = true, nil, 0
			case inRow && se.Name.Local == "c":
				var ref, typ string
				for _, a := range se.Attr {
					switch a.Name.Local {
					case "r":
						ref = a.Value
					case "t":
						typ = a.Value
					}
				}
				col := next
				if ref != "" {
					col = colIndexFromRef(ref)
				}
				next = col + 1
				for len(row) <= col {
					row = append(row, "")
				}
				row[col] = r.cellValue(typ)
			}
		case xml.EndElement:
			if se.Name.Local == "row" && inRow {
				return row, true
			}
		}
	}
}

// cellValue consumes tokens up to </c> and returns the cell's text.
func (r *sheetRowReader) cellValue(typ string) string {
	var val strings.Builder
	capture := false
	for {
		tok, err := r.dec.Token()
		if err != nil {
			break
		}
		switch se := tok.(type) {
		case xml.StartElement:
			if se.Name.Local == "v" || se.Name.Local == "t" {
				capture = true
			}
		case xml.EndElement:
			if se.Name.Local == "v" || se.Name.Local == "t" {
				capture = false
			}
			if se.Name.Local == "c" {
				return resolveCell(typ, val.String(), r.shared)
			}
		case xml.CharData:
			if capture {
				val.Write(se)
			}
		}
	}
	return resolveCell(typ, val.String(), r.shared)
}

func resolveCell(typ, v string, shared []string) string {
	switch typ {
	case "s":
		idx := atoiSafe(v)
		if idx >= 0 && idx < len(shared) {
			return shared[idx]
		}
		return ""
	case "b":
		if v == "1" {
			return "True"
		}
		return "False"
	case "e":
		return ""
	default:
		return v
	}
}

// colIndexFromRef turns "C12" into 2.
func colIndexFromRef(ref string) int {
	idx := 0
	for i := 0; i < len(ref); i++ {
		c := ref[i]
		switch {
		case c >= 'A' && c <= 'Z':
			idx = idx*26 + int(c-'A'+1)
		case c >= 'a' && c <= 'z':
			idx = idx*26 + int(c-'a'+1)
		default:
			return idx - 1
		}
	}
	return idx - 1
}

func atoiSafe(s string) int {
	n := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			break
		}
		n = n*10 + int(c-'0')
	}
	return n
}

// normalizeRelPath converts relationship targets ("/xl/worksheets/a.xml",
// "worksheets/a.xml") into ZIP entry names.
func normalizeRelPath(rel string) string {
	rel = strings.TrimPrefix(rel, "/")
	if strings.HasPrefix(rel, "xl/") {
		return rel
	}
	return path.Join("xl", rel)
}
