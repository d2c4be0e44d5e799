// Package importer reads the spreadsheets uploaded by finance staff. Excel
// workbooks and CSV exports are both accepted; only the first worksheet of a
// workbook is read and its first row is the header.
package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/unicode/norm"

	"github.com/itopex/opex-backend/internal/apperr"
)

const maxUploadSize = 32 << 20

type Sheet struct {
	Header []string
	Rows   []Row
	index  map[string]int
}

// Row is one data line. Line is the 1-based line number in the source file.
type Row struct {
	Line  int
	cells []string
	sheet *Sheet
}

// FromRequest reads the multipart file field named field.
func FromRequest(r *http.Request, field string) (*Sheet, error) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		return nil, apperr.Validation("failed to parse multipart form: %v", err)
	}
	file, fh, err := r.FormFile(field)
	if err != nil {
		return nil, apperr.Validation("no file uploaded in field %q", field)
	}
	defer file.Close()

	return Read(file, fh.Filename)
}

// Read parses an upload, picking the format from the file extension.
func Read(r io.Reader, filename string) (*Sheet, error) {
	var (
		records [][]string
		err     error
	)
	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".csv":
		records, err = readCSV(r)
	case ".xlsx", ".xlsm", ".xls":
		records, err = readWorkbook(r)
	default:
		return nil, apperr.Validation("unsupported file type %q, expected .xlsx or .csv", ext)
	}
	if err != nil {
		return nil, apperr.Validation("file parsing failed: %v", err)
	}
	return newSheet(records)
}

func readCSV(r io.Reader) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	return cr.ReadAll()
}

func readWorkbook(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	return f.GetRows(sheet)
}

func newSheet(records [][]string) (*Sheet, error) {
	if len(records) == 0 {
		return nil, apperr.Validation("file is empty")
	}

	s := &Sheet{index: make(map[string]int)}
	for i, h := range records[0] {
		h = clean(h)
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		s.Header = append(s.Header, h)
		if _, dup := s.index[h]; !dup && h != "" {
			s.index[h] = i
		}
	}

	for i, rec := range records[1:] {
		row := Row{Line: i + 2, cells: rec, sheet: s}
		if row.Empty() {
			continue
		}
		s.Rows = append(s.Rows, row)
	}
	return s, nil
}

// clean trims a cell and normalizes it to NFC. Files saved on macOS carry
// decomposed Hangul that would otherwise not match header names.
func clean(v string) string {
	return strings.TrimSpace(norm.NFC.String(v))
}

func (s *Sheet) Has(col string) bool {
	_, ok := s.index[clean(col)]
	return ok
}

// Require fails with a validation error naming every missing column.
func (s *Sheet) Require(cols ...string) error {
	var missing []string
	for _, c := range cols {
		if !s.Has(c) {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return apperr.Validation("missing required columns: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Columns returns the header names accepted by match, in file order.
func (s *Sheet) Columns(match func(string) bool) []string {
	var out []string
	for _, h := range s.Header {
		if h != "" && match(h) {
			out = append(out, h)
		}
	}
	return out
}

// Get returns the cleaned cell of col, or "" when the column or cell is absent.
func (r Row) Get(col string) string {
	i, ok := r.sheet.index[clean(col)]
	if !ok || i >= len(r.cells) {
		return ""
	}
	return clean(r.cells[i])
}

func (r Row) Empty() bool {
	for _, c := range r.cells {
		if clean(c) != "" {
			return false
		}
	}
	return true
}

func (r Row) Amount(col string) (decimal.Decimal, error) {
	d, err := ParseAmount(r.Get(col))
	if err != nil {
		return decimal.Zero, apperr.ErrInvalidAmount.WithMessage("line %d, %s: %v", r.Line, col, err)
	}
	return d, nil
}

// Int parses col as an integer; blank cells yield 0.
func (r Row) Int(col string) (int, error) {
	v := r.Get(col)
	if v == "" {
		return 0, nil
	}
	d, err := ParseAmount(v)
	if err != nil {
		return 0, apperr.Validation("line %d, %s: %q is not a number", r.Line, col, v)
	}
	return int(d.IntPart()), nil
}

// ParseAmount reads a money cell such as "1,250,000", "₩ 3,000" or "1.2E6".
// Blank cells are zero and amounts are rounded to whole won.
func ParseAmount(v string) (decimal.Decimal, error) {
	v = strings.NewReplacer(",", "", "₩", "", " ", "", "\u00a0", "").Replace(strings.TrimSpace(v))
	if v == "" || v == "-" {
		return decimal.Zero, nil
	}
	neg := false
	if strings.HasPrefix(v, "(") && strings.HasSuffix(v, ")") {
		neg = true
		v = v[1 : len(v)-1]
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		if f, ferr := strconv.ParseFloat(v, 64); ferr == nil {
			d = decimal.NewFromFloat(f)
		} else {
			return decimal.Zero, fmt.Errorf("%q is not an amount", v)
		}
	}
	if neg {
		d = d.Neg()
	}
	return d.Round(0), nil
}
