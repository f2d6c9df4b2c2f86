package frame

import (
	"encoding/csv"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/tealeg/xlsx/v2"

	"github.com/YuminosukeSato/agriml/pkg/errors"
)

// naTokens are the cell values read as missing, matching the usual
// spreadsheet and dataframe conventions.
var naTokens = map[string]bool{
	"": true, "NA": true, "N/A": true, "n/a": true, "NaN": true, "nan": true, "-NaN": true,
	"null": true, "NULL": true, "None": true, "#N/A": true, "<NA>": true,
}

// IsNAToken reports whether a raw cell is read as missing.
func IsNAToken(s string) bool {
	return naTokens[strings.TrimSpace(s)]
}

// ReadCSV parses a CSV document with a header row.
func ReadCSV(r io.Reader) (*Frame, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "csv: read")
	}
	return fromRows(rows)
}

// ReadCSVFile opens path and parses it with ReadCSV.
func ReadCSVFile(path string) (*Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "csv: open %s", path)
	}
	defer f.Close()
	return ReadCSV(f)
}

// ReadXLSX reads the first sheet of an XLSX workbook; the first row is the header.
func ReadXLSX(path string) (*Frame, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "xlsx: open file")
	}
	if len(f.Sheets) == 0 {
		return nil, errors.Newf("xlsx: %s has no sheets", path)
	}

	sheet := f.Sheets[0]
	rows := make([][]string, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		if row == nil {
			continue
		}
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = cell.String()
		}
		rows = append(rows, cells)
	}
	return fromRows(rows)
}

// fromRows infers column kinds from string rows. A column is numeric when
// every present cell parses as a float.
func fromRows(rows [][]string) (*Frame, error) {
	if len(rows) == 0 {
		return nil, errors.WithStack(errors.ErrEmptyData)
	}
	header := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		header[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}
	body := rows[1:]

	cols := make([]*Column, 0, len(header))
	for j, name := range header {
		cells := make([]string, len(body))
		nulls := make([]bool, len(body))
		numeric := true
		nums := make([]float64, len(body))
		for i, row := range body {
			if j >= len(row) || IsNAToken(row[j]) {
				nulls[i] = true
				nums[i] = math.NaN()
				continue
			}
			cells[i] = strings.TrimSpace(row[j])
			if numeric {
				v, err := strconv.ParseFloat(cells[i], 64)
				if err != nil {
					numeric = false
					continue
				}
				nums[i] = v
			}
		}
		if numeric {
			cols = append(cols, NewNumeric(name, nums))
		} else {
			cols = append(cols, NewText(name, cells, nulls))
		}
	}
	return New(cols...)
}

// WriteCSV writes f with a header row. Missing values are written as empty cells.
func WriteCSV(w io.Writer, f *Frame) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(f.Names()); err != nil {
		return errors.Wrap(err, "csv: write header")
	}
	record := make([]string, f.NumCols())
	for i := 0; i < f.NumRows(); i++ {
		for j, c := range f.cols {
			s, _ := c.String(i)
			record[j] = s
		}
		if err := cw.Write(record); err != nil {
			return errors.Wrap(err, "csv: write row")
		}
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "csv: flush")
}
