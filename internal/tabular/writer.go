package tabular

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

// Workbook accumulates sheets and renders an xlsx document.
type Workbook struct {
	f           *excelize.File
	headerStyle int
	sheets      int
}

func NewWorkbook() (*Workbook, error) {
	f := excelize.NewFile()
	style, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#D9E1F2"}, Pattern: 1},
	})
	if err != nil {
		f.Close()
		return nil, err
	}
	return &Workbook{f: f, headerStyle: style}, nil
}

// AddSheet writes a header row and data rows into a new sheet. The first call
// renames the default sheet.
func (w *Workbook) AddSheet(name string, columns []string, rows [][]any) error {
	if w.sheets == 0 {
		if err := w.f.SetSheetName(w.f.GetSheetName(0), name); err != nil {
			return err
		}
	} else if _, err := w.f.NewSheet(name); err != nil {
		return err
	}
	w.sheets++

	header := make([]any, len(columns))
	for i, c := range columns {
		header[i] = c
	}
	if err := w.f.SetSheetRow(name, "A1", &header); err != nil {
		return err
	}
	if len(columns) > 0 {
		last, err := excelize.CoordinatesToCellName(len(columns), 1)
		if err != nil {
			return err
		}
		if err := w.f.SetCellStyle(name, "A1", last, w.headerStyle); err != nil {
			return err
		}
	}
	for i := range rows {
		cell := fmt.Sprintf("A%d", i+2)
		if err := w.f.SetSheetRow(name, cell, &rows[i]); err != nil {
			return err
		}
	}
	return nil
}

// Bytes renders the workbook and releases it.
func (w *Workbook) Bytes() ([]byte, error) {
	defer w.f.Close()
	buf, err := w.f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteXLSX renders a single-sheet workbook from string cells.
func WriteXLSX(sheet string, columns []string, rows [][]string) ([]byte, error) {
	wb, err := NewWorkbook()
	if err != nil {
		return nil, err
	}
	data := make([][]any, len(rows))
	for i, r := range rows {
		data[i] = make([]any, len(r))
		for j, v := range r {
			data[i][j] = v
		}
	}
	if err := wb.AddSheet(sheet, columns, data); err != nil {
		wb.f.Close()
		return nil, err
	}
	return wb.Bytes()
}
