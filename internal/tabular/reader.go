package tabular

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
)

var (
	ErrEmpty       = errors.New("file contains no data rows")
	ErrUnsupported = errors.New("unsupported or unreadable tabular file")
)

// Options controls how the raw grid becomes a table.
type Options struct {
	// SkipHeadRows drops banner rows above the header row.
	SkipHeadRows int
	// SkipTailRows drops footer rows (totals) after trailing blanks are trimmed.
	SkipTailRows int
	// Sheet selects a workbook sheet by name; the first sheet when empty.
	Sheet string
}

// ReadFile loads a table from disk.
func ReadFile(path string, opts Options) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Read(filepath.Base(path), data, opts)
}

// Read parses xlsx, xls or csv content. The extension picks the parser; when it
// is missing or unknown each parser is tried in turn.
func Read(name string, data []byte, opts Options) (*Table, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmpty
	}

	var (
		grid [][]string
		err  error
	)
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xlsm":
		grid, err = readXLSX(data, opts.Sheet)
	case ".xls":
		grid, err = readXLS(data)
	case ".csv", ".txt":
		grid, err = readCSV(data)
	default:
		grid, err = readXLSX(data, opts.Sheet)
		if err != nil {
			grid, err = readXLS(data)
		}
		if err != nil {
			grid, err = readCSV(data)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnsupported, name, err)
	}
	return fromGrid(grid, opts)
}

func readXLSX(data []byte, sheet string) ([][]string, error) {
	xl, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer xl.Close()

	sheets := xl.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("no sheets found")
	}
	sheetName := sheets[0]
	if sheet != "" {
		sheetName = sheet
	}
	return xl.GetRows(sheetName)
}

func readXLS(data []byte) ([][]string, error) {
	book, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, err
	}
	sheet := book.GetSheet(0)
	if sheet == nil {
		return nil, errors.New("no sheets found")
	}

	grid := make([][]string, 0, int(sheet.MaxRow)+1)
	for i := 0; i <= int(sheet.MaxRow); i++ {
		row := sheet.Row(i)
		if row == nil {
			grid = append(grid, nil)
			continue
		}
		cells := make([]string, row.LastCol())
		for j := row.FirstCol(); j < row.LastCol(); j++ {
			cells[j] = row.Col(j)
		}
		grid = append(grid, cells)
	}
	return grid, nil
}

func readCSV(data []byte) ([][]string, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true
	return r.ReadAll()
}

func fromGrid(grid [][]string, opts Options) (*Table, error) {
	for len(grid) > 0 && blankLine(grid[len(grid)-1]) {
		grid = grid[:len(grid)-1]
	}
	if opts.SkipHeadRows >= len(grid) {
		return nil, ErrEmpty
	}
	grid = grid[opts.SkipHeadRows:]
	if opts.SkipTailRows > 0 {
		if opts.SkipTailRows >= len(grid) {
			grid = grid[:1]
		} else {
			grid = grid[:len(grid)-opts.SkipTailRows]
		}
	}

	header := headerNames(grid[0])
	if len(header) == 0 {
		return nil, ErrEmpty
	}

	t := &Table{Columns: header}
	for _, line := range grid[1:] {
		if blankLine(line) {
			continue
		}
		row := make(Row, len(header))
		for j, col := range header {
			if j < len(line) {
				row[col] = line[j]
			} else {
				row[col] = ""
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// headerNames trims header cells, names blank ones "Unnamed: N" and suffixes
// repeats with ".1", ".2" so every column stays addressable.
func headerNames(cells []string) []string {
	last := len(cells)
	for last > 0 && strings.TrimSpace(cells[last-1]) == "" {
		last--
	}
	seen := make(map[string]int)
	out := make([]string, 0, last)
	for i := 0; i < last; i++ {
		name := strings.TrimSpace(cells[i])
		if name == "" {
			name = fmt.Sprintf("Unnamed: %d", i)
		}
		if n, dup := seen[name]; dup {
			seen[name] = n + 1
			name = fmt.Sprintf("%s.%d", name, n+1)
		} else {
			seen[name] = 0
		}
		out = append(out, name)
	}
	return out
}

func blankLine(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
