package dashboard

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

const maxSheetName = 31

func cellName(col int, row int) (name string) {
	columnName, err := excelize.ColumnNumberToName(col)
	if err != nil {
		return
	}
	name, err = excelize.JoinCellName(columnName, row)
	if err != nil {
		return
	}
	return
}

// ExportXLSX writes a trend view as a workbook with one sheet: a time column
// followed by one column per channel. Gaps stay empty.
func ExportXLSX(w io.Writer, trend TrendView) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := sheetName(trend.Device)
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("name sheet: %w", err)
	}

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{
			Bold: true,
		},
	})

	row := 1
	col := 1
	_ = f.SetCellValue(sheet, cellName(col, row), "Time")
	for _, sv := range trend.Series {
		col++
		_ = f.SetCellValue(sheet, cellName(col, row), sv.AxisLabel)
	}
	_ = f.SetCellStyle(sheet, cellName(1, row), cellName(col, row), headerStyle)
	_ = f.SetColWidth(sheet, "A", "A", 18)

	for i, label := range trend.Labels {
		row++
		col = 1
		_ = f.SetCellValue(sheet, cellName(col, row), label)
		for _, sv := range trend.Series {
			col++
			if i < len(sv.Data) && sv.Data[i] != nil {
				_ = f.SetCellValue(sheet, cellName(col, row), *sv.Data[i])
			}
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// sheetName makes a device id usable as a sheet name.
func sheetName(device string) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			return '_'
		}
		return r
	}, strings.Trim(device, "'"))
	if name == "" {
		name = "readings"
	}
	if r := []rune(name); len(r) > maxSheetName {
		name = string(r[:maxSheetName])
	}
	return name
}
