package shift

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

const sheetName = "Timesheet"

// WriteCSV writes the header row followed by one row per shift. Every data
// field is double-quoted with embedded quotes doubled; rows end in \n.
func (t *Timesheet) WriteCSV(w io.Writer) error {
	bw := bufio.NewWriter(w)
	bw.WriteString(strings.Join(TimesheetColumns, ","))
	for _, row := range t.Rows {
		bw.WriteByte('\n')
		for i, v := range row.Values() {
			if i > 0 {
				bw.WriteByte(',')
			}
			bw.WriteString(quoteField(v))
		}
	}
	return bw.Flush()
}

// WriteXLSX writes the same rows as a single-sheet workbook.
func (t *Timesheet) WriteXLSX(w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("naming sheet: %w", err)
	}

	header := make([]interface{}, len(TimesheetColumns))
	for i, c := range TimesheetColumns {
		header[i] = c
	}
	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for i, row := range t.Rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := []interface{}{
			row.Worker, row.Date, row.ClockIn, row.ClockOut, row.Hours,
			row.UnitsProduced, row.LogEntries, row.Notes,
		}
		if err := f.SetSheetRow(sheetName, cell, &values); err != nil {
			return fmt.Errorf("writing row %d: %w", i+1, err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}

func quoteField(v string) string {
	return `"` + strings.ReplaceAll(v, `"`, `""`) + `"`
}
