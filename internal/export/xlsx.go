package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

const (
	turnsSheet   = "Conversation"
	summarySheet = "Summary"
)

// WriteXLSX writes the transcript as a workbook with one row per turn and
// a summary sheet.
func WriteXLSX(w io.Writer, tr Transcript) (err error) {
	f := excelize.NewFile()
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = cerr
		}
	}()

	index, err := f.NewSheet(turnsSheet)
	if err != nil {
		return fmt.Errorf("creating sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("removing default sheet: %w", err)
	}

	headers := []string{"Timestamp", "Question", "Answer"}
	for i, h := range headers {
		if err := setCell(f, turnsSheet, i+1, 1, h); err != nil {
			return err
		}
	}
	for i, t := range tr.Turns {
		row := i + 2
		values := []any{t.Timestamp.Format("2006-01-02 15:04:05"), t.Question, t.Answer}
		for col, v := range values {
			if err := setCell(f, turnsSheet, col+1, row, v); err != nil {
				return err
			}
		}
	}
	if err := f.SetColWidth(turnsSheet, "A", "A", 20); err != nil {
		return err
	}
	if err := f.SetColWidth(turnsSheet, "B", "C", 60); err != nil {
		return err
	}

	if _, err := f.NewSheet(summarySheet); err != nil {
		return fmt.Errorf("creating summary sheet: %w", err)
	}
	summary := [][]any{
		{"Export Information", ""},
		{"Conversation", tr.Name},
		{"Export Date", tr.ExportedAt.Format("2006-01-02 15:04:05")},
		{"Total Turns", len(tr.Turns)},
	}
	for r, row := range summary {
		for c, v := range row {
			if err := setCell(f, summarySheet, c+1, r+1, v); err != nil {
				return err
			}
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}

func setCell(f *excelize.File, sheet string, col, row int, v any) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	return f.SetCellValue(sheet, cell, v)
}
