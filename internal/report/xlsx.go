// Package report exports a migration report to files for offline review.
package report

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/creibaud/sqlmorpher/internal/models"
)

// WriteXLSX writes the report as a workbook with a summary sheet and an
// errors sheet.
func WriteXLSX(rep *models.Report, path string) error {
	f := excelize.NewFile()
	defer f.Close()

	const summary = "Summary"
	if err := f.SetSheetName("Sheet1", summary); err != nil {
		return err
	}
	headers := []any{"Migration", "Status", "Rows Read", "Rows Transformed",
		"Rows Filtered", "Rows Written", "Errors", "Fatal Error"}
	if err := setRow(f, summary, 1, headers); err != nil {
		return err
	}
	for i, res := range rep.Results {
		fatal := ""
		if res.Err != nil {
			fatal = res.Err.Error()
		}
		row := []any{res.Name, string(res.Status), res.RowsRead, res.RowsTransformed,
			res.RowsFiltered, res.RowsWritten, len(res.Errors), fatal}
		if err := setRow(f, summary, i+2, row); err != nil {
			return err
		}
	}

	const errSheet = "Errors"
	if _, err := f.NewSheet(errSheet); err != nil {
		return err
	}
	if err := setRow(f, errSheet, 1, []any{"Migration", "Stage", "Row Key", "Message"}); err != nil {
		return err
	}
	line := 2
	for _, res := range rep.Results {
		for _, rowErr := range res.Errors {
			values := []any{res.Name, string(rowErr.Stage), fmt.Sprintf("%v", rowErr.RowKey), rowErr.Message}
			if err := setRow(f, errSheet, line, values); err != nil {
				return err
			}
			line++
		}
	}

	return f.SaveAs(path)
}

func setRow(f *excelize.File, sheet string, line int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, line)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}
