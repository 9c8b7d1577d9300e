package excel

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"loanaudit/domain/dataset"
	apperrors "loanaudit/internal/errors"
)

// DefaultSheet is the sheet name used when writing workbooks
const DefaultSheet = "Sheet1"

// WriteFile writes a dataset as xlsx or csv depending on the extension of
// path. Missing cells are written empty.
func WriteFile(ds *dataset.Dataset, path string) error {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		return writeCSV(ds, path)
	case ".xlsx":
		return writeExcel(ds, path)
	default:
		return apperrors.InvalidInput(fmt.Sprintf("unsupported file type %q", ext))
	}
}

func writeExcel(ds *dataset.Dataset, path string) error {
	f := excelize.NewFile()
	defer f.Close()

	header := make([]interface{}, ds.Width())
	for i, name := range ds.ColumnNames() {
		header[i] = name
	}
	if err := f.SetSheetRow(DefaultSheet, "A1", &header); err != nil {
		return apperrors.Wrap(err, "failed to write header row")
	}

	for r := 0; r < ds.Len(); r++ {
		values := ds.Row(r)
		cells := make([]interface{}, len(values))
		for i, v := range values {
			switch {
			case v.IsMissing():
				cells[i] = nil
			case v.IsNumeric():
				cells[i] = v.NumericVal
			default:
				cells[i] = v.StringVal
			}
		}
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return apperrors.Wrap(err, "invalid cell reference")
		}
		if err := f.SetSheetRow(DefaultSheet, cell, &cells); err != nil {
			return apperrors.Wrapf(err, "failed to write row %d", r+1)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return apperrors.Wrap(err, "failed to save workbook")
	}
	return nil
}

func writeCSV(ds *dataset.Dataset, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return apperrors.Wrap(err, "failed to create CSV file")
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.Write(ds.ColumnNames()); err != nil {
		return apperrors.Wrap(err, "failed to write header row")
	}
	for r := 0; r < ds.Len(); r++ {
		values := ds.Row(r)
		record := make([]string, len(values))
		for i, v := range values {
			record[i] = v.Text()
		}
		if err := w.Write(record); err != nil {
			return apperrors.Wrapf(err, "failed to write row %d", r+1)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return apperrors.Wrap(err, "failed to flush CSV file")
	}
	return nil
}
