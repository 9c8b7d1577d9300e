package excel

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"loanaudit/adapters/coercer"
	"loanaudit/domain/dataset"
	apperrors "loanaudit/internal/errors"
)

// DataReader reads loan application files (xlsx or csv) into datasets
type DataReader struct {
	config  ReaderConfig
	coercer *coercer.TypeCoercer
	logger  *zap.Logger
}

// NewDataReader creates a reader. A nil logger discards output.
func NewDataReader(config ReaderConfig, logger *zap.Logger) *DataReader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DataReader{
		config:  config,
		coercer: coercer.NewTypeCoercer(config.CoercionConfig),
		logger:  logger.Named("reader"),
	}
}

// ReadFile reads the file at path, choosing the format from its extension
func (r *DataReader) ReadFile(ctx context.Context, path string) (*dataset.Dataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, apperrors.InvalidInput(fmt.Sprintf("data file not found: %s", path))
	}

	var (
		table *RawTable
		err   error
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		table, err = r.readCSV(path)
	case ".xlsx", ".xlsm":
		table, err = r.readExcel(path)
	default:
		return nil, apperrors.InvalidInput(fmt.Sprintf("unsupported file type %q", ext))
	}
	if err != nil {
		return nil, err
	}
	return r.Build(table)
}

func (r *DataReader) readExcel(path string) (*RawTable, error) {
	start := time.Now()
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, apperrors.WithCode(apperrors.CodeInvalidInput, apperrors.Wrap(err, "failed to open Excel file"))
	}
	defer f.Close()

	sheet := r.config.Sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, apperrors.InvalidInput("workbook has no sheets")
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, apperrors.WithCode(apperrors.CodeInvalidInput, apperrors.Wrapf(err, "failed to read sheet %q", sheet))
	}
	r.logger.Debug("sheet read",
		zap.String("file", path),
		zap.String("sheet", sheet),
		zap.Int("rows", len(rows)),
		zap.Duration("elapsed", time.Since(start)))

	return splitHeader(rows)
}

func (r *DataReader) readCSV(path string) (*RawTable, error) {
	start := time.Now()
	file, err := os.Open(path)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to open CSV file")
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, apperrors.WithCode(apperrors.CodeInvalidInput, apperrors.Wrap(err, "failed to read CSV file"))
	}
	r.logger.Debug("csv read",
		zap.String("file", path),
		zap.Int("rows", len(rows)),
		zap.Duration("elapsed", time.Since(start)))

	return splitHeader(rows)
}

func splitHeader(rows [][]string) (*RawTable, error) {
	if len(rows) == 0 {
		return nil, apperrors.InvalidInput("file has no header row")
	}
	headers := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		headers[i] = strings.TrimSpace(h)
		if headers[i] == "" {
			headers[i] = fmt.Sprintf("column_%d", i+1)
		}
	}

	body := make([][]string, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if blankRow(row) {
			continue
		}
		body = append(body, row)
	}
	return &RawTable{Headers: headers, Rows: body}, nil
}

func blankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// Build coerces a raw table into a dataset. Loan schema columns keep their
// declared kinds; other columns are inferred from their cells.
func (r *DataReader) Build(table *RawTable) (*dataset.Dataset, error) {
	columns := make([]dataset.Column, len(table.Headers))
	for i, name := range table.Headers {
		columns[i] = dataset.Column{Name: name, Kind: r.coercer.KindFor(name, table.Column(i))}
	}

	unparsed := 0
	rows := make([][]dataset.Value, len(table.Rows))
	for ri, raw := range table.Rows {
		row := make([]dataset.Value, len(columns))
		for ci, col := range columns {
			cell := ""
			if ci < len(raw) {
				cell = raw[ci]
			}
			v := r.coercer.CoerceValue(cell, col.Kind)
			if col.Kind.IsNumeric() && v.IsString() {
				unparsed++
			}
			row[ci] = v
		}
		rows[ri] = row
	}
	if unparsed > 0 {
		r.logger.Warn("numeric cells left as text", zap.Int("cells", unparsed))
	}

	ds, err := dataset.New(columns, rows)
	if err != nil {
		return nil, apperrors.WithCode(apperrors.CodeInvalidInput, err)
	}
	r.logger.Info("dataset loaded",
		zap.Int("rows", ds.Len()),
		zap.Int("columns", ds.Width()))
	return ds, nil
}
