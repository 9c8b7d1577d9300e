package dataset

import (
	"encoding/json"
	"fmt"

	"loanaudit/domain/core"
)

// Dataset is an ordered, immutable table of loan applications. Every
// operation that changes cells returns a new Dataset.
type Dataset struct {
	columns []Column
	index   map[string]int
	rows    [][]Value
}

// Record is a single row keyed by column name.
type Record map[string]Value

// New builds a dataset from a schema and rows. Inputs are copied.
func New(columns []Column, rows [][]Value) (*Dataset, error) {
	index := make(map[string]int, len(columns))
	for i, c := range columns {
		if c.Name == "" {
			return nil, fmt.Errorf("column %d has no name", i)
		}
		if !c.Kind.Valid() {
			return nil, fmt.Errorf("column %q: unknown kind %q", c.Name, c.Kind)
		}
		if _, dup := index[c.Name]; dup {
			return nil, fmt.Errorf("%w: %s", core.ErrDuplicateColumn, c.Name)
		}
		index[c.Name] = i
	}

	copied := make([][]Value, len(rows))
	for i, r := range rows {
		if len(r) != len(columns) {
			return nil, fmt.Errorf("%w: row %d has %d cells, schema has %d", core.ErrSchemaMismatch, i, len(r), len(columns))
		}
		copied[i] = append([]Value(nil), r...)
	}

	return &Dataset{
		columns: append([]Column(nil), columns...),
		index:   index,
		rows:    copied,
	}, nil
}

// FromRecords builds a dataset from keyed records. Keys absent from a
// record become missing cells; keys outside the schema are ignored.
func FromRecords(columns []Column, records []Record) (*Dataset, error) {
	rows := make([][]Value, len(records))
	for i, rec := range records {
		row := make([]Value, len(columns))
		for j, c := range columns {
			if v, ok := rec[c.Name]; ok {
				row[j] = v
			} else {
				row[j] = Missing()
			}
		}
		rows[i] = row
	}
	return New(columns, rows)
}

// Columns returns the schema in column order.
func (d *Dataset) Columns() []Column {
	return append([]Column(nil), d.columns...)
}

func (d *Dataset) ColumnNames() []string {
	names := make([]string, len(d.columns))
	for i, c := range d.columns {
		names[i] = c.Name
	}
	return names
}

// Column looks up a column by name.
func (d *Dataset) Column(name string) (Column, bool) {
	i, ok := d.index[name]
	if !ok {
		return Column{}, false
	}
	return d.columns[i], true
}

func (d *Dataset) HasColumn(name string) bool {
	_, ok := d.index[name]
	return ok
}

// Len is the number of rows.
func (d *Dataset) Len() int { return len(d.rows) }

// Width is the number of columns.
func (d *Dataset) Width() int { return len(d.columns) }

// Value returns one cell. Absent columns read as missing.
func (d *Dataset) Value(row int, column string) Value {
	i, ok := d.index[column]
	if !ok || row < 0 || row >= len(d.rows) {
		return Missing()
	}
	return d.rows[row][i]
}

// Row returns a copy of one row in column order.
func (d *Dataset) Row(i int) []Value {
	return append([]Value(nil), d.rows[i]...)
}

// Record returns one row keyed by column name.
func (d *Dataset) Record(i int) Record {
	rec := make(Record, len(d.columns))
	for j, c := range d.columns {
		rec[c.Name] = d.rows[i][j]
	}
	return rec
}

func (d *Dataset) Records() []Record {
	out := make([]Record, len(d.rows))
	for i := range d.rows {
		out[i] = d.Record(i)
	}
	return out
}

// ColumnValues returns every cell of a column, missing included.
func (d *Dataset) ColumnValues(name string) ([]Value, error) {
	i, ok := d.index[name]
	if !ok {
		return nil, core.NewColumnNotFoundError(name)
	}
	out := make([]Value, len(d.rows))
	for r, row := range d.rows {
		out[r] = row[i]
	}
	return out, nil
}

// NumericValues returns the non-missing numeric cells of a column in row order.
func (d *Dataset) NumericValues(name string) []float64 {
	i, ok := d.index[name]
	if !ok {
		return nil
	}
	out := make([]float64, 0, len(d.rows))
	for _, row := range d.rows {
		if f, ok := row[i].Float64(); ok {
			out = append(out, f)
		}
	}
	return out
}

// MissingCount counts missing cells in a column.
func (d *Dataset) MissingCount(name string) int {
	i, ok := d.index[name]
	if !ok {
		return 0
	}
	n := 0
	for _, row := range d.rows {
		if row[i].IsMissing() {
			n++
		}
	}
	return n
}

// Clone returns a deep copy.
func (d *Dataset) Clone() *Dataset {
	out, _ := New(d.columns, d.rows)
	return out
}

// Filter keeps the rows for which keep returns true, preserving order.
func (d *Dataset) Filter(keep func(row int) bool) *Dataset {
	rows := make([][]Value, 0, len(d.rows))
	for i, r := range d.rows {
		if keep(i) {
			rows = append(rows, append([]Value(nil), r...))
		}
	}
	return &Dataset{columns: d.Columns(), index: d.cloneIndex(), rows: rows}
}

// Transform returns a new dataset with fn applied to every cell of one column.
func (d *Dataset) Transform(column string, fn func(row int, v Value) Value) (*Dataset, error) {
	ci, ok := d.index[column]
	if !ok {
		return nil, core.NewColumnNotFoundError(column)
	}
	out := d.Clone()
	for r := range out.rows {
		out.rows[r][ci] = fn(r, out.rows[r][ci])
	}
	return out, nil
}

// MapRows builds a dataset with the given schema by passing a copy of each
// source row, in order, to fn. fn must return a row matching columns.
func (d *Dataset) MapRows(columns []Column, fn func(row int, values []Value) ([]Value, error)) (*Dataset, error) {
	rows := make([][]Value, len(d.rows))
	for i, r := range d.rows {
		mapped, err := fn(i, append([]Value(nil), r...))
		if err != nil {
			return nil, err
		}
		rows[i] = mapped
	}
	return New(columns, rows)
}

// Fingerprint hashes the schema and cells.
func (d *Dataset) Fingerprint() core.Hash {
	data, _ := json.Marshal(d)
	return core.NewHash(data)
}

func (d *Dataset) cloneIndex() map[string]int {
	idx := make(map[string]int, len(d.index))
	for k, v := range d.index {
		idx[k] = v
	}
	return idx
}

type datasetJSON struct {
	Columns []Column  `json:"columns"`
	Rows    [][]Value `json:"rows"`
}

// MarshalJSON encodes the dataset as its schema plus positional rows.
func (d *Dataset) MarshalJSON() ([]byte, error) {
	rows := d.rows
	if rows == nil {
		rows = [][]Value{}
	}
	return json.Marshal(datasetJSON{Columns: d.columns, Rows: rows})
}

func (d *Dataset) UnmarshalJSON(data []byte) error {
	var raw datasetJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	built, err := New(raw.Columns, raw.Rows)
	if err != nil {
		return err
	}
	*d = *built
	return nil
}
