package excel

// RawTable is a sheet as read from disk: one header row and the string cells beneath it
type RawTable struct {
	Headers []string
	Rows    [][]string
}

// Column returns the raw cells of column i, padding short rows with ""
func (t *RawTable) Column(i int) []string {
	out := make([]string, len(t.Rows))
	for r, row := range t.Rows {
		if i < len(row) {
			out[r] = row[i]
		}
	}
	return out
}
