package excel

import (
	"loanaudit/adapters/coercer"
)

// ReaderConfig holds configuration for spreadsheet ingestion
type ReaderConfig struct {
	Sheet          string                 `json:"sheet"` // empty means the first sheet
	CoercionConfig coercer.CoercionConfig `json:"coercion_config"`
}

// DefaultReaderConfig returns sensible defaults for loan spreadsheets
func DefaultReaderConfig() ReaderConfig {
	return ReaderConfig{
		CoercionConfig: coercer.DefaultCoercionConfig(),
	}
}
