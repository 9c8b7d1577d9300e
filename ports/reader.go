package ports

import (
	"context"

	"loanaudit/domain/dataset"
)

// DatasetReader loads a loan dataset from a file
type DatasetReader interface {
	ReadFile(ctx context.Context, path string) (*dataset.Dataset, error)
}
