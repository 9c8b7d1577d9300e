package ports

import (
	"context"

	"loanaudit/domain/provenance"
)

// ProvenanceStore is an append-only provenance ledger. Entries are returned
// in append order and are never updated or removed.
type ProvenanceStore interface {
	Append(ctx context.Context, entry provenance.Entry) error
	List(ctx context.Context, filter provenance.Filter) ([]provenance.Entry, error)
}
