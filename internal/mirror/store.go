// Package mirror keeps a queryable copy of registry records outside the chain.
package mirror

import (
	"context"
	"errors"

	"github.com/R3E-Network/attestation_layer/internal/registry"
)

// ErrNotFound is returned by Get for an unknown id.
var ErrNotFound = errors.New("mirror: record not found")

// Query selects mirrored records. Results are newest first.
type Query struct {
	Kind   registry.Kind
	Owner  string
	Limit  int
	Offset int
}

// Store is a mirror of registry records. Upsert is idempotent by id.
type Store interface {
	Upsert(ctx context.Context, rec registry.Record) error
	Get(ctx context.Context, id string) (registry.Record, error)
	List(ctx context.Context, q Query) ([]registry.Record, error)
}

var _ registry.RecordSink = (Store)(nil)

func createdAt(rec registry.Record) uint64 {
	switch {
	case rec.Schema != nil:
		return rec.Schema.CreatedAt
	case rec.Attestation != nil:
		return rec.Attestation.CreatedAt
	default:
		return 0
	}
}
