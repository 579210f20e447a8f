package registry

import (
	"context"

	"github.com/R3E-Network/attestation_layer/internal/chain"
)

// Gateway is the chain capability the registry depends on. *chain.Client implements it.
type Gateway interface {
	ExecuteTransaction(ctx context.Context, tx chain.TxSpec) (*chain.TransactionBlock, error)
	// GetObject returns (nil, nil) for a missing or deleted object.
	GetObject(ctx context.Context, id string) (*chain.Object, error)
	QueryTransactionsByFunction(ctx context.Context, q chain.FunctionQuery) (*chain.TransactionPage, error)
	ListOwnedObjects(ctx context.Context, q chain.OwnedQuery) (*chain.ObjectPage, error)
}

var _ Gateway = (*chain.Client)(nil)

// RecordSink receives classified records, e.g. a read mirror.
type RecordSink interface {
	Upsert(ctx context.Context, rec Record) error
}
