package registry

import (
	"context"

	"github.com/R3E-Network/attestation_layer/internal/chain"
	svcerrors "github.com/R3E-Network/attestation_layer/internal/errors"
	"github.com/R3E-Network/attestation_layer/internal/metrics"
)

// OwnerScanner lists objects of a kind held by an address using the node's owner index.
type OwnerScanner struct {
	gateway    Gateway
	contract   Contract
	classifier *Classifier
}

// NewOwnerScanner creates an owner scanner.
func NewOwnerScanner(gateway Gateway, contract Contract) *OwnerScanner {
	return &OwnerScanner{
		gateway:    gateway,
		contract:   contract,
		classifier: NewClassifier(contract),
	}
}

// ScanOwnedObjects is a single index query. Paging state comes straight from the node.
func (s *OwnerScanner) ScanOwnedObjects(ctx context.Context, kind Kind, owner string, limit int, cursor *string) (Page[Record], error) {
	page, err := s.gateway.ListOwnedObjects(ctx, chain.OwnedQuery{
		Owner:      owner,
		StructType: s.contract.StructType(kind),
		Cursor:     cursor,
		Limit:      limit,
	})
	if err != nil {
		return Page[Record]{}, svcerrors.UpstreamUnavailable("list owned objects", err)
	}
	metrics.RecordScanPage("owner", string(kind))

	seen := make(map[string]struct{}, len(page.Data))
	records := make([]Record, 0, len(page.Data))
	for _, item := range page.Data {
		if item.Data == nil || item.Data.Content == nil {
			continue
		}
		rec := s.classifier.Classify(kind, item.Data)
		if rec == nil {
			continue
		}
		if _, dup := seen[rec.ID]; dup {
			continue
		}
		seen[rec.ID] = struct{}{}
		records = append(records, *rec)
	}

	return Page[Record]{
		Items:       records,
		HasNextPage: page.HasNextPage,
		NextCursor:  page.NextCursor,
	}, nil
}
