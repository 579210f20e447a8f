package registry

import (
	"context"

	"github.com/R3E-Network/attestation_layer/internal/chain"
	svcerrors "github.com/R3E-Network/attestation_layer/internal/errors"
	"github.com/R3E-Network/attestation_layer/internal/logging"
	"github.com/R3E-Network/attestation_layer/internal/metrics"
	"golang.org/x/sync/errgroup"
)

const (
	// MaxQueryPageSize is the node's upper bound for one transaction query.
	MaxQueryPageSize = 100
	// DefaultMaxScanPages bounds how many upstream pages one scan may walk.
	DefaultMaxScanPages = 10
	// DefaultMaxConcurrentFetches bounds in-flight object fetches per scan.
	DefaultMaxConcurrentFetches = 16
)

// HistoryScanner discovers objects of a kind by scanning the transactions that called
// the kind's create entry point.
type HistoryScanner struct {
	gateway       Gateway
	contract      Contract
	classifier    *Classifier
	log           *logging.Logger
	maxPages      int
	maxConcurrent int
}

// HistoryScannerConfig configures a HistoryScanner.
type HistoryScannerConfig struct {
	Gateway              Gateway
	Contract             Contract
	Logger               *logging.Logger
	MaxScanPages         int
	MaxConcurrentFetches int
}

// NewHistoryScanner creates a scanner with defaults applied.
func NewHistoryScanner(cfg HistoryScannerConfig) *HistoryScanner {
	if cfg.MaxScanPages <= 0 {
		cfg.MaxScanPages = DefaultMaxScanPages
	}
	if cfg.MaxConcurrentFetches <= 0 {
		cfg.MaxConcurrentFetches = DefaultMaxConcurrentFetches
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewDiscard()
	}
	return &HistoryScanner{
		gateway:       cfg.Gateway,
		contract:      cfg.Contract,
		classifier:    NewClassifier(cfg.Contract),
		log:           cfg.Logger,
		maxPages:      cfg.MaxScanPages,
		maxConcurrent: cfg.MaxConcurrentFetches,
	}
}

// QueryPageSize over-fetches by 2x since not every scanned transaction yields a record.
func QueryPageSize(limit int) int {
	return min(limit*2, MaxQueryPageSize)
}

// ScanCreatedObjects returns up to limit records of kind, newest first.
//
// Upstream pages are walked while fewer than limit records have accumulated and the
// node reports more transactions. HasNextPage is set only when upstream has more and
// the page is full. NextCursor is the node's cursor, untouched.
func (s *HistoryScanner) ScanCreatedObjects(ctx context.Context, kind Kind, limit int, cursor *string) (Page[Record], error) {
	if limit <= 0 {
		return Page[Record]{Items: []Record{}, NextCursor: cursor}, nil
	}

	expected := s.contract.StructType(kind)
	seen := make(map[string]struct{})
	records := make([]Record, 0, limit)

	next := cursor
	upstreamHasMore := false

	for pages := 0; pages < s.maxPages; pages++ {
		page, err := s.gateway.QueryTransactionsByFunction(ctx, chain.FunctionQuery{
			Package:    s.contract.PackageID,
			Module:     s.contract.Module,
			Function:   s.contract.CreateFunction(kind),
			Cursor:     next,
			Limit:      QueryPageSize(limit),
			Descending: true,
		})
		if err != nil {
			return Page[Record]{}, svcerrors.UpstreamUnavailable("query transactions", err)
		}
		metrics.RecordScanPage("history", string(kind))

		candidates := collectCandidates(page.Data, kind, expected, seen)
		fetched, err := s.fetchAll(ctx, kind, candidates)
		if err != nil {
			return Page[Record]{}, err
		}
		records = append(records, fetched...)

		next = page.NextCursor
		upstreamHasMore = page.HasNextPage
		if len(records) >= limit || !page.HasNextPage || page.NextCursor == nil {
			break
		}
	}

	records = dedupByID(records)
	if len(records) > limit {
		records = records[:limit]
	}

	return Page[Record]{
		Items:       records,
		HasNextPage: upstreamHasMore && len(records) == limit,
		NextCursor:  next,
	}, nil
}

// collectCandidates gathers unseen created ids from both the object-change list and
// effects.created. seen is shared across sources, transactions and pages.
func collectCandidates(txs []chain.TransactionBlock, kind Kind, expected string, seen map[string]struct{}) []candidate {
	var out []candidate
	for i := range txs {
		tx := &txs[i]

		for _, change := range tx.ObjectChanges {
			switch c := change.(type) {
			case *chain.CreatedChange:
				if _, dup := seen[c.ObjectID]; dup || c.ObjectID == "" {
					continue
				}
				// A typed mismatch here is final, so the id is not retried from effects.
				seen[c.ObjectID] = struct{}{}
				if MatchType(c.ObjectType, kind, expected) != MatchNone {
					out = append(out, candidate{ID: c.ObjectID, Type: c.ObjectType, Provenance: FromObjectChanges})
				}
			case *chain.MutatedChange, *chain.DeletedChange, *chain.WrappedChange,
				*chain.PublishedChange, *chain.TransferredChange, *chain.UnknownChange:
				// not creations
			}
		}

		if tx.Effects == nil {
			continue
		}
		for _, ref := range tx.Effects.Created {
			id := ref.Reference.ObjectID
			if _, dup := seen[id]; dup || id == "" {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, candidate{ID: id, Provenance: FromEffectsCreated})
		}
	}
	return out
}

// fetchAll fetches and classifies candidates concurrently, preserving candidate order.
// A failed fetch drops that candidate; only context cancellation fails the call.
func (s *HistoryScanner) fetchAll(ctx context.Context, kind Kind, candidates []candidate) ([]Record, error) {
	results := make([]*Record, len(candidates))

	var g errgroup.Group
	g.SetLimit(s.maxConcurrent)
	for i, cand := range candidates {
		i, cand := i, cand
		g.Go(func() error {
			obj, err := s.gateway.GetObject(ctx, cand.ID)
			if err != nil {
				metrics.RecordCandidateFailure(string(kind))
				s.log.Warn(ctx, "skipping candidate object", map[string]interface{}{
					"object_id":  cand.ID,
					"kind":       string(kind),
					"provenance": string(cand.Provenance),
					"error":      err.Error(),
				})
				return nil
			}
			results[i] = s.classifier.Classify(kind, obj)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([]Record, 0, len(results))
	for _, rec := range results {
		if rec != nil {
			out = append(out, *rec)
		}
	}
	return out, nil
}

func dedupByID(records []Record) []Record {
	seen := make(map[string]struct{}, len(records))
	out := records[:0]
	for _, rec := range records {
		if _, dup := seen[rec.ID]; dup {
			continue
		}
		seen[rec.ID] = struct{}{}
		out = append(out, rec)
	}
	return out
}
