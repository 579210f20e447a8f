package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/R3E-Network/attestation_layer/internal/chain"
	svcerrors "github.com/R3E-Network/attestation_layer/internal/errors"
	"github.com/R3E-Network/attestation_layer/internal/logging"
	"github.com/R3E-Network/attestation_layer/internal/metrics"
	"golang.org/x/crypto/blake2b"
)

// =============================================================================
// Configuration
// =============================================================================

// Config holds the registry service dependencies.
type Config struct {
	Gateway  Gateway
	Contract Contract
	Logger   *logging.Logger
	// Sink, when set, receives every record created through the service.
	Sink RecordSink

	RetryAttempts        int
	RetryDelay           time.Duration
	Sleep                SleepFunc
	MaxScanPages         int
	MaxConcurrentFetches int
}

// Service exposes the registry operations used by the REST layer and CLI.
type Service struct {
	gateway    Gateway
	contract   Contract
	log        *logging.Logger
	sink       RecordSink
	classifier *Classifier
	history    *HistoryScanner
	owners     *OwnerScanner
	retry      RetryPolicy
}

// New creates a registry service.
func New(cfg Config) (*Service, error) {
	if cfg.Gateway == nil {
		return nil, fmt.Errorf("registry: gateway is required")
	}
	if err := cfg.Contract.Validate(); err != nil {
		return nil, fmt.Errorf("registry: %w", err)
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewDiscard()
	}

	retry := DefaultRetryPolicy()
	if cfg.RetryAttempts > 0 {
		retry.MaxAttempts = cfg.RetryAttempts
	}
	if cfg.RetryDelay > 0 {
		retry.Delay = cfg.RetryDelay
	}
	if cfg.Sleep != nil {
		retry.Sleep = cfg.Sleep
	}

	return &Service{
		gateway:    cfg.Gateway,
		contract:   cfg.Contract,
		log:        cfg.Logger,
		sink:       cfg.Sink,
		classifier: NewClassifier(cfg.Contract),
		history: NewHistoryScanner(HistoryScannerConfig{
			Gateway:              cfg.Gateway,
			Contract:             cfg.Contract,
			Logger:               cfg.Logger,
			MaxScanPages:         cfg.MaxScanPages,
			MaxConcurrentFetches: cfg.MaxConcurrentFetches,
		}),
		owners: NewOwnerScanner(cfg.Gateway, cfg.Contract),
		retry:  retry,
	}, nil
}

// Contract returns the configured contract.
func (s *Service) Contract() Contract {
	return s.contract
}

// History returns the history scanner, used by the mirror syncer.
func (s *Service) History() *HistoryScanner {
	return s.history
}

// =============================================================================
// Writes
// =============================================================================

// SchemaInput is the input of CreateSchema.
type SchemaInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Definition  string `json:"definition"`
}

// AttestationInput is the input of CreateAttestation. An empty Subject means ZeroAddress.
type AttestationInput struct {
	SchemaID string
	Subject  string
	Hash     []byte
}

// CreateSchema submits a create_schema transaction.
func (s *Service) CreateSchema(ctx context.Context, in SchemaInput) (CreateResult, error) {
	if strings.TrimSpace(in.Name) == "" {
		return CreateResult{}, svcerrors.BadRequest("name is required")
	}
	if !json.Valid([]byte(in.Definition)) {
		return CreateResult{}, svcerrors.BadRequest("definition must be valid JSON")
	}

	return s.create(ctx, KindSchema, []interface{}{in.Name, in.Description, in.Definition})
}

// CreateAttestation submits a create_attestation transaction.
func (s *Service) CreateAttestation(ctx context.Context, in AttestationInput) (CreateResult, error) {
	if !IsAddress(in.SchemaID) {
		return CreateResult{}, svcerrors.BadRequest("schema_id must be a 0x-prefixed object id")
	}
	subject := in.Subject
	if subject == "" {
		subject = ZeroAddress
	}
	if !IsAddress(subject) {
		return CreateResult{}, svcerrors.BadRequest("subject must be a 0x-prefixed address")
	}
	if len(in.Hash) == 0 {
		return CreateResult{}, svcerrors.BadRequest("hash is required")
	}

	// vector<u8> arguments are passed as number arrays.
	hash := make([]int, len(in.Hash))
	for i, b := range in.Hash {
		hash[i] = int(b)
	}
	return s.create(ctx, KindAttestation, []interface{}{in.SchemaID, subject, hash})
}

func (s *Service) create(ctx context.Context, kind Kind, args []interface{}) (CreateResult, error) {
	if s.contract.ClockObjectID != "" {
		args = append(args, s.contract.ClockObjectID)
	}

	block, err := s.gateway.ExecuteTransaction(ctx, chain.TxSpec{
		Package:   s.contract.PackageID,
		Module:    s.contract.Module,
		Function:  s.contract.CreateFunction(kind),
		Arguments: args,
	})
	if err != nil {
		var execErr *chain.ExecutionError
		if errors.As(err, &execErr) {
			return CreateResult{}, svcerrors.TransactionFailed(execErr.Digest, err)
		}
		return CreateResult{}, svcerrors.UpstreamUnavailable("execute transaction", err)
	}

	id, strategy := ResolveCreated(block, kind, s.contract.StructType(kind))
	metrics.RecordResolution(string(kind), string(strategy))

	result := CreateResult{Digest: block.Digest}
	if id == "" {
		s.log.Warn(ctx, "created object id unresolved", map[string]interface{}{
			"kind":   string(kind),
			"digest": block.Digest,
		})
		return result, nil
	}
	result.CreatedID = &id

	// The transaction already succeeded; failures below only shrink the response.
	obj, err := s.gateway.GetObject(ctx, id)
	if err != nil {
		s.log.Warn(ctx, "fetch created object failed", map[string]interface{}{
			"object_id": id,
			"error":     err.Error(),
		})
		return result, nil
	}
	result.Record = s.classifier.Classify(kind, obj)

	if result.Record != nil && s.sink != nil {
		if err := s.sink.Upsert(ctx, *result.Record); err != nil {
			s.log.Error(ctx, "mirror write failed", err, map[string]interface{}{"object_id": id})
		}
	}

	s.log.Info(ctx, "registry object created", map[string]interface{}{
		"kind":      string(kind),
		"object_id": id,
		"digest":    block.Digest,
		"strategy":  string(strategy),
	})
	return result, nil
}

// =============================================================================
// Reads
// =============================================================================

// ListOptions selects a page of a list operation.
type ListOptions struct {
	Limit  int
	Cursor *string
	// Owner switches to the owner index.
	Owner string
	// WaitForIndex retries empty history scans to ride out indexing lag after a write.
	WaitForIndex bool
}

// ListSchemas lists schemas, newest first.
func (s *Service) ListSchemas(ctx context.Context, opts ListOptions) (Page[Record], error) {
	return s.ListRecords(ctx, KindSchema, opts)
}

// ListAttestations lists attestations, newest first.
func (s *Service) ListAttestations(ctx context.Context, opts ListOptions) (Page[Record], error) {
	return s.ListRecords(ctx, KindAttestation, opts)
}

// ListSchemasByOwner lists schemas held by owner.
func (s *Service) ListSchemasByOwner(ctx context.Context, owner string, limit int, cursor *string) (Page[Record], error) {
	return s.ListRecords(ctx, KindSchema, ListOptions{Owner: owner, Limit: limit, Cursor: cursor})
}

// ListAttestationsByOwner lists attestations held by owner.
func (s *Service) ListAttestationsByOwner(ctx context.Context, owner string, limit int, cursor *string) (Page[Record], error) {
	return s.ListRecords(ctx, KindAttestation, ListOptions{Owner: owner, Limit: limit, Cursor: cursor})
}

// ListRecords lists records of kind. A set Owner uses the owner index and is never retried.
func (s *Service) ListRecords(ctx context.Context, kind Kind, opts ListOptions) (Page[Record], error) {
	if opts.Limit <= 0 {
		return Page[Record]{}, svcerrors.BadRequest("limit must be positive")
	}

	if opts.Owner != "" {
		if !IsAddress(opts.Owner) {
			return Page[Record]{}, svcerrors.BadRequest("owner must be a 0x-prefixed address")
		}
		return s.owners.ScanOwnedObjects(ctx, kind, opts.Owner, opts.Limit, opts.Cursor)
	}

	scan := func(ctx context.Context) (Page[Record], error) {
		return s.history.ScanCreatedObjects(ctx, kind, opts.Limit, opts.Cursor)
	}
	if opts.WaitForIndex {
		return WithRetry(ctx, s.retry, scan)
	}
	return scan(ctx)
}

// GetObjectByID fetches and classifies a registry object.
func (s *Service) GetObjectByID(ctx context.Context, id string) (Record, error) {
	if !IsAddress(id) {
		return Record{}, svcerrors.BadRequest("id must be a 0x-prefixed object id")
	}

	obj, err := s.gateway.GetObject(ctx, id)
	if err != nil {
		return Record{}, svcerrors.UpstreamUnavailable("get object", err)
	}
	if obj == nil || obj.Content == nil {
		return Record{}, svcerrors.NotFound("object", id)
	}

	rec := s.classifier.ClassifyAny(obj)
	if rec == nil {
		return Record{}, svcerrors.NotFound("registry object", id).WithDetail("type", obj.Type)
	}
	return *rec, nil
}

// =============================================================================
// Helpers
// =============================================================================

// HashPayload is the blake2b-256 digest stored on an attestation for raw data.
func HashPayload(data []byte) []byte {
	sum := blake2b.Sum256(data)
	return sum[:]
}

// IsAddress reports whether s looks like a 0x-prefixed hex address or object id.
func IsAddress(s string) bool {
	if len(s) < 3 || len(s) > 66 || !strings.HasPrefix(s, "0x") {
		return false
	}
	for _, r := range s[2:] {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'f', r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}
