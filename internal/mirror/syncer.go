package mirror

import (
	"context"
	"errors"
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/R3E-Network/attestation_layer/internal/logging"
	"github.com/R3E-Network/attestation_layer/internal/metrics"
	"github.com/R3E-Network/attestation_layer/internal/registry"
)

const (
	DefaultSyncPageSize = 50
	DefaultSyncMaxPages = 20
	DefaultSyncSchedule = "@every 1m"
)

// Scanner is the history scan the syncer replays into the store.
type Scanner interface {
	ScanCreatedObjects(ctx context.Context, kind registry.Kind, limit int, cursor *string) (registry.Page[registry.Record], error)
}

var _ Scanner = (*registry.HistoryScanner)(nil)

// SyncerConfig configures a Syncer.
type SyncerConfig struct {
	Scanner  Scanner
	Store    Store
	Logger   *logging.Logger
	PageSize int
	MaxPages int
}

// Syncer backfills the mirror from chain history, newest first.
type Syncer struct {
	scanner  Scanner
	store    Store
	log      *logging.Logger
	pageSize int
	maxPages int
}

// NewSyncer creates a syncer with defaults applied.
func NewSyncer(cfg SyncerConfig) *Syncer {
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultSyncPageSize
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = DefaultSyncMaxPages
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewDiscard()
	}
	return &Syncer{
		scanner:  cfg.Scanner,
		store:    cfg.Store,
		log:      cfg.Logger,
		pageSize: cfg.PageSize,
		maxPages: cfg.MaxPages,
	}
}

// RunOnce walks history for every kind and upserts what it finds. A page whose
// records are all already mirrored ends the walk for that kind.
func (s *Syncer) RunOnce(ctx context.Context) (int, error) {
	total := 0
	for _, kind := range registry.Kinds {
		n, err := s.syncKind(ctx, kind)
		total += n
		if err != nil {
			metrics.RecordMirrorSync(false)
			return total, fmt.Errorf("sync %s: %w", kind, err)
		}
	}
	metrics.RecordMirrorSync(true)
	s.log.Info(ctx, "mirror sync complete", map[string]interface{}{"new_records": total})
	return total, nil
}

func (s *Syncer) syncKind(ctx context.Context, kind registry.Kind) (int, error) {
	var cursor *string
	added := 0
	for page := 0; page < s.maxPages; page++ {
		result, err := s.scanner.ScanCreatedObjects(ctx, kind, s.pageSize, cursor)
		if err != nil {
			return added, err
		}

		fresh := 0
		for _, rec := range result.Items {
			_, err := s.store.Get(ctx, rec.ID)
			if err == nil {
				continue
			}
			if !errors.Is(err, ErrNotFound) {
				return added, fmt.Errorf("lookup %s: %w", rec.ID, err)
			}
			if err := s.store.Upsert(ctx, rec); err != nil {
				return added, err
			}
			fresh++
		}
		added += fresh
		metrics.RecordMirrorUpsert(string(kind), fresh)

		if fresh == 0 || !result.HasNextPage || result.NextCursor == nil {
			break
		}
		cursor = result.NextCursor
	}
	return added, nil
}

// Run syncs on schedule until ctx is done. schedule uses cron syntax or descriptors
// such as "@every 1m".
func (s *Syncer) Run(ctx context.Context, schedule string) error {
	if schedule == "" {
		schedule = DefaultSyncSchedule
	}

	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		if _, err := s.RunOnce(ctx); err != nil {
			s.log.Error(ctx, "mirror sync failed", err, nil)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid sync schedule %q: %w", schedule, err)
	}

	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}
