package main

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/R3E-Network/attestation_layer/internal/chain"
	"github.com/R3E-Network/attestation_layer/internal/mirror"
	"github.com/R3E-Network/attestation_layer/internal/registry"
)

func newChainClient() (*chain.Client, error) {
	var signer *chain.Signer
	if cfg.Chain.SignerKey != "" {
		s, err := chain.ParseSigner(cfg.Chain.SignerKey)
		if err != nil {
			return nil, fmt.Errorf("signer: %w", err)
		}
		signer = s
	}

	return chain.NewClient(chain.Config{
		RPCURL:    cfg.Chain.RPCURL,
		Timeout:   cfg.Chain.Timeout,
		RateLimit: cfg.Chain.RateLimit,
		Signer:    signer,
		GasBudget: cfg.Chain.GasBudget,
	})
}

// openDB returns nil when no database is configured.
func openDB() (*sql.DB, error) {
	if cfg.Database.URL == "" {
		return nil, nil
	}
	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return db, nil
}

func newStore(db *sql.DB) mirror.Store {
	if db == nil {
		return mirror.NewMemoryStore()
	}
	return mirror.NewPostgresStore(db)
}

func newService(client *chain.Client, store mirror.Store) (*registry.Service, error) {
	rcfg := registry.Config{
		Gateway:              client,
		Contract:             cfg.Contract(),
		Logger:               logger,
		RetryAttempts:        cfg.Scan.RetryAttempts,
		RetryDelay:           cfg.Scan.RetryDelay,
		MaxScanPages:         cfg.Scan.MaxPages,
		MaxConcurrentFetches: cfg.Scan.MaxConcurrentFetches,
	}
	if store != nil {
		rcfg.Sink = store
	}
	return registry.New(rcfg)
}

func newSyncer(svc *registry.Service, store mirror.Store) *mirror.Syncer {
	return mirror.NewSyncer(mirror.SyncerConfig{
		Scanner:  svc.History(),
		Store:    store,
		Logger:   logger,
		PageSize: cfg.Mirror.PageSize,
		MaxPages: cfg.Mirror.MaxPages,
	})
}
