package mirror

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/R3E-Network/attestation_layer/internal/registry"
)

// PostgresStore is a Store backed by the registry_records table.
type PostgresStore struct {
	db *sqlx.DB
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore wraps an open database handle.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: sqlx.NewDb(db, "postgres")}
}

// recordRow is the registry_records row shape.
type recordRow struct {
	ID                  string         `db:"id"`
	Kind                string         `db:"kind"`
	ObjectType          string         `db:"object_type"`
	Owner               string         `db:"owner"`
	PreviousTransaction string         `db:"previous_transaction"`
	Version             string         `db:"version"`
	Digest              string         `db:"digest"`
	Fields              sql.NullString `db:"fields"`
	CreatedAtMs         int64          `db:"created_at_ms"`
}

const recordColumns = `id, kind, object_type, owner, previous_transaction, version, digest, fields, created_at_ms`

func toRow(rec registry.Record) (recordRow, error) {
	var fields interface{}
	switch {
	case rec.Schema != nil:
		fields = rec.Schema
	case rec.Attestation != nil:
		fields = rec.Attestation
	}

	row := recordRow{
		ID:                  rec.ID,
		Kind:                string(rec.Kind),
		ObjectType:          rec.Type,
		Owner:               rec.Owner,
		PreviousTransaction: rec.PreviousTransaction,
		Version:             rec.Version,
		Digest:              rec.Digest,
		CreatedAtMs:         int64(createdAt(rec)),
	}
	if fields != nil {
		raw, err := json.Marshal(fields)
		if err != nil {
			return recordRow{}, err
		}
		row.Fields = sql.NullString{String: string(raw), Valid: true}
	}
	return row, nil
}

func (r recordRow) record() (registry.Record, error) {
	rec := registry.Record{
		Kind: registry.Kind(r.Kind),
		Envelope: registry.Envelope{
			ID:                  r.ID,
			Type:                r.ObjectType,
			Owner:               r.Owner,
			PreviousTransaction: r.PreviousTransaction,
			Version:             r.Version,
			Digest:              r.Digest,
		},
	}
	if !r.Fields.Valid || r.Fields.String == "" || r.Fields.String == "null" {
		return rec, nil
	}
	raw := []byte(r.Fields.String)
	switch rec.Kind {
	case registry.KindSchema:
		rec.Schema = &registry.SchemaFields{}
		if err := json.Unmarshal(raw, rec.Schema); err != nil {
			return registry.Record{}, fmt.Errorf("decode schema %s: %w", r.ID, err)
		}
	case registry.KindAttestation:
		rec.Attestation = &registry.AttestationFields{}
		if err := json.Unmarshal(raw, rec.Attestation); err != nil {
			return registry.Record{}, fmt.Errorf("decode attestation %s: %w", r.ID, err)
		}
	}
	return rec, nil
}

// Upsert inserts rec or refreshes its envelope. kind and fields are write-once.
func (s *PostgresStore) Upsert(ctx context.Context, rec registry.Record) error {
	row, err := toRow(rec)
	if err != nil {
		return err
	}
	_, err = s.db.NamedExecContext(ctx, `
		INSERT INTO registry_records (`+recordColumns+`)
		VALUES (:id, :kind, :object_type, :owner, :previous_transaction, :version, :digest, :fields, :created_at_ms)
		ON CONFLICT (id) DO UPDATE
		SET owner = EXCLUDED.owner, version = EXCLUDED.version, digest = EXCLUDED.digest
	`, row)
	if err != nil {
		return fmt.Errorf("upsert record %s: %w", rec.ID, err)
	}
	return nil
}

// Get returns the record with id.
func (s *PostgresStore) Get(ctx context.Context, id string) (registry.Record, error) {
	var row recordRow
	err := s.db.GetContext(ctx, &row, `SELECT `+recordColumns+` FROM registry_records WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return registry.Record{}, ErrNotFound
	}
	if err != nil {
		return registry.Record{}, err
	}
	return row.record()
}

// List returns records matching q, newest first.
func (s *PostgresStore) List(ctx context.Context, q Query) ([]registry.Record, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}

	var rows []recordRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+recordColumns+`
		FROM registry_records
		WHERE ($1 = '' OR kind = $1) AND ($2 = '' OR owner = $2)
		ORDER BY created_at_ms DESC, id
		LIMIT $3 OFFSET $4
	`, string(q.Kind), q.Owner, limit, q.Offset)
	if err != nil {
		return nil, err
	}

	out := make([]registry.Record, 0, len(rows))
	for _, row := range rows {
		rec, err := row.record()
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}
