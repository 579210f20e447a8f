// Package registry resolves, classifies and paginates schema and attestation objects on the ledger.
package registry

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// Kind is the registry object kind.
type Kind string

const (
	KindSchema      Kind = "Schema"
	KindAttestation Kind = "Attestation"
)

// Kinds lists every registry kind.
var Kinds = []Kind{KindSchema, KindAttestation}

// ParseKind accepts "schema", "Schema", "attestation", ...
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "schema", "schemas":
		return KindSchema, nil
	case "attestation", "attestations":
		return KindAttestation, nil
	default:
		return "", fmt.Errorf("unknown kind %q", s)
	}
}

// ZeroAddress is the subject sentinel meaning "no subject".
const ZeroAddress = "0x0000000000000000000000000000000000000000000000000000000000000000"

// HexBytes renders as a 0x-prefixed hex string in JSON.
type HexBytes []byte

// MarshalJSON implements json.Marshaler.
func (b HexBytes) MarshalJSON() ([]byte, error) {
	return json.Marshal("0x" + hex.EncodeToString(b))
}

// UnmarshalJSON implements json.Unmarshaler.
func (b *HexBytes) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	decoded, err := DecodeHex(s)
	if err != nil {
		return err
	}
	*b = decoded
	return nil
}

// DecodeHex decodes an optionally 0x-prefixed hex string.
func DecodeHex(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(s), "0x"), "0X")
	return hex.DecodeString(s)
}

// =============================================================================
// Records
// =============================================================================

// Envelope holds the fields present on every fetched object.
type Envelope struct {
	ID                  string `json:"id"`
	Type                string `json:"type"`
	Owner               string `json:"owner"`
	PreviousTransaction string `json:"previous_transaction"`
	Version             string `json:"version"`
	Digest              string `json:"digest"`
}

// SchemaFields are the Move fields of a Schema object.
type SchemaFields struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	// Definition is opaque JSON text; it is never parsed here.
	Definition string `json:"definition"`
	Creator    string `json:"creator"`
	CreatedAt  uint64 `json:"created_at"`
}

// AttestationFields are the Move fields of an Attestation object.
type AttestationFields struct {
	SchemaID  string   `json:"schema_id"`
	Subject   string   `json:"subject"`
	Hash      HexBytes `json:"hash"`
	Attestor  string   `json:"attestor"`
	CreatedAt uint64   `json:"created_at"`
}

// HasSubject reports whether the attestation is about a concrete subject.
func (a AttestationFields) HasSubject() bool {
	return a.Subject != "" && a.Subject != ZeroAddress
}

// Record is a classified registry object. Schema or Attestation is set for Move objects;
// both are nil for an envelope-only record.
type Record struct {
	Kind Kind `json:"kind"`
	Envelope
	Schema      *SchemaFields      `json:"schema,omitempty"`
	Attestation *AttestationFields `json:"attestation,omitempty"`
}

// Page is one page of results plus its continuation.
type Page[T any] struct {
	Items       []T     `json:"items"`
	HasNextPage bool    `json:"has_next_page"`
	NextCursor  *string `json:"next_cursor"`
}

// CreateResult is returned by write operations. CreatedID is nil when the transaction
// succeeded but the created object could not be identified.
type CreateResult struct {
	Digest    string  `json:"digest"`
	CreatedID *string `json:"created_id"`
	Record    *Record `json:"record,omitempty"`
}

// =============================================================================
// Candidates
// =============================================================================

// Provenance tags where a candidate id was found in a transaction.
type Provenance string

const (
	FromObjectChanges  Provenance = "object-changes"
	FromEffectsCreated Provenance = "effects.created"
)

// candidate is an object id surfaced by a scanned transaction, pending fetch.
type candidate struct {
	ID         string
	Type       string
	Provenance Provenance
}
