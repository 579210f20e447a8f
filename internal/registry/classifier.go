package registry

import (
	"encoding/base64"
	"strings"

	"github.com/R3E-Network/attestation_layer/internal/chain"
	"github.com/R3E-Network/attestation_layer/internal/metrics"
	"github.com/tidwall/gjson"
)

// Classifier decides whether a fetched object is a registry Schema or Attestation
// and normalizes it into a Record.
type Classifier struct {
	contract Contract
}

// NewClassifier creates a classifier for the given contract.
func NewClassifier(contract Contract) *Classifier {
	return &Classifier{contract: contract}
}

// Classify returns nil when obj has no readable content or its type does not match kind.
// Content that is not a Move object yields an envelope-only record.
func (c *Classifier) Classify(kind Kind, obj *chain.Object) *Record {
	if obj == nil || obj.Content == nil {
		return nil
	}

	tier := MatchType(obj.Type, kind, c.contract.StructType(kind))
	metrics.RecordTypeMatch(string(kind), tier.String())
	if tier == MatchNone {
		return nil
	}
	// A type matching several kinds belongs to the strongest one only, so an id
	// never classifies differently depending on which kind was asked for.
	if best, _ := c.bestKind(obj.Type); best != kind {
		return nil
	}

	rec := &Record{
		Kind: kind,
		Envelope: Envelope{
			ID:                  obj.ObjectID,
			Type:                obj.Type,
			Owner:               obj.Owner.String(),
			PreviousTransaction: obj.PreviousTransaction,
			Version:             string(obj.Version),
			Digest:              obj.Digest,
		},
	}

	switch content := obj.Content.(type) {
	case *chain.MoveObjectContent:
		fields := gjson.ParseBytes(content.Fields)
		if !fields.IsObject() {
			return rec
		}
		switch kind {
		case KindSchema:
			rec.Schema = schemaFields(fields)
		case KindAttestation:
			rec.Attestation = attestationFields(fields)
		}
	case *chain.PackageContent:
		// envelope only
	}
	return rec
}

// ClassifyAny classifies obj as the kind its type matches most strongly.
func (c *Classifier) ClassifyAny(obj *chain.Object) *Record {
	if obj == nil {
		return nil
	}
	kind, ok := c.bestKind(obj.Type)
	if !ok {
		return nil
	}
	return c.Classify(kind, obj)
}

// bestKind ranks kinds by match tier, then by how early the "::Kind" token appears,
// so the outer type of a generic wins over its type arguments. Remaining ties go to
// the first kind in Kinds.
func (c *Classifier) bestKind(observed string) (Kind, bool) {
	var (
		best     Kind
		bestTier MatchTier
		bestPos  int
		found    bool
	)
	for _, kind := range Kinds {
		tier := MatchType(observed, kind, c.contract.StructType(kind))
		if tier == MatchNone {
			continue
		}
		pos := strings.Index(observed, "::"+string(kind))
		if pos < 0 {
			pos = len(observed)
		}
		if !found || tier < bestTier || (tier == bestTier && pos < bestPos) {
			best, bestTier, bestPos, found = kind, tier, pos, true
		}
	}
	return best, found
}

// =============================================================================
// Field Extraction
// =============================================================================

func schemaFields(f gjson.Result) *SchemaFields {
	return &SchemaFields{
		Name:        textField(f.Get("name")),
		Description: textField(f.Get("description")),
		Definition:  textField(f.Get("definition")),
		Creator:     idField(f.Get("creator")),
		CreatedAt:   f.Get("created_at").Uint(),
	}
}

func attestationFields(f gjson.Result) *AttestationFields {
	return &AttestationFields{
		SchemaID:  idField(f.Get("schema_id")),
		Subject:   idField(f.Get("subject")),
		Hash:      bytesField(f.Get("hash")),
		Attestor:  idField(f.Get("attestor")),
		CreatedAt: f.Get("created_at").Uint(),
	}
}

// textField reads a Move String, or a vector<u8> holding UTF-8.
func textField(r gjson.Result) string {
	if r.IsArray() {
		return string(bytesField(r))
	}
	return r.String()
}

// idField reads an address or ID, which some nodes wrap as {"id": "0x.."}.
func idField(r gjson.Result) string {
	if r.IsObject() {
		if id := r.Get("id"); id.Exists() {
			return idField(id)
		}
		return ""
	}
	return r.String()
}

// bytesField reads a vector<u8> rendered as a number array, 0x-hex or base64.
func bytesField(r gjson.Result) []byte {
	switch {
	case !r.Exists() || r.Type == gjson.Null:
		return nil
	case r.IsArray():
		arr := r.Array()
		out := make([]byte, 0, len(arr))
		for _, v := range arr {
			out = append(out, byte(v.Uint()))
		}
		return out
	case r.Type == gjson.String:
		s := r.String()
		if strings.HasPrefix(s, "0x") || isPlainHex(s) {
			if b, err := DecodeHex(s); err == nil {
				return b
			}
		}
		if b, err := base64.StdEncoding.DecodeString(s); err == nil {
			return b
		}
		return []byte(s)
	default:
		return nil
	}
}

// isPlainHex reports an even-length, all-hex string. Such strings are also valid
// base64, so hex is preferred.
func isPlainHex(s string) bool {
	if s == "" || len(s)%2 != 0 {
		return false
	}
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'f', r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}
