package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/R3E-Network/attestation_layer/internal/chain"
	"github.com/R3E-Network/attestation_layer/pkg/testutil"
)

func TestClassifier_SchemaTiers(t *testing.T) {
	c := NewClassifier(testContract())

	for _, typ := range []string{
		schemaType,
		"0x0000abc::attestation::Schema",
		"0x2::dynamic_field::Field<u64, 0xabc::attestation::Schema>",
	} {
		obj := schemaObject("0x51")
		obj.Type = typ
		rec := c.Classify(KindSchema, obj)
		require.NotNil(t, rec, typ)
		assert.Equal(t, KindSchema, rec.Kind)
	}
}

func TestClassifier_RejectsOtherKind(t *testing.T) {
	c := NewClassifier(testContract())

	assert.Nil(t, c.Classify(KindSchema, attestationObject("0xa1", "0x51")))
	assert.Nil(t, c.Classify(KindAttestation, schemaObject("0x51")))
}

func TestClassifier_SchemaFields(t *testing.T) {
	c := NewClassifier(testContract())

	rec := c.Classify(KindSchema, schemaObject("0x51"))
	require.NotNil(t, rec)
	require.NotNil(t, rec.Schema)
	assert.Nil(t, rec.Attestation)

	assert.Equal(t, Envelope{
		ID:                  "0x51",
		Type:                schemaType,
		Owner:               alice,
		PreviousTransaction: "tx-0x51",
		Version:             "1",
		Digest:              "dig-0x51",
	}, rec.Envelope)
	assert.Equal(t, "schema 0x51", rec.Schema.Name)
	assert.Equal(t, `{"type":"object"}`, rec.Schema.Definition)
	assert.Equal(t, alice, rec.Schema.Creator)
	assert.Equal(t, uint64(1700000000000), rec.Schema.CreatedAt)
}

func TestClassifier_AttestationFields(t *testing.T) {
	c := NewClassifier(testContract())

	rec := c.Classify(KindAttestation, attestationObject("0xa1", "0x51"))
	require.NotNil(t, rec)
	require.NotNil(t, rec.Attestation)

	assert.Equal(t, "0x51", rec.Attestation.SchemaID)
	assert.Equal(t, HexBytes{0xde, 0xad}, rec.Attestation.Hash)
	assert.False(t, rec.Attestation.HasSubject())
	assert.Equal(t, uint64(1700000000001), rec.Attestation.CreatedAt)
}

func TestClassifier_FieldEncodings(t *testing.T) {
	c := NewClassifier(testContract())

	obj := testutil.MoveObject("0xa2", attestationType, alice, map[string]interface{}{
		"schema_id": map[string]string{"id": "0x51"},
		"subject":   "0xb0b",
		"hash":      "0xcafe",
	})
	rec := c.Classify(KindAttestation, obj)
	require.NotNil(t, rec)
	assert.Equal(t, "0x51", rec.Attestation.SchemaID)
	assert.Equal(t, HexBytes{0xca, 0xfe}, rec.Attestation.Hash)
	assert.True(t, rec.Attestation.HasSubject())

	obj = testutil.MoveObject("0xa3", attestationType, alice, map[string]interface{}{"hash": "3q0="})
	rec = c.Classify(KindAttestation, obj)
	require.NotNil(t, rec)
	assert.Equal(t, HexBytes{0xde, 0xad}, rec.Attestation.Hash)

	obj = testutil.MoveObject("0x52", schemaType, alice, map[string]interface{}{"name": []int{'k', 'y', 'c'}})
	rec = c.Classify(KindSchema, obj)
	require.NotNil(t, rec)
	assert.Equal(t, "kyc", rec.Schema.Name)
}

func TestClassifier_NoContent(t *testing.T) {
	c := NewClassifier(testContract())

	assert.Nil(t, c.Classify(KindSchema, nil))

	obj := schemaObject("0x51")
	obj.Content = nil
	assert.Nil(t, c.Classify(KindSchema, obj))
}

func TestClassifier_PackageContentIsEnvelopeOnly(t *testing.T) {
	c := NewClassifier(testContract())

	obj := schemaObject("0x51")
	obj.Content = &chain.PackageContent{}
	rec := c.Classify(KindSchema, obj)
	require.NotNil(t, rec)
	assert.Equal(t, "0x51", rec.ID)
	assert.Nil(t, rec.Schema)
	assert.Nil(t, rec.Attestation)
}

func TestClassifier_ClassifyAny(t *testing.T) {
	c := NewClassifier(testContract())

	rec := c.ClassifyAny(attestationObject("0xa1", "0x51"))
	require.NotNil(t, rec)
	assert.Equal(t, KindAttestation, rec.Kind)

	assert.Nil(t, c.ClassifyAny(testutil.MoveObject("0xc1", coinType, alice, map[string]interface{}{})))
}

func TestClassifier_GenericTypeBelongsToOuterKind(t *testing.T) {
	c := NewClassifier(testContract())

	obj := testutil.MoveObject("0xa9", "0xabc::attestation::Attestation<0xabc::attestation::Schema>", alice, map[string]interface{}{
		"schema_id": "0x51",
		"hash":      "0x01",
	})

	rec := c.ClassifyAny(obj)
	require.NotNil(t, rec)
	assert.Equal(t, KindAttestation, rec.Kind)

	require.NotNil(t, c.Classify(KindAttestation, obj))
	assert.Nil(t, c.Classify(KindSchema, obj))
}

func TestClassifier_ClassifyAnyOuterTypeWins(t *testing.T) {
	c := NewClassifier(testContract())

	obj := testutil.MoveObject("0x5a", schemaType, alice, map[string]interface{}{})
	rec := c.ClassifyAny(obj)
	require.NotNil(t, rec)
	assert.Equal(t, KindSchema, rec.Kind)

	obj.Type = "0x2::wrapper::Attestation<0xabc::attestation::Schema>"
	rec = c.ClassifyAny(obj)
	require.NotNil(t, rec)
	assert.Equal(t, KindAttestation, rec.Kind)
}

func TestClassifier_PlainHexHash(t *testing.T) {
	c := NewClassifier(testContract())

	obj := testutil.MoveObject("0xa4", attestationType, alice, map[string]interface{}{"hash": "deadbeef"})
	rec := c.Classify(KindAttestation, obj)
	require.NotNil(t, rec)
	assert.Equal(t, HexBytes{0xde, 0xad, 0xbe, 0xef}, rec.Attestation.Hash)
}
