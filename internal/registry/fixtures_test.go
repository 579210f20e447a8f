package registry

import (
	"github.com/R3E-Network/attestation_layer/internal/chain"
	"github.com/R3E-Network/attestation_layer/internal/logging"
	"github.com/R3E-Network/attestation_layer/pkg/testutil"
)

const (
	testPackage     = "0xabc"
	schemaType      = "0xabc::attestation::Schema"
	attestationType = "0xabc::attestation::Attestation"
	coinType        = "0x2::coin::Coin<0x2::sui::SUI>"
	alice           = "0xa11ce"
)

func testContract() Contract {
	return DefaultContract(testPackage)
}

func schemaObject(id string) *chain.Object {
	return testutil.MoveObject(id, schemaType, alice, map[string]interface{}{
		"name":        "schema " + id,
		"description": "desc",
		"definition":  `{"type":"object"}`,
		"creator":     alice,
		"created_at":  "1700000000000",
	})
}

func attestationObject(id, schemaID string) *chain.Object {
	return testutil.MoveObject(id, attestationType, alice, map[string]interface{}{
		"schema_id":  schemaID,
		"subject":    ZeroAddress,
		"hash":       []int{0xde, 0xad},
		"attestor":   alice,
		"created_at": 1700000000001,
	})
}

func newTestHistoryScanner(gw Gateway) *HistoryScanner {
	return NewHistoryScanner(HistoryScannerConfig{
		Gateway:  gw,
		Contract: testContract(),
		Logger:   logging.NewDiscard(),
	})
}

func recordIDs(records []Record) []string {
	ids := make([]string, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.ID)
	}
	return ids
}
