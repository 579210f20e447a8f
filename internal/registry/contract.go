package registry

import (
	"fmt"
	"strings"
)

// DefaultClockObjectID is the shared system clock passed to create entry points.
const DefaultClockObjectID = "0x6"

// Contract locates the registry Move package and its entry points.
type Contract struct {
	PackageID           string
	Module              string
	CreateSchemaFn      string
	CreateAttestationFn string
	// ClockObjectID is appended as the last create argument when non-empty.
	ClockObjectID string
}

// DefaultContract returns the entry point names used by the reference Move package.
func DefaultContract(packageID string) Contract {
	return Contract{
		PackageID:           packageID,
		Module:              "attestation",
		CreateSchemaFn:      "create_schema",
		CreateAttestationFn: "create_attestation",
		ClockObjectID:       DefaultClockObjectID,
	}
}

// Validate checks that every entry point is named.
func (c Contract) Validate() error {
	if !strings.HasPrefix(c.PackageID, "0x") {
		return fmt.Errorf("package id %q must be 0x-prefixed", c.PackageID)
	}
	if c.Module == "" {
		return fmt.Errorf("module is required")
	}
	if c.CreateSchemaFn == "" || c.CreateAttestationFn == "" {
		return fmt.Errorf("create function names are required")
	}
	return nil
}

// StructType is the fully-qualified Move type of kind: <package>::<module>::<Kind>.
func (c Contract) StructType(kind Kind) string {
	return c.PackageID + "::" + c.Module + "::" + string(kind)
}

// CreateFunction is the entry point that creates objects of kind.
func (c Contract) CreateFunction(kind Kind) string {
	if kind == KindAttestation {
		return c.CreateAttestationFn
	}
	return c.CreateSchemaFn
}
