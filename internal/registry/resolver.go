package registry

import "github.com/R3E-Network/attestation_layer/internal/chain"

// Strategy names how a created object id was resolved.
type Strategy string

const (
	StrategyObjectChanges  Strategy = "object-changes"
	StrategyEffectsCreated Strategy = "effects-created"
	StrategyUnresolved     Strategy = "unresolved"
)

// ResolveCreated finds the id of the kind object created by an executed transaction.
//
// The object-change list is checked first for a created entry whose type matches kind.
// Failing that, the first effects.created reference is returned without a type check.
// An empty id with StrategyUnresolved means the transaction succeeded but the id is unknown.
func ResolveCreated(block *chain.TransactionBlock, kind Kind, expected string) (string, Strategy) {
	if block == nil {
		return "", StrategyUnresolved
	}

	for _, change := range block.ObjectChanges {
		created, ok := change.(*chain.CreatedChange)
		if !ok {
			continue
		}
		if MatchType(created.ObjectType, kind, expected) != MatchNone {
			return created.ObjectID, StrategyObjectChanges
		}
	}

	if block.Effects != nil && len(block.Effects.Created) > 0 {
		if id := block.Effects.Created[0].Reference.ObjectID; id != "" {
			return id, StrategyEffectsCreated
		}
	}

	return "", StrategyUnresolved
}
