package registry

import "strings"

// MatchTier is the strength with which an observed type string matched a kind.
type MatchTier int

const (
	MatchNone MatchTier = iota
	MatchExact
	MatchSuffix
	MatchSubstring
)

func (t MatchTier) String() string {
	switch t {
	case MatchExact:
		return "exact"
	case MatchSuffix:
		return "suffix"
	case MatchSubstring:
		return "substring"
	default:
		return "none"
	}
}

// MatchType compares an observed type against the fully-qualified expected type for kind.
// Tiers are tried in order and the first that matches wins: exact equality, then a
// "::Kind" suffix, then "::Kind" anywhere in the string.
//
// The looser tiers tolerate address normalization differences between the configured
// package id and what the node reports, at the cost of possible false positives on
// unrelated types that embed the same "::Kind" token.
func MatchType(observed string, kind Kind, expected string) MatchTier {
	if observed == "" {
		return MatchNone
	}
	if observed == expected {
		return MatchExact
	}
	token := "::" + string(kind)
	if strings.HasSuffix(observed, token) {
		return MatchSuffix
	}
	if strings.Contains(observed, token) {
		return MatchSubstring
	}
	return MatchNone
}
