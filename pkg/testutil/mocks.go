// Package testutil provides common testing utilities and fakes.
package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/R3E-Network/attestation_layer/internal/chain"
)

// =============================================================================
// Fake Chain Gateway
// =============================================================================

// FakeGateway is an in-memory chain gateway. Transaction pages are keyed by the cursor
// that requests them; the empty string keys the first page.
type FakeGateway struct {
	mu sync.Mutex

	objects   *MemoryStore[string, *chain.Object]
	failing   map[string]error
	txPages   map[string]chain.TransactionPage
	owned     map[string]chain.ObjectPage
	queryErrs []error
	ownedErr  error

	// ExecuteFunc handles ExecuteTransaction; nil returns an error.
	ExecuteFunc func(tx chain.TxSpec) (*chain.TransactionBlock, error)

	executed    []chain.TxSpec
	queries     []chain.FunctionQuery
	ownedCalls  []chain.OwnedQuery
	objectCalls map[string]int
}

// NewFakeGateway creates an empty fake gateway.
func NewFakeGateway() *FakeGateway {
	return &FakeGateway{
		objects:     NewMemoryStore[string, *chain.Object](),
		failing:     make(map[string]error),
		txPages:     make(map[string]chain.TransactionPage),
		owned:       make(map[string]chain.ObjectPage),
		objectCalls: make(map[string]int),
	}
}

// AddObject makes obj fetchable by id.
func (g *FakeGateway) AddObject(obj *chain.Object) {
	g.objects.Set(obj.ObjectID, obj)
}

// FailObject makes fetching id return err.
func (g *FakeGateway) FailObject(id string, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failing[id] = err
}

// SetTransactionPage registers the page returned for cursor ("" for the first page).
func (g *FakeGateway) SetTransactionPage(cursor string, page chain.TransactionPage) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.txPages[cursor] = page
}

// FailQueries makes the next transaction queries fail, one error per call.
func (g *FakeGateway) FailQueries(errs ...error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.queryErrs = append(g.queryErrs, errs...)
}

// SetOwnedPage registers the owned-objects page for owner.
func (g *FakeGateway) SetOwnedPage(owner string, page chain.ObjectPage) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.owned[owner] = page
}

// FailOwned makes owned-object listing fail.
func (g *FakeGateway) FailOwned(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.ownedErr = err
}

// ExecuteTransaction implements the gateway.
func (g *FakeGateway) ExecuteTransaction(_ context.Context, tx chain.TxSpec) (*chain.TransactionBlock, error) {
	g.mu.Lock()
	g.executed = append(g.executed, tx)
	fn := g.ExecuteFunc
	g.mu.Unlock()

	if fn == nil {
		return nil, fmt.Errorf("fake gateway: no ExecuteFunc")
	}
	return fn(tx)
}

// GetObject implements the gateway.
func (g *FakeGateway) GetObject(ctx context.Context, id string) (*chain.Object, error) {
	g.mu.Lock()
	g.objectCalls[id]++
	err := g.failing[id]
	g.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	obj, ok := g.objects.Get(id)
	if !ok {
		return nil, nil
	}
	return obj, nil
}

// QueryTransactionsByFunction implements the gateway.
func (g *FakeGateway) QueryTransactionsByFunction(_ context.Context, q chain.FunctionQuery) (*chain.TransactionPage, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.queries = append(g.queries, q)

	if len(g.queryErrs) > 0 {
		err := g.queryErrs[0]
		g.queryErrs = g.queryErrs[1:]
		if err != nil {
			return nil, err
		}
	}

	key := ""
	if q.Cursor != nil {
		key = *q.Cursor
	}
	page, ok := g.txPages[key]
	if !ok {
		return &chain.TransactionPage{}, nil
	}
	return &page, nil
}

// ListOwnedObjects implements the gateway.
func (g *FakeGateway) ListOwnedObjects(_ context.Context, q chain.OwnedQuery) (*chain.ObjectPage, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.ownedCalls = append(g.ownedCalls, q)

	if g.ownedErr != nil {
		return nil, g.ownedErr
	}
	page := g.owned[q.Owner]
	return &page, nil
}

// Executed returns every submitted transaction.
func (g *FakeGateway) Executed() []chain.TxSpec {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]chain.TxSpec(nil), g.executed...)
}

// Queries returns every transaction query.
func (g *FakeGateway) Queries() []chain.FunctionQuery {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]chain.FunctionQuery(nil), g.queries...)
}

// OwnedQueries returns every owned-objects query.
func (g *FakeGateway) OwnedQueries() []chain.OwnedQuery {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]chain.OwnedQuery(nil), g.ownedCalls...)
}

// ObjectFetches returns how many times id was fetched.
func (g *FakeGateway) ObjectFetches(id string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.objectCalls[id]
}

// TotalObjectFetches returns the number of GetObject calls.
func (g *FakeGateway) TotalObjectFetches() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, c := range g.objectCalls {
		n += c
	}
	return n
}

// =============================================================================
// Fixture Builders
// =============================================================================

// MoveObject builds an address-owned Move object with the given fields.
func MoveObject(id, typ, owner string, fields map[string]interface{}) *chain.Object {
	raw, err := json.Marshal(fields)
	if err != nil {
		panic(err)
	}
	return &chain.Object{
		ObjectID:            id,
		Version:             "1",
		Digest:              "dig-" + id,
		Type:                typ,
		Owner:               chain.Owner{Kind: chain.OwnerAddress, Address: owner},
		PreviousTransaction: "tx-" + id,
		Content:             &chain.MoveObjectContent{Type: typ, Fields: raw},
	}
}

// CreatedChange builds a "created" object-change entry.
func CreatedChange(id, typ string) chain.ObjectChange {
	return &chain.CreatedChange{ObjectID: id, ObjectType: typ, Version: "1", Digest: "dig-" + id}
}

// Effects builds successful effects listing ids as created.
func Effects(ids ...string) *chain.TransactionEffects {
	eff := &chain.TransactionEffects{Status: chain.ExecutionStatus{Status: "success"}}
	for _, id := range ids {
		eff.Created = append(eff.Created, chain.OwnedObjectRef{Reference: chain.ObjectRef{ObjectID: id, Version: "1"}})
	}
	return eff
}

// Tx builds a transaction block.
func Tx(digest string, changes []chain.ObjectChange, effects *chain.TransactionEffects) chain.TransactionBlock {
	return chain.TransactionBlock{Digest: digest, ObjectChanges: changes, Effects: effects}
}

// Cursor returns a pointer to s.
func Cursor(s string) *string {
	return &s
}

// =============================================================================
// Generic Store
// =============================================================================

// MemoryStore is a generic in-memory store for testing.
type MemoryStore[K comparable, V any] struct {
	mu    sync.RWMutex
	items map[K]V
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore[K comparable, V any]() *MemoryStore[K, V] {
	return &MemoryStore[K, V]{items: make(map[K]V)}
}

// Set stores an item.
func (s *MemoryStore[K, V]) Set(key K, value V) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[key] = value
}

// Get retrieves an item.
func (s *MemoryStore[K, V]) Get(key K) (V, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.items[key]
	return v, ok
}

// Count returns the number of items.
func (s *MemoryStore[K, V]) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// GenerateDigest returns a unique fake transaction digest.
func GenerateDigest() string {
	return "tx-" + uuid.NewString()
}
