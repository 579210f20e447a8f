package chain

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Fake Node
// =============================================================================

type rpcHandler func(params []json.RawMessage) (interface{}, *RPCError)

type fakeNode struct {
	mu       sync.Mutex
	handlers map[string]rpcHandler
	calls    []string
}

func newFakeNode(t *testing.T) (*fakeNode, *httptest.Server) {
	t.Helper()
	n := &fakeNode{handlers: make(map[string]rpcHandler)}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Method string            `json:"method"`
			Params []json.RawMessage `json:"params"`
			ID     uint64            `json:"id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		n.mu.Lock()
		n.calls = append(n.calls, req.Method)
		h := n.handlers[req.Method]
		n.mu.Unlock()

		resp := map[string]interface{}{"jsonrpc": "2.0", "id": req.ID}
		if h == nil {
			resp["error"] = RPCError{Code: -32601, Message: "method not found"}
		} else if result, rpcErr := h(req.Params); rpcErr != nil {
			resp["error"] = rpcErr
		} else {
			resp["result"] = result
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return n, srv
}

func (n *fakeNode) handle(method string, h rpcHandler) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.handlers[method] = h
}

func (n *fakeNode) methods() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.calls...)
}

func rawJSON(s string) interface{} {
	return json.RawMessage(s)
}

// =============================================================================
// Client Tests
// =============================================================================

func TestNewClient_RequiresURL(t *testing.T) {
	_, err := NewClient(Config{})
	assert.Error(t, err)
}

func TestClient_Call_RPCError(t *testing.T) {
	_, srv := newFakeNode(t)
	c, err := NewClient(Config{RPCURL: srv.URL, Timeout: time.Second})
	require.NoError(t, err)

	_, err = c.Call(context.Background(), "unknown_method", nil)
	require.Error(t, err)

	var rpcErr *RPCError
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, -32601, rpcErr.Code)
}

func TestClient_GetObject_MoveObject(t *testing.T) {
	node, srv := newFakeNode(t)
	node.handle("sui_getObject", func(params []json.RawMessage) (interface{}, *RPCError) {
		var id string
		require.NoError(t, json.Unmarshal(params[0], &id))
		assert.Equal(t, "0xs1", id)
		return rawJSON(`{"data":{
			"objectId":"0xs1","version":"17","digest":"dig",
			"type":"0xpkg::attestation::Schema",
			"owner":{"AddressOwner":"0xalice"},
			"previousTransaction":"txd",
			"content":{"dataType":"moveObject","type":"0xpkg::attestation::Schema","hasPublicTransfer":true,
				"fields":{"name":"kyc","created_at":"1700000000000"}}
		}}`), nil
	})

	c, err := NewClient(Config{RPCURL: srv.URL})
	require.NoError(t, err)

	obj, err := c.GetObject(context.Background(), "0xs1")
	require.NoError(t, err)
	require.NotNil(t, obj)

	assert.Equal(t, SequenceNumber("17"), obj.Version)
	assert.Equal(t, uint64(17), obj.Version.Uint64())
	assert.Equal(t, Owner{Kind: OwnerAddress, Address: "0xalice"}, obj.Owner)
	assert.Equal(t, "0xalice", obj.Owner.String())
	assert.Equal(t, "txd", obj.PreviousTransaction)

	content, ok := obj.Content.(*MoveObjectContent)
	require.True(t, ok)
	assert.JSONEq(t, `{"name":"kyc","created_at":"1700000000000"}`, string(content.Fields))
}

func TestClient_GetObject_NotExists(t *testing.T) {
	node, srv := newFakeNode(t)
	node.handle("sui_getObject", func([]json.RawMessage) (interface{}, *RPCError) {
		return rawJSON(`{"error":{"code":"notExists","object_id":"0xgone"}}`), nil
	})

	c, err := NewClient(Config{RPCURL: srv.URL})
	require.NoError(t, err)

	obj, err := c.GetObject(context.Background(), "0xgone")
	require.NoError(t, err)
	assert.Nil(t, obj)
}

func TestClient_QueryTransactionsByFunction(t *testing.T) {
	node, srv := newFakeNode(t)
	node.handle("suix_queryTransactionBlocks", func(params []json.RawMessage) (interface{}, *RPCError) {
		require.Len(t, params, 4)
		var query map[string]map[string]map[string]string
		require.NoError(t, json.Unmarshal(params[0], &query))
		assert.Equal(t, "create_schema", query["filter"]["MoveFunction"]["function"])
		assert.JSONEq(t, `"c1"`, string(params[1]))
		assert.JSONEq(t, `20`, string(params[2]))
		assert.JSONEq(t, `true`, string(params[3]))

		return rawJSON(`{"data":[{"digest":"tx1",
			"effects":{"status":{"status":"success"},"created":[{"owner":{"AddressOwner":"0xa"},"reference":{"objectId":"0xs1","version":3,"digest":"d"}}]},
			"objectChanges":[
				{"type":"mutated","sender":"0xa","owner":{"AddressOwner":"0xa"},"objectType":"0x2::coin::Coin<0x2::sui::SUI>","objectId":"0xgas","version":"4","previousVersion":"3","digest":"g"},
				{"type":"created","sender":"0xa","owner":"Immutable","objectType":"0xpkg::attestation::Schema","objectId":"0xs1","version":"3","digest":"d"},
				{"type":"published","packageId":"0xp","version":"1","digest":"p","modules":["attestation"]},
				{"type":"somethingNew","objectId":"0xz"}
			]}],"nextCursor":"c2","hasNextPage":true}`), nil
	})

	c, err := NewClient(Config{RPCURL: srv.URL})
	require.NoError(t, err)

	cursor := "c1"
	page, err := c.QueryTransactionsByFunction(context.Background(), FunctionQuery{
		Package: "0xpkg", Module: "attestation", Function: "create_schema",
		Cursor: &cursor, Limit: 20, Descending: true,
	})
	require.NoError(t, err)
	require.Len(t, page.Data, 1)
	assert.True(t, page.HasNextPage)
	require.NotNil(t, page.NextCursor)
	assert.Equal(t, "c2", *page.NextCursor)

	tx := page.Data[0]
	require.Len(t, tx.ObjectChanges, 4)
	assert.IsType(t, &MutatedChange{}, tx.ObjectChanges[0])
	created, ok := tx.ObjectChanges[1].(*CreatedChange)
	require.True(t, ok)
	assert.Equal(t, "0xs1", created.ObjectID)
	assert.Equal(t, OwnerImmutable, created.Owner.Kind)
	assert.IsType(t, &PublishedChange{}, tx.ObjectChanges[2])
	assert.Equal(t, ChangeType("somethingNew"), tx.ObjectChanges[3].ChangeType())

	require.NotNil(t, tx.Effects)
	require.Len(t, tx.Effects.Created, 1)
	assert.Equal(t, SequenceNumber("3"), tx.Effects.Created[0].Reference.Version)
}

func TestClient_ListOwnedObjects(t *testing.T) {
	node, srv := newFakeNode(t)
	node.handle("suix_getOwnedObjects", func(params []json.RawMessage) (interface{}, *RPCError) {
		assert.JSONEq(t, `"0xalice"`, string(params[0]))
		assert.JSONEq(t, `null`, string(params[2]))
		return rawJSON(`{"data":[
			{"data":{"objectId":"0xa1","version":"1","digest":"d","type":"0xpkg::attestation::Attestation","owner":{"AddressOwner":"0xalice"},"content":{"dataType":"package","disassembled":{}}}},
			{"error":{"code":"displayError"}}
		],"nextCursor":null,"hasNextPage":false}`), nil
	})

	c, err := NewClient(Config{RPCURL: srv.URL})
	require.NoError(t, err)

	page, err := c.ListOwnedObjects(context.Background(), OwnedQuery{Owner: "0xalice", StructType: "0xpkg::attestation::Attestation", Limit: 10})
	require.NoError(t, err)
	require.Len(t, page.Data, 2)
	assert.IsType(t, &PackageContent{}, page.Data[0].Data.Content)
	assert.Nil(t, page.Data[1].Data)
	assert.Nil(t, page.NextCursor)
}

func TestClient_ExecuteTransaction(t *testing.T) {
	signer, err := NewSigner(make([]byte, 32))
	require.NoError(t, err)

	node, srv := newFakeNode(t)
	node.handle("unsafe_moveCall", func(params []json.RawMessage) (interface{}, *RPCError) {
		require.Len(t, params, 8)
		assert.JSONEq(t, `"`+signer.Address()+`"`, string(params[0]))
		assert.JSONEq(t, `"create_schema"`, string(params[3]))
		assert.JSONEq(t, `["kyc","desc","{}","0x6"]`, string(params[5]))
		assert.JSONEq(t, `"1000"`, string(params[7]))
		return map[string]string{"txBytes": "AAEC"}, nil
	})
	node.handle("sui_executeTransactionBlock", func(params []json.RawMessage) (interface{}, *RPCError) {
		assert.JSONEq(t, `"AAEC"`, string(params[0]))
		var sigs []string
		require.NoError(t, json.Unmarshal(params[1], &sigs))
		assert.Len(t, sigs, 1)
		return rawJSON(`{"digest":"D1","effects":{"status":{"status":"success"}},"objectChanges":[]}`), nil
	})

	c, err := NewClient(Config{RPCURL: srv.URL, Signer: signer, GasBudget: 1000})
	require.NoError(t, err)

	block, err := c.ExecuteTransaction(context.Background(), TxSpec{
		Package: "0xpkg", Module: "attestation", Function: "create_schema",
		Arguments: []interface{}{"kyc", "desc", "{}", "0x6"},
	})
	require.NoError(t, err)
	assert.Equal(t, "D1", block.Digest)
	assert.Equal(t, []string{"unsafe_moveCall", "sui_executeTransactionBlock"}, node.methods())
}

func TestClient_ExecuteTransaction_Failure(t *testing.T) {
	signer, err := NewSigner(make([]byte, 32))
	require.NoError(t, err)

	node, srv := newFakeNode(t)
	node.handle("unsafe_moveCall", func([]json.RawMessage) (interface{}, *RPCError) {
		return map[string]string{"txBytes": "AAEC"}, nil
	})
	node.handle("sui_executeTransactionBlock", func([]json.RawMessage) (interface{}, *RPCError) {
		return rawJSON(`{"digest":"D2","effects":{"status":{"status":"failure","error":"MoveAbort"}}}`), nil
	})

	c, err := NewClient(Config{RPCURL: srv.URL, Signer: signer})
	require.NoError(t, err)

	_, err = c.ExecuteTransaction(context.Background(), TxSpec{Package: "0xpkg", Module: "attestation", Function: "create_schema"})
	var execErr *ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, "D2", execErr.Digest)
	assert.Contains(t, err.Error(), "MoveAbort")
}

func TestClient_ExecuteTransaction_ReadOnly(t *testing.T) {
	c, err := NewClient(Config{RPCURL: "http://127.0.0.1:1"})
	require.NoError(t, err)

	_, err = c.ExecuteTransaction(context.Background(), TxSpec{})
	assert.ErrorIs(t, err, ErrNoSigner)
	assert.Empty(t, c.Address())
}
