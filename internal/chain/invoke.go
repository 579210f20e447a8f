package chain

import (
	"context"
	"errors"
	"fmt"
	"strconv"
)

// =============================================================================
// Response Options
// =============================================================================

var objectDataOptions = map[string]bool{
	"showType":                true,
	"showOwner":               true,
	"showPreviousTransaction": true,
	"showContent":             true,
}

var transactionOptions = map[string]bool{
	"showEffects":       true,
	"showObjectChanges": true,
}

// ErrNoSigner is returned by ExecuteTransaction on a read-only client.
var ErrNoSigner = errors.New("chain client has no signer")

// ExecutionError reports a transaction that reached the chain but did not succeed.
type ExecutionError struct {
	Digest string
	Status ExecutionStatus
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("transaction %s failed: %s", e.Digest, e.Status.Error)
}

// =============================================================================
// Transaction Execution
// =============================================================================

// ExecuteTransaction builds the Move call with unsafe_moveCall, signs it and executes it,
// waiting for local execution so effects and object changes are populated.
func (c *Client) ExecuteTransaction(ctx context.Context, tx TxSpec) (*TransactionBlock, error) {
	if c.signer == nil {
		return nil, ErrNoSigner
	}

	budget := tx.GasBudget
	if budget == 0 {
		budget = c.gasBudget
	}
	typeArgs := tx.TypeArguments
	if typeArgs == nil {
		typeArgs = []string{}
	}
	args := tx.Arguments
	if args == nil {
		args = []interface{}{}
	}

	var built struct {
		TxBytes string `json:"txBytes"`
	}
	err := c.callInto(ctx, "unsafe_moveCall", []interface{}{
		c.signer.Address(),
		tx.Package,
		tx.Module,
		tx.Function,
		typeArgs,
		args,
		nil,
		strconv.FormatUint(budget, 10),
	}, &built)
	if err != nil {
		return nil, fmt.Errorf("build %s::%s: %w", tx.Module, tx.Function, err)
	}
	if built.TxBytes == "" {
		return nil, fmt.Errorf("build %s::%s: empty tx bytes", tx.Module, tx.Function)
	}

	sig, err := c.signer.SignTransaction(built.TxBytes)
	if err != nil {
		return nil, fmt.Errorf("sign transaction: %w", err)
	}

	var block TransactionBlock
	err = c.callInto(ctx, "sui_executeTransactionBlock", []interface{}{
		built.TxBytes,
		[]string{sig},
		transactionOptions,
		"WaitForLocalExecution",
	}, &block)
	if err != nil {
		return nil, fmt.Errorf("execute %s::%s: %w", tx.Module, tx.Function, err)
	}

	if block.Effects != nil && !block.Effects.Status.Succeeded() {
		return nil, &ExecutionError{Digest: block.Digest, Status: block.Effects.Status}
	}
	return &block, nil
}

// =============================================================================
// Reads
// =============================================================================

// GetObject fetches one object. A missing or deleted object yields (nil, nil).
func (c *Client) GetObject(ctx context.Context, id string) (*Object, error) {
	var resp ObjectResponse
	if err := c.callInto(ctx, "sui_getObject", []interface{}{id, objectDataOptions}, &resp); err != nil {
		return nil, err
	}
	if resp.Error != nil {
		switch resp.Error.Code {
		case "notExists", "deleted":
			return nil, nil
		default:
			return nil, fmt.Errorf("get object %s: %s", id, resp.Error.Code)
		}
	}
	return resp.Data, nil
}

// QueryTransactionsByFunction pages through transactions that invoked a Move function.
func (c *Client) QueryTransactionsByFunction(ctx context.Context, q FunctionQuery) (*TransactionPage, error) {
	query := map[string]interface{}{
		"filter": map[string]interface{}{
			"MoveFunction": map[string]interface{}{
				"package":  q.Package,
				"module":   q.Module,
				"function": q.Function,
			},
		},
		"options": transactionOptions,
	}

	var page TransactionPage
	if err := c.callInto(ctx, "suix_queryTransactionBlocks", []interface{}{query, q.Cursor, q.Limit, q.Descending}, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// ListOwnedObjects pages through objects of a struct type owned by an address.
func (c *Client) ListOwnedObjects(ctx context.Context, q OwnedQuery) (*ObjectPage, error) {
	query := map[string]interface{}{
		"filter":  map[string]interface{}{"StructType": q.StructType},
		"options": objectDataOptions,
	}

	var page ObjectPage
	if err := c.callInto(ctx, "suix_getOwnedObjects", []interface{}{q.Owner, query, q.Cursor, q.Limit}, &page); err != nil {
		return nil, err
	}
	return &page, nil
}
