package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/R3E-Network/attestation_layer/internal/chain"
	svcerrors "github.com/R3E-Network/attestation_layer/internal/errors"
	"github.com/R3E-Network/attestation_layer/pkg/testutil"
)

func TestOwnerScanner_ScanOwnedObjects(t *testing.T) {
	gw := testutil.NewFakeGateway()
	noContent := attestationObject("0xa9", "0x51")
	noContent.Content = nil

	gw.SetOwnedPage(alice, chain.ObjectPage{
		Data: []chain.ObjectResponse{
			{Data: attestationObject("0xa1", "0x51")},
			{Error: &chain.ObjectError{Code: "displayError"}},
			{Data: noContent},
			{Data: attestationObject("0xa2", "0x51")},
			{Data: attestationObject("0xa1", "0x51")},
		},
		NextCursor:  testutil.Cursor("owned-2"),
		HasNextPage: true,
	})

	s := NewOwnerScanner(gw, testContract())
	page, err := s.ScanOwnedObjects(context.Background(), KindAttestation, alice, 5, testutil.Cursor("owned-1"))
	require.NoError(t, err)

	assert.Equal(t, []string{"0xa1", "0xa2"}, recordIDs(page.Items))
	// Paging state is the node's, not the local heuristic.
	assert.True(t, page.HasNextPage)
	assert.Equal(t, "owned-2", *page.NextCursor)

	queries := gw.OwnedQueries()
	require.Len(t, queries, 1)
	assert.Equal(t, chain.OwnedQuery{
		Owner:      alice,
		StructType: attestationType,
		Cursor:     testutil.Cursor("owned-1"),
		Limit:      5,
	}, queries[0])
}

func TestOwnerScanner_UpstreamFailure(t *testing.T) {
	gw := testutil.NewFakeGateway()
	gw.FailOwned(errors.New("index unavailable"))

	_, err := NewOwnerScanner(gw, testContract()).ScanOwnedObjects(context.Background(), KindSchema, alice, 5, nil)
	assert.True(t, svcerrors.Is(err, svcerrors.CodeUpstreamUnavailable))
}
