package registry

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/R3E-Network/attestation_layer/internal/chain"
	svcerrors "github.com/R3E-Network/attestation_layer/internal/errors"
	"github.com/R3E-Network/attestation_layer/pkg/testutil"
)

func filler(gw *testutil.FakeGateway, prefix string, n int) []chain.TransactionBlock {
	txs := make([]chain.TransactionBlock, 0, n)
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("0x%s%02d", prefix, i)
		gw.AddObject(testutil.MoveObject(id, coinType, alice, map[string]interface{}{}))
		txs = append(txs, testutil.Tx("fill-"+id, nil, testutil.Effects(id)))
	}
	return txs
}

// threePageHistory has five schemas across pages one and two; 0x51 and 0x54 appear
// in both object changes and effects, and 0x51 reappears on page two.
func threePageHistory(t *testing.T) *testutil.FakeGateway {
	t.Helper()
	gw := testutil.NewFakeGateway()
	for _, id := range []string{"0x51", "0x52", "0x53", "0x54", "0x55", "0x56"} {
		gw.AddObject(schemaObject(id))
	}
	gw.FailObject("0xbad", errors.New("connection reset"))

	page1 := []chain.TransactionBlock{
		testutil.Tx("t1", []chain.ObjectChange{testutil.CreatedChange("0x51", schemaType)}, testutil.Effects("0x51")),
		testutil.Tx("t2", []chain.ObjectChange{testutil.CreatedChange("0x52", schemaType)}, nil),
		testutil.Tx("t3", nil, testutil.Effects("0x53")),
		testutil.Tx("t4", []chain.ObjectChange{testutil.CreatedChange("0xc0", coinType)}, testutil.Effects("0xc0")),
		testutil.Tx("t5", nil, testutil.Effects("0xbad")),
	}
	page1 = append(page1, filler(gw, "f1", 5)...)

	page2 := []chain.TransactionBlock{
		testutil.Tx("t11", []chain.ObjectChange{testutil.CreatedChange("0x54", schemaType)}, testutil.Effects("0x54")),
		testutil.Tx("t12", []chain.ObjectChange{testutil.CreatedChange("0x55", schemaType)}, nil),
		testutil.Tx("t13", []chain.ObjectChange{testutil.CreatedChange("0x51", schemaType)}, nil),
	}
	page2 = append(page2, filler(gw, "f2", 7)...)

	page3 := []chain.TransactionBlock{
		testutil.Tx("t21", []chain.ObjectChange{testutil.CreatedChange("0x56", schemaType)}, nil),
	}
	page3 = append(page3, filler(gw, "f3", 9)...)

	gw.SetTransactionPage("", chain.TransactionPage{Data: page1, NextCursor: testutil.Cursor("c1"), HasNextPage: true})
	gw.SetTransactionPage("c1", chain.TransactionPage{Data: page2, NextCursor: testutil.Cursor("c2"), HasNextPage: true})
	gw.SetTransactionPage("c2", chain.TransactionPage{Data: page3, NextCursor: testutil.Cursor("c3"), HasNextPage: true})
	return gw
}

func TestHistoryScanner_StopsOnceLimitAccumulated(t *testing.T) {
	gw := threePageHistory(t)
	s := newTestHistoryScanner(gw)

	page, err := s.ScanCreatedObjects(context.Background(), KindSchema, 5, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"0x51", "0x52", "0x53", "0x54", "0x55"}, recordIDs(page.Items))
	assert.True(t, page.HasNextPage)
	require.NotNil(t, page.NextCursor)
	assert.Equal(t, "c2", *page.NextCursor)

	queries := gw.Queries()
	require.Len(t, queries, 2)
	assert.Nil(t, queries[0].Cursor)
	require.NotNil(t, queries[1].Cursor)
	assert.Equal(t, "c1", *queries[1].Cursor)
	for _, q := range queries {
		assert.Equal(t, 10, q.Limit)
		assert.True(t, q.Descending)
		assert.Equal(t, "create_schema", q.Function)
		assert.Equal(t, testPackage, q.Package)
		assert.Equal(t, "attestation", q.Module)
	}

	assert.Equal(t, 1, gw.ObjectFetches("0x51"))
	assert.Equal(t, 1, gw.ObjectFetches("0x54"))
	assert.Equal(t, 0, gw.ObjectFetches("0x56"))
	// A typed mismatch in object changes is not re-fetched from effects.
	assert.Equal(t, 0, gw.ObjectFetches("0xc0"))
}

func TestHistoryScanner_NoDuplicatesWithinPage(t *testing.T) {
	gw := threePageHistory(t)
	s := newTestHistoryScanner(gw)

	page, err := s.ScanCreatedObjects(context.Background(), KindSchema, 50, nil)
	require.NoError(t, err)

	ids := recordIDs(page.Items)
	assert.ElementsMatch(t, []string{"0x51", "0x52", "0x53", "0x54", "0x55", "0x56"}, ids)
	seen := map[string]bool{}
	for _, id := range ids {
		assert.False(t, seen[id], "duplicate %s", id)
		seen[id] = true
	}
	// The walk ends at the first page reporting no more transactions.
	assert.False(t, page.HasNextPage)
	assert.Len(t, gw.Queries(), 4)
}

func TestHistoryScanner_FullPageWithoutUpstreamMore(t *testing.T) {
	gw := testutil.NewFakeGateway()
	gw.AddObject(schemaObject("0x51"))
	gw.AddObject(schemaObject("0x52"))
	gw.SetTransactionPage("", chain.TransactionPage{
		Data: []chain.TransactionBlock{
			testutil.Tx("t1", []chain.ObjectChange{testutil.CreatedChange("0x51", schemaType)}, nil),
			testutil.Tx("t2", []chain.ObjectChange{testutil.CreatedChange("0x52", schemaType)}, nil),
		},
		NextCursor: testutil.Cursor("end"),
	})

	page, err := newTestHistoryScanner(gw).ScanCreatedObjects(context.Background(), KindSchema, 2, nil)
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)
	assert.False(t, page.HasNextPage)
	require.NotNil(t, page.NextCursor)
	assert.Equal(t, "end", *page.NextCursor)
	assert.Len(t, gw.Queries(), 1)
}

func TestHistoryScanner_TruncatesToLimit(t *testing.T) {
	gw := threePageHistory(t)

	page, err := newTestHistoryScanner(gw).ScanCreatedObjects(context.Background(), KindSchema, 2, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"0x51", "0x52"}, recordIDs(page.Items))
	assert.True(t, page.HasNextPage)
	assert.Equal(t, "c1", *page.NextCursor)
	assert.Equal(t, 4, gw.Queries()[0].Limit)
}

func TestHistoryScanner_ResumesFromCursor(t *testing.T) {
	gw := threePageHistory(t)

	page, err := newTestHistoryScanner(gw).ScanCreatedObjects(context.Background(), KindSchema, 1, testutil.Cursor("c2"))
	require.NoError(t, err)
	assert.Equal(t, []string{"0x56"}, recordIDs(page.Items))
	assert.Equal(t, "c3", *page.NextCursor)
}

func TestHistoryScanner_SkipsFailedCandidates(t *testing.T) {
	gw := testutil.NewFakeGateway()
	gw.AddObject(schemaObject("0x51"))
	gw.FailObject("0x52", errors.New("timeout"))
	gw.SetTransactionPage("", chain.TransactionPage{Data: []chain.TransactionBlock{
		testutil.Tx("t1", nil, testutil.Effects("0x52", "0x51", "0x53")),
	}})

	page, err := newTestHistoryScanner(gw).ScanCreatedObjects(context.Background(), KindSchema, 5, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"0x51"}, recordIDs(page.Items))
	assert.False(t, page.HasNextPage)
}

func TestHistoryScanner_QueryFailurePropagates(t *testing.T) {
	gw := testutil.NewFakeGateway()
	gw.FailQueries(errors.New("node down"))

	_, err := newTestHistoryScanner(gw).ScanCreatedObjects(context.Background(), KindAttestation, 5, nil)
	require.Error(t, err)
	assert.True(t, svcerrors.Is(err, svcerrors.CodeUpstreamUnavailable))
	assert.Contains(t, err.Error(), "node down")
	assert.Equal(t, "create_attestation", gw.Queries()[0].Function)
}

func TestHistoryScanner_CanceledContext(t *testing.T) {
	gw := threePageHistory(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestHistoryScanner(gw).ScanCreatedObjects(ctx, KindSchema, 5, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestHistoryScanner_MaxScanPages(t *testing.T) {
	gw := testutil.NewFakeGateway()
	for i := 0; i < 5; i++ {
		gw.SetTransactionPage(cursorKey(i), chain.TransactionPage{
			Data:        filler(gw, fmt.Sprintf("p%d", i), 2),
			NextCursor:  testutil.Cursor(cursorKey(i + 1)),
			HasNextPage: true,
		})
	}

	s := NewHistoryScanner(HistoryScannerConfig{Gateway: gw, Contract: testContract(), MaxScanPages: 3})
	page, err := s.ScanCreatedObjects(context.Background(), KindSchema, 5, nil)
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.False(t, page.HasNextPage)
	assert.Equal(t, "k3", *page.NextCursor)
	assert.Len(t, gw.Queries(), 3)
}

func cursorKey(i int) string {
	if i == 0 {
		return ""
	}
	return fmt.Sprintf("k%d", i)
}

func TestHistoryScanner_NonPositiveLimit(t *testing.T) {
	gw := testutil.NewFakeGateway()

	page, err := newTestHistoryScanner(gw).ScanCreatedObjects(context.Background(), KindSchema, 0, nil)
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.Empty(t, gw.Queries())
}

func TestQueryPageSize(t *testing.T) {
	assert.Equal(t, 2, QueryPageSize(1))
	assert.Equal(t, 40, QueryPageSize(20))
	assert.Equal(t, 100, QueryPageSize(50))
	assert.Equal(t, 100, QueryPageSize(80))
}

func TestCollectCandidates_SharedSeenSet(t *testing.T) {
	seen := map[string]struct{}{}
	txs := []chain.TransactionBlock{
		testutil.Tx("t1", []chain.ObjectChange{
			testutil.CreatedChange("0x51", schemaType),
			&chain.PublishedChange{PackageID: "0xabc"},
			&chain.UnknownChange{Type: "somethingNew"},
		}, testutil.Effects("0x51", "0x52")),
		testutil.Tx("t2", nil, testutil.Effects("0x52", "0x53")),
	}

	got := collectCandidates(txs, KindSchema, schemaType, seen)
	assert.Equal(t, []candidate{
		{ID: "0x51", Type: schemaType, Provenance: FromObjectChanges},
		{ID: "0x52", Provenance: FromEffectsCreated},
		{ID: "0x53", Provenance: FromEffectsCreated},
	}, got)

	assert.Empty(t, collectCandidates(txs, KindSchema, schemaType, seen))
}
