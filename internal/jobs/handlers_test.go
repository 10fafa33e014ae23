package jobs

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/404-Profit-Not-Found/neural-ticker-core-sub002/internal/domain"
	"github.com/404-Profit-Not-Found/neural-ticker-core-sub002/internal/queue"
	testingpkg "github.com/404-Profit-Not-Found/neural-ticker-core-sub002/internal/testing"
)

type memoryCatalog struct {
	upserted []domain.SyncTarget
}

func (c *memoryCatalog) Upsert(_ context.Context, target domain.SyncTarget) error {
	c.upserted = append(c.upserted, target)
	return nil
}

func newHandlerFixture() (*queue.Registry, *testingpkg.MockMarketData, *memoryStore, *memoryCatalog) {
	registry := queue.NewRegistry()
	market := testingpkg.NewMockMarketData()
	store := newMemoryStore()
	catalog := &memoryCatalog{}
	RegisterQueueHandlers(registry, &HandlerDeps{
		MarketData:  market,
		Store:       store,
		Catalog:     catalog,
		HistoryDays: 30,
	})
	return registry, market, store, catalog
}

func TestRegisterQueueHandlers(t *testing.T) {
	registry, _, _, _ := newHandlerFixture()
	assert.Equal(t, []queue.Kind{queue.KindAddInstrument, queue.KindBackfillHistory, queue.KindSyncSnapshot}, registry.Kinds())
}

func TestAddInstrumentHandler(t *testing.T) {
	registry, market, store, catalog := newHandlerFixture()

	err := registry.Get(queue.KindAddInstrument).Handle(context.Background(),
		json.RawMessage(`{"symbol":" sap.de ","exchange":"XETRA","name":"SAP SE"}`))
	require.NoError(t, err)

	assert.Equal(t, []string{"SAP.DE"}, market.SnapshotCalls())
	require.Len(t, catalog.upserted, 1)
	assert.Equal(t, domain.SyncTarget{Symbol: "SAP.DE", Exchange: "XETRA", Name: "SAP SE"}, catalog.upserted[0])
	assert.Contains(t, store.snapshots, "SAP.DE")
}

func TestAddInstrumentHandler_UnknownSymbolNotTracked(t *testing.T) {
	registry, market, _, catalog := newHandlerFixture()
	market.SnapshotErrs["ZZZZ"] = domain.NewPermanentError("quote", domain.ErrNotFound)

	err := registry.Get(queue.KindAddInstrument).Handle(context.Background(), json.RawMessage(`{"symbol":"ZZZZ"}`))
	require.Error(t, err)
	assert.True(t, domain.IsPermanent(err))
	assert.Empty(t, catalog.upserted)
}

func TestSyncSnapshotHandler_RateLimitedIsRetryable(t *testing.T) {
	registry, market, _, _ := newHandlerFixture()
	market.SnapshotErrs["AAPL"] = domain.ErrRateLimited

	err := registry.Get(queue.KindSyncSnapshot).Handle(context.Background(), json.RawMessage(`{"symbol":"AAPL"}`))
	assert.True(t, domain.IsRetryable(err))
}

func TestBackfillHistoryHandler(t *testing.T) {
	registry, market, store, _ := newHandlerFixture()
	market.HistoryLength = 400

	err := registry.Get(queue.KindBackfillHistory).Handle(context.Background(), json.RawMessage(`{"symbol":"AAPL"}`))
	require.NoError(t, err)
	assert.Len(t, store.candles["AAPL"], 30, "default days applied")

	err = registry.Get(queue.KindBackfillHistory).Handle(context.Background(), json.RawMessage(`{"symbol":"AAPL","days":90}`))
	require.NoError(t, err)
	assert.Len(t, store.candles["AAPL"], 90)
}

func TestHandlers_BadPayloadIsPermanent(t *testing.T) {
	registry, _, _, _ := newHandlerFixture()

	for _, kind := range registry.Kinds() {
		t.Run(string(kind), func(t *testing.T) {
			err := registry.Get(kind).Handle(context.Background(), json.RawMessage(`{"symbol":""}`))
			assert.True(t, domain.IsPermanent(err))

			err = registry.Get(kind).Handle(context.Background(), json.RawMessage(`[1,2]`))
			assert.True(t, domain.IsPermanent(err))
		})
	}
}
