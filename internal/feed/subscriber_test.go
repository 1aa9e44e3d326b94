package feed_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mitraexpress/dispatch-service/internal/entities"
	"github.com/mitraexpress/dispatch-service/internal/feed"
	"github.com/mitraexpress/dispatch-service/internal/match"
	"github.com/mitraexpress/dispatch-service/internal/store"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func poolOrder(id string, status entities.Status, createdAt time.Time) entities.Order {
	return entities.Order{
		ID:        id,
		KodeOrder: "MTR-" + id,
		Service:   entities.ServiceRide,
		Tarif:     20000,
		Status:    status,
		CreatedAt: createdAt,
	}
}

// Лента показывает только доступные заказы: SEARCHING, с ненулевым
// остатком и не принятые этим курьером.
func TestSubscriber_FiltersSnapshot(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	st := store.NewMemoryStore()
	require.NoError(t, st.Write(ctx, poolOrder("searching", entities.StatusSearching, now)))
	require.NoError(t, st.Write(ctx, poolOrder("assigned", entities.StatusAssigned, now)))
	require.NoError(t, st.Write(ctx, poolOrder("expired", entities.StatusSearching, now.Add(-entities.SearchWindow))))
	require.NoError(t, st.Write(ctx, poolOrder("claimed", entities.StatusSearching, now)))

	claimed := match.NewClaimedSet()
	claimed.Add("claimed")

	view := feed.NewView()
	sub := feed.NewSubscriber(discardLogger(), st, view, claimed)
	require.NoError(t, sub.Start(ctx))
	defer sub.Stop()

	current := view.Current()
	require.Len(t, current, 1)
	assert.Equal(t, "searching", current[0].ID)
	assert.Positive(t, current[0].TimeRemaining)
}

func TestSubscriber_MissingCreatedAtGetsFullWindow(t *testing.T) {
	ctx := context.Background()

	st := store.NewMemoryStore()
	require.NoError(t, st.Write(ctx, poolOrder("no-created-at", entities.StatusSearching, time.Time{})))

	view := feed.NewView()
	sub := feed.NewSubscriber(discardLogger(), st, view, nil)
	require.NoError(t, sub.Start(ctx))
	defer sub.Stop()

	current := view.Current()
	require.Len(t, current, 1)
	assert.Equal(t, 300, current[0].TimeRemaining)
}

func TestSubscriber_AssignedOrderLeavesFeed(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	st := store.NewMemoryStore()
	require.NoError(t, st.Write(ctx, poolOrder("order-1", entities.StatusSearching, now)))
	require.NoError(t, st.Write(ctx, poolOrder("order-2", entities.StatusSearching, now)))

	view := feed.NewView()
	sub := feed.NewSubscriber(discardLogger(), st, view, nil)
	require.NoError(t, sub.Start(ctx))
	defer sub.Stop()

	require.Len(t, view.Current(), 2)

	// другой курьер выигрывает order-1 — заказ исчезает из ленты по срезу
	_, err := st.ConditionalAssign(ctx, "order-1", entities.Courier{ID: "kurir-2", Name: "Siti"}, now)
	require.NoError(t, err)

	current := view.Current()
	require.Len(t, current, 1)
	assert.Equal(t, "order-2", current[0].ID)
}

func TestSubscriber_StopDetachesFromPool(t *testing.T) {
	ctx := context.Background()

	st := store.NewMemoryStore()
	view := feed.NewView()
	sub := feed.NewSubscriber(discardLogger(), st, view, nil)
	require.NoError(t, sub.Start(ctx))
	sub.Stop()

	require.NoError(t, st.Write(ctx, poolOrder("order-1", entities.StatusSearching, time.Now())))
	assert.Empty(t, view.Current())
}
