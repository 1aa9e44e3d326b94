package feed_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mitraexpress/dispatch-service/internal/entities"
	"github.com/mitraexpress/dispatch-service/internal/feed"
)

func available(id string, remaining int) feed.AvailableOrder {
	return feed.AvailableOrder{
		Order: entities.Order{
			ID:        id,
			Status:    entities.StatusSearching,
			CreatedAt: time.Now(),
		},
		TimeRemaining: remaining,
	}
}

func TestView_ApplyTick(t *testing.T) {
	testCases := []struct {
		name   string
		orders []feed.AvailableOrder
		want   map[string]int
	}{
		{
			name:   "decrements remaining",
			orders: []feed.AvailableOrder{available("a", 100), available("b", 5)},
			want:   map[string]int{"a": 99, "b": 4},
		},
		{
			name:   "evicts orders reaching zero",
			orders: []feed.AvailableOrder{available("a", 1), available("b", 2)},
			want:   map[string]int{"b": 1},
		},
		{
			name:   "empty view stays empty",
			orders: nil,
			want:   map[string]int{},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			view := feed.NewView()
			view.ApplyServerSnapshot(tc.orders)
			view.ApplyTick()

			current := view.Current()
			assert.Len(t, current, len(tc.want))
			for _, order := range current {
				assert.Equal(t, tc.want[order.ID], order.TimeRemaining)
			}
		})
	}
}

func TestView_ServerSnapshotWins(t *testing.T) {
	view := feed.NewView()
	view.ApplyServerSnapshot([]feed.AvailableOrder{available("a", 10)})

	// локальный тик уводит отсчёт вниз
	view.ApplyTick()
	view.ApplyTick()
	require.Equal(t, 8, view.Current()[0].TimeRemaining)

	// серверный срез несёт авторитетное значение и полностью заменяет view
	view.ApplyServerSnapshot([]feed.AvailableOrder{available("a", 10)})
	assert.Equal(t, 10, view.Current()[0].TimeRemaining)
}

func TestView_OnChange(t *testing.T) {
	view := feed.NewView()

	var events [][]feed.AvailableOrder
	sub := view.OnChange(func(orders []feed.AvailableOrder) {
		events = append(events, orders)
	})

	view.ApplyServerSnapshot([]feed.AvailableOrder{available("a", 10)})
	view.ApplyTick()
	require.Len(t, events, 2)
	assert.Equal(t, 10, events[0][0].TimeRemaining)
	assert.Equal(t, 9, events[1][0].TimeRemaining)

	sub.Cancel()
	view.ApplyTick()
	assert.Len(t, events, 2)
}

func TestView_CurrentReturnsCopy(t *testing.T) {
	view := feed.NewView()
	view.ApplyServerSnapshot([]feed.AvailableOrder{available("a", 10)})

	current := view.Current()
	current[0].TimeRemaining = 1

	assert.Equal(t, 10, view.Current()[0].TimeRemaining)
}

func TestTicker_EvictsOnSchedule(t *testing.T) {
	view := feed.NewView()
	view.ApplyServerSnapshot([]feed.AvailableOrder{available("a", 1)})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go feed.NewTicker(view, 5*time.Millisecond).Run(ctx)

	require.Eventually(t, func() bool {
		return len(view.Current()) == 0
	}, time.Second, 5*time.Millisecond)
}
