package broadcast_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mitraexpress/dispatch-service/pkg/broadcast"
)

func TestBroadcaster_NotifyAll(t *testing.T) {
	b := broadcast.New[int]()

	var first, second []int
	b.Subscribe(func(v int) { first = append(first, v) })
	b.Subscribe(func(v int) { second = append(second, v) })
	assert.Equal(t, 2, b.Len())

	b.Notify(1)
	b.Notify(2)

	assert.Equal(t, []int{1, 2}, first)
	assert.Equal(t, []int{1, 2}, second)
}

func TestBroadcaster_CancelDetachesOnlyOwnListener(t *testing.T) {
	b := broadcast.New[string]()

	var kept, cancelled []string
	b.Subscribe(func(v string) { kept = append(kept, v) })
	sub := b.Subscribe(func(v string) { cancelled = append(cancelled, v) })

	b.Notify("a")
	sub.Cancel()
	sub.Cancel() // повторная отмена безопасна
	b.Notify("b")

	assert.Equal(t, []string{"a", "b"}, kept)
	assert.Equal(t, []string{"a"}, cancelled)
	assert.Equal(t, 1, b.Len())
}

func TestBroadcaster_NotifyWithoutListeners(t *testing.T) {
	b := broadcast.New[int]()
	assert.NotPanics(t, func() { b.Notify(42) })
}
