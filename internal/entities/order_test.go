package entities_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mitraexpress/dispatch-service/internal/entities"
)

func TestOrder_TimeRemaining(t *testing.T) {
	createdAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	testCases := []struct {
		name string
		now  time.Time
		want int
	}{
		{
			name: "just created",
			now:  createdAt,
			want: 300,
		},
		{
			name: "halfway through the window",
			now:  createdAt.Add(150 * time.Second),
			want: 150,
		},
		{
			name: "one second left",
			now:  createdAt.Add(299 * time.Second),
			want: 1,
		},
		{
			name: "exactly at the window edge",
			now:  createdAt.Add(300 * time.Second),
			want: 0,
		},
		{
			name: "long after expiry stays at zero",
			now:  createdAt.Add(time.Hour),
			want: 0,
		},
		{
			name: "sub-second elapsed rounds down",
			now:  createdAt.Add(1500 * time.Millisecond),
			want: 299,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			order := entities.Order{CreatedAt: createdAt}
			assert.Equal(t, tc.want, order.TimeRemaining(tc.now))
		})
	}
}

func TestOrder_TimeRemaining_Monotonic(t *testing.T) {
	createdAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	order := entities.Order{CreatedAt: createdAt}

	prev := order.TimeRemaining(createdAt)
	for offset := time.Second; offset <= 310*time.Second; offset += time.Second {
		current := order.TimeRemaining(createdAt.Add(offset))
		assert.LessOrEqual(t, current, prev)
		assert.GreaterOrEqual(t, current, 0)
		prev = current
	}
	assert.Equal(t, 0, prev)
}

func TestOrder_TimeRemaining_MissingCreatedAt(t *testing.T) {
	// отсутствующий created_at консервативен к доступности
	order := entities.Order{}
	assert.Equal(t, 300, order.TimeRemaining(time.Now()))
	assert.False(t, order.Expired(time.Now()))
}

func TestOrder_MarshalRoundTrip(t *testing.T) {
	acceptedAt := time.Date(2025, 6, 1, 12, 3, 0, 0, time.UTC)
	order := entities.Order{
		ID:        "order-1",
		KodeOrder: "MTR-AB12",
		Service:   entities.ServiceFood,
		Tarif:     35000,
		Status:    entities.StatusAssigned,
		CreatedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		IDKurir:   "kurir-1",
		KurirName: "Budi",
		AcceptedAt: &acceptedAt,
		Produk: []entities.Product{
			{Nama: "nasi goreng", Harga: 25000, Jumlah: 1},
		},
	}

	data, err := order.Marshal()
	require.NoError(t, err)

	var decoded entities.Order
	require.NoError(t, decoded.Unmarshal(data))
	assert.Equal(t, order.ID, decoded.ID)
	assert.Equal(t, order.Service, decoded.Service)
	assert.Equal(t, order.Tarif, decoded.Tarif)
	assert.Equal(t, order.Produk, decoded.Produk)
	require.NotNil(t, decoded.AcceptedAt)
	assert.True(t, acceptedAt.Equal(*decoded.AcceptedAt))
}
