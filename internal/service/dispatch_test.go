package service_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mitraexpress/dispatch-service/internal/entities"
	"github.com/mitraexpress/dispatch-service/internal/match"
	"github.com/mitraexpress/dispatch-service/internal/service"
	"github.com/mitraexpress/dispatch-service/internal/store"
)

type repoMock struct {
	mock.Mock
}

func (m *repoMock) GetOrderByID(ctx context.Context, orderID string) (entities.Order, error) {
	args := m.Called(ctx, orderID)
	return args.Get(0).(entities.Order), args.Error(1)
}

func (m *repoMock) SaveOrder(ctx context.Context, o entities.Order) error {
	args := m.Called(ctx, o)
	return args.Error(0)
}

func (m *repoMock) SaveProducts(ctx context.Context, orderID string, products []entities.Product) error {
	args := m.Called(ctx, orderID, products)
	return args.Error(0)
}

func (m *repoMock) AssignOrder(ctx context.Context, orderID string, courier entities.Courier, acceptedAt time.Time) error {
	args := m.Called(ctx, orderID, courier, acceptedAt)
	return args.Error(0)
}

type txManagerMock struct{}

func (txManagerMock) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type cacheMock struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newCacheMock() *cacheMock {
	return &cacheMock{data: make(map[string][]byte)}
}

func (c *cacheMock) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	return v, ok
}

func (c *cacheMock) Set(key string, value []byte) {
	c.mu.Lock()
	c.data[key] = value
	c.mu.Unlock()
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type dispatchFixtureService interface {
	CreateOrder(ctx context.Context, in service.CreateOrderInput) (entities.Order, error)
	PublishOrder(ctx context.Context, order entities.Order) (entities.Order, error)
	AcceptOrder(ctx context.Context, orderID string, courier entities.Courier) (entities.Order, error)
	GetOrderByID(ctx context.Context, orderID string) (entities.Order, error)
	Close() error
}

func newFixture(t *testing.T) (*repoMock, *cacheMock, *store.MemoryStore, dispatchFixtureService) {
	t.Helper()

	repo := new(repoMock)
	cache := newCacheMock()
	st := store.NewMemoryStore()
	coordinator := match.NewCoordinator(discardLogger(), st, time.Second)

	svc := service.NewDispatchService(
		discardLogger(), txManagerMock{}, repo, cache, coordinator, st, time.Second, time.Minute,
	)
	t.Cleanup(func() { _ = svc.Close() })
	return repo, cache, st, svc
}

func TestDispatchService_CreateOrder(t *testing.T) {
	ctx := context.Background()

	in := service.CreateOrderInput{
		Service:      entities.ServiceFood,
		Tarif:        45000,
		TitikJemput:  "Warung Bu Sri",
		AlamatJemput: "Jl. Merdeka No. 12, Bandung",
		TitikAntar:   "Kampus ITB",
		AlamatAntar:  "Jl. Ganesha No. 10, Bandung",
		Produk:       []entities.Product{{Nama: "nasi goreng", Harga: 25000, Jumlah: 1}},
	}

	t.Run("saves then publishes", func(t *testing.T) {
		repo, _, st, svc := newFixture(t)
		repo.On("SaveOrder", mock.Anything, mock.Anything).Return(nil)
		repo.On("SaveProducts", mock.Anything, mock.Anything, in.Produk).Return(nil)

		order, err := svc.CreateOrder(ctx, in)
		require.NoError(t, err)
		assert.NotEmpty(t, order.ID)
		assert.Contains(t, order.KodeOrder, "MTR-")
		assert.Equal(t, entities.StatusSearching, order.Status)

		// заказ оказался в пуле под тем же id, что и в durable хранилище
		got, err := st.ReadOnce(ctx, order.ID)
		require.NoError(t, err)
		assert.Equal(t, order.KodeOrder, got.KodeOrder)

		repo.AssertExpectations(t)
	})

	t.Run("publish failure after save", func(t *testing.T) {
		repo, _, st, svc := newFixture(t)
		repo.On("SaveOrder", mock.Anything, mock.Anything).Return(nil)
		repo.On("SaveProducts", mock.Anything, mock.Anything, in.Produk).Return(nil)

		// пул недоступен: сохранение прошло, публикация нет
		require.NoError(t, st.Close())

		_, err := svc.CreateOrder(ctx, in)
		assert.ErrorIs(t, err, entities.ErrPublishAfterSave)
		repo.AssertExpectations(t)
	})

	t.Run("invalid service is rejected before save", func(t *testing.T) {
		repo, _, _, svc := newFixture(t)

		_, err := svc.CreateOrder(ctx, service.CreateOrderInput{Service: "TAXI"})
		assert.ErrorIs(t, err, entities.ErrInvalidOrder)
		repo.AssertNotCalled(t, "SaveOrder", mock.Anything, mock.Anything)
	})
}

func TestDispatchService_AcceptOrder(t *testing.T) {
	ctx := context.Background()
	courier := entities.Courier{ID: "kurir-1", Name: "Budi"}

	t.Run("mirrors assignment to durable store", func(t *testing.T) {
		repo, _, _, svc := newFixture(t)
		repo.On("AssignOrder", mock.Anything, "order-1", courier, mock.Anything).Return(nil)

		published, err := svc.PublishOrder(ctx, entities.Order{
			ID:      "order-1",
			Service: entities.ServiceRide,
			Tarif:   20000,
			Status:  entities.StatusSearching,
		})
		require.NoError(t, err)

		order, err := svc.AcceptOrder(ctx, published.ID, courier)
		require.NoError(t, err)
		assert.Equal(t, entities.StatusAssigned, order.Status)
		assert.Equal(t, courier.ID, order.IDKurir)

		repo.AssertExpectations(t)
	})

	t.Run("mirror failure does not fail the accept", func(t *testing.T) {
		repo, _, _, svc := newFixture(t)
		repo.On("AssignOrder", mock.Anything, "order-1", courier, mock.Anything).
			Return(assert.AnError)

		_, err := svc.PublishOrder(ctx, entities.Order{
			ID:      "order-1",
			Service: entities.ServiceRide,
			Tarif:   20000,
		})
		require.NoError(t, err)

		order, err := svc.AcceptOrder(ctx, "order-1", courier)
		require.NoError(t, err)
		assert.Equal(t, entities.StatusAssigned, order.Status)
	})

	t.Run("lost race surfaces already taken", func(t *testing.T) {
		repo, _, _, svc := newFixture(t)
		repo.On("AssignOrder", mock.Anything, "order-1", mock.Anything, mock.Anything).Return(nil)

		_, err := svc.PublishOrder(ctx, entities.Order{
			ID:      "order-1",
			Service: entities.ServiceRide,
			Tarif:   20000,
		})
		require.NoError(t, err)

		_, err = svc.AcceptOrder(ctx, "order-1", entities.Courier{ID: "kurir-2", Name: "Siti"})
		require.NoError(t, err)

		_, err = svc.AcceptOrder(ctx, "order-1", courier)
		assert.ErrorIs(t, err, entities.ErrOrderAlreadyTaken)
	})
}

func TestDispatchService_GetOrderByID(t *testing.T) {
	ctx := context.Background()

	stored := entities.Order{
		ID:        "order-1",
		KodeOrder: "MTR-AB12",
		Service:   entities.ServiceFood,
		Tarif:     45000,
		Status:    entities.StatusSearching,
		CreatedAt: time.Now().Truncate(time.Millisecond),
	}

	t.Run("miss goes to repo and fills cache", func(t *testing.T) {
		repo, cache, _, svc := newFixture(t)
		repo.On("GetOrderByID", mock.Anything, "order-1").Return(stored, nil).Once()

		got, err := svc.GetOrderByID(ctx, "order-1")
		require.NoError(t, err)
		assert.Equal(t, stored.KodeOrder, got.KodeOrder)

		_, ok := cache.Get("order-1")
		assert.True(t, ok)

		// повторный запрос идёт из кеша, repo больше не трогаем
		got, err = svc.GetOrderByID(ctx, "order-1")
		require.NoError(t, err)
		assert.Equal(t, stored.ID, got.ID)
		repo.AssertExpectations(t)
	})

	t.Run("not found is not retried", func(t *testing.T) {
		repo, _, _, svc := newFixture(t)
		repo.On("GetOrderByID", mock.Anything, "missing").
			Return(entities.Order{}, entities.ErrOrderNotFound).Once()

		_, err := svc.GetOrderByID(ctx, "missing")
		assert.ErrorIs(t, err, entities.ErrOrderNotFound)
		repo.AssertExpectations(t)
	})

	t.Run("corrupted cache entry", func(t *testing.T) {
		_, cache, _, svc := newFixture(t)
		cache.Set("order-1", []byte("not gob"))

		_, err := svc.GetOrderByID(ctx, "order-1")
		assert.ErrorIs(t, err, entities.ErrInvalidOrder)
	})
}

// Простаивающая лента выселяется: подписка и тикер не живут дольше,
// чем курьером пользуются.
func TestDispatchService_IdleSessionEviction(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st := store.NewMemoryStore()
	coordinator := match.NewCoordinator(discardLogger(), st, time.Second)
	svc := service.NewDispatchService(
		discardLogger(), txManagerMock{}, new(repoMock), newCacheMock(), coordinator, st,
		time.Second, 20*time.Millisecond,
	)
	require.NoError(t, svc.Start(ctx))
	defer svc.Close()

	_, err := svc.AvailableOrders(ctx, "kurir-1")
	require.NoError(t, err)
	require.Equal(t, 1, svc.ActiveSessions())

	require.Eventually(t, func() bool {
		return svc.ActiveSessions() == 0
	}, time.Second, 10*time.Millisecond)

	// следующий запрос просто создаёт ленту заново
	_, err = svc.AvailableOrders(ctx, "kurir-1")
	require.NoError(t, err)
	assert.Equal(t, 1, svc.ActiveSessions())
}

func TestDispatchService_Feed(t *testing.T) {
	ctx := context.Background()

	repo := new(repoMock)
	repo.On("AssignOrder", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	st := store.NewMemoryStore()
	coordinator := match.NewCoordinator(discardLogger(), st, time.Second)
	svc := service.NewDispatchService(
		discardLogger(), txManagerMock{}, repo, newCacheMock(), coordinator, st, time.Second, time.Minute,
	)
	require.NoError(t, svc.Start(ctx))
	defer svc.Close()

	for _, id := range []string{"order-1", "order-2"} {
		_, err := svc.PublishOrder(ctx, entities.Order{
			ID:      id,
			Service: entities.ServiceSend,
			Tarif:   15000,
		})
		require.NoError(t, err)
	}

	orders, err := svc.AvailableOrders(ctx, "kurir-1")
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.GreaterOrEqual(t, orders[0].TimeRemaining, 299)

	// после выигрыша заказ уходит из ленты
	_, err = svc.AcceptOrder(ctx, "order-1", entities.Courier{ID: "kurir-1", Name: "Budi"})
	require.NoError(t, err)

	orders, err = svc.AvailableOrders(ctx, "kurir-1")
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "order-2", orders[0].ID)
}
