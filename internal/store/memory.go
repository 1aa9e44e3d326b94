package store

import (
	"context"
	"sync"
	"time"

	"github.com/mitraexpress/dispatch-service/internal/entities"
)

// MemoryStore — in-process реализация пула с тем же контрактом, что и
// RedisStore. Используется в тестах и при локальной разработке без Redis.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]entities.Order
	subs    map[int]SnapshotFunc
	nextSub int
	closed  bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]entities.Order),
		subs:    make(map[int]SnapshotFunc),
	}
}

func (s *MemoryStore) Write(ctx context.Context, order entities.Order) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return entities.ErrStoreUnavailable
	}
	s.records[order.ID] = order
	snapshot, subs := s.snapshotLocked()
	s.mu.Unlock()

	notify(snapshot, subs)
	return nil
}

func (s *MemoryStore) ReadOnce(ctx context.Context, orderID string) (entities.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return entities.Order{}, entities.ErrStoreUnavailable
	}
	order, ok := s.records[orderID]
	if !ok {
		return entities.Order{}, entities.ErrOrderNotFound
	}
	return order, nil
}

// ConditionalAssign проверяет и пишет под одним мьютексом — compare-and-set.
func (s *MemoryStore) ConditionalAssign(ctx context.Context, orderID string, courier entities.Courier, acceptedAt time.Time) (entities.Order, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return entities.Order{}, entities.ErrStoreUnavailable
	}

	order, ok := s.records[orderID]
	if !ok {
		s.mu.Unlock()
		return entities.Order{}, entities.ErrOrderNotFound
	}
	if order.Status != entities.StatusSearching {
		s.mu.Unlock()
		return entities.Order{}, entities.ErrOrderAlreadyTaken
	}

	order.Status = entities.StatusAssigned
	order.IDKurir = courier.ID
	order.KurirName = courier.Name
	t := acceptedAt
	order.AcceptedAt = &t
	order.UpdatedAt = &t
	s.records[orderID] = order

	snapshot, subs := s.snapshotLocked()
	s.mu.Unlock()

	notify(snapshot, subs)
	return order, nil
}

func (s *MemoryStore) Subscribe(ctx context.Context, fn SnapshotFunc) (*Subscription, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, entities.ErrStoreUnavailable
	}
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	snapshot, _ := s.snapshotLocked()
	s.mu.Unlock()

	// начальный срез сразу, как и у Redis-реализации
	fn(snapshot)

	return newSubscription(func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}), nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.subs = make(map[int]SnapshotFunc)
	return nil
}

func (s *MemoryStore) snapshotLocked() ([]entities.Order, []SnapshotFunc) {
	orders := make([]entities.Order, 0, len(s.records))
	for _, order := range s.records {
		orders = append(orders, order)
	}
	sortOrders(orders)

	subs := make([]SnapshotFunc, 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	return orders, subs
}

func notify(snapshot []entities.Order, subs []SnapshotFunc) {
	for _, fn := range subs {
		fn(snapshot)
	}
}
