package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mitraexpress/dispatch-service/internal/entities"
)

// Store — общий пул заказов реального времени. Через него агенты публикуют
// заказы, а клиенты курьеров подписываются на изменения и принимают заказы.
//
// ConditionalAssign обязан быть транзакционным: перевод SEARCHING -> ASSIGNED
// выполняется атомарно, проигравший гонку получает ErrOrderAlreadyTaken.
type Store interface {
	Subscribe(ctx context.Context, fn SnapshotFunc) (*Subscription, error)
	ReadOnce(ctx context.Context, orderID string) (entities.Order, error)
	Write(ctx context.Context, order entities.Order) error
	ConditionalAssign(ctx context.Context, orderID string, courier entities.Courier, acceptedAt time.Time) (entities.Order, error)
	Close() error
}

// SnapshotFunc получает полный срез пула (full-replace, не дифф).
type SnapshotFunc func(orders []entities.Order)

// Subscription — типизированный хэндл подписки, отменяется независимо
// от других подписок.
type Subscription struct {
	once   sync.Once
	cancel func()
}

func newSubscription(cancel func()) *Subscription {
	return &Subscription{cancel: cancel}
}

func (s *Subscription) Cancel() {
	s.once.Do(s.cancel)
}

// sortOrders даёт детерминированный порядок среза для подписчиков.
func sortOrders(orders []entities.Order) {
	sort.Slice(orders, func(i, j int) bool {
		if orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].ID < orders[j].ID
		}
		return orders[i].CreatedAt.Before(orders[j].CreatedAt)
	})
}
