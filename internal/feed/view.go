package feed

import (
	"sync"

	"github.com/mitraexpress/dispatch-service/internal/entities"
	"github.com/mitraexpress/dispatch-service/pkg/broadcast"
)

// AvailableOrder — заказ плюс производный отсчёт до истечения поиска.
type AvailableOrder struct {
	entities.Order
	TimeRemaining int
}

// View — единственный источник истины списка доступных заказов.
// Принимает два типа событий: серверный срез (ApplyServerSnapshot) и
// локальный тик (ApplyTick). Серверный срез всегда выигрывает: он несёт
// авторитетный created_at, по которому отсчёт выводится заново.
type View struct {
	mu      sync.Mutex
	orders  []AvailableOrder
	changes *broadcast.Broadcaster[[]AvailableOrder]
}

func NewView() *View {
	return &View{changes: broadcast.New[[]AvailableOrder]()}
}

func (v *View) ApplyServerSnapshot(orders []AvailableOrder) {
	v.mu.Lock()
	v.orders = orders
	current := v.currentLocked()
	v.mu.Unlock()

	v.changes.Notify(current)
}

// ApplyTick уменьшает отсчёт каждого заказа на секунду и выкидывает
// дошедшие до нуля. В пул ничего не пишет.
func (v *View) ApplyTick() {
	v.mu.Lock()
	kept := make([]AvailableOrder, 0, len(v.orders))
	for _, order := range v.orders {
		order.TimeRemaining--
		if order.TimeRemaining > 0 {
			kept = append(kept, order)
		}
	}
	v.orders = kept
	current := v.currentLocked()
	v.mu.Unlock()

	v.changes.Notify(current)
}

func (v *View) Current() []AvailableOrder {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.currentLocked()
}

// OnChange регистрирует callback onAvailableOrders.
func (v *View) OnChange(fn func([]AvailableOrder)) *broadcast.Subscription {
	return v.changes.Subscribe(fn)
}

func (v *View) currentLocked() []AvailableOrder {
	current := make([]AvailableOrder, len(v.orders))
	copy(current, v.orders)
	return current
}
