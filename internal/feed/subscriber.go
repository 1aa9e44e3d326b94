package feed

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mitraexpress/dispatch-service/internal/entities"
	"github.com/mitraexpress/dispatch-service/internal/store"
)

// Claimed сообщает, принял ли уже этот клиент заказ. Принятые заказы
// не возвращаются в собственную ленту клиента.
type Claimed interface {
	Contains(orderID string) bool
}

// Subscriber держит живой отфильтрованный список доступных заказов для
// одного клиента курьера. Своего состояния не хранит — состоянием владеет
// View.
type Subscriber struct {
	logger  *slog.Logger
	store   store.Store
	view    *View
	claimed Claimed
	now     func() time.Time
	sub     *store.Subscription
}

func NewSubscriber(logger *slog.Logger, st store.Store, view *View, claimed Claimed) *Subscriber {
	return &Subscriber{
		logger:  logger.With(slog.String("component", "feed")),
		store:   st,
		view:    view,
		claimed: claimed,
		now:     time.Now,
	}
}

func (s *Subscriber) Start(ctx context.Context) error {
	sub, err := s.store.Subscribe(ctx, s.handleSnapshot)
	if err != nil {
		return fmt.Errorf("failed to subscribe to order pool: %w", err)
	}
	s.sub = sub
	return nil
}

func (s *Subscriber) Stop() {
	if s.sub != nil {
		s.sub.Cancel()
	}
}

// handleSnapshot материализует срез пула в доступные заказы:
// только SEARCHING, с ненулевым остатком и не принятые этим клиентом.
func (s *Subscriber) handleSnapshot(orders []entities.Order) {
	now := s.now()

	available := make([]AvailableOrder, 0, len(orders))
	for _, order := range orders {
		if order.Status != entities.StatusSearching {
			continue
		}
		remaining := order.TimeRemaining(now)
		if remaining == 0 {
			continue
		}
		if s.claimed != nil && s.claimed.Contains(order.ID) {
			continue
		}
		available = append(available, AvailableOrder{Order: order, TimeRemaining: remaining})
	}

	s.view.ApplyServerSnapshot(available)
}
