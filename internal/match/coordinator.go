package match

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mitraexpress/dispatch-service/internal/entities"
	"github.com/mitraexpress/dispatch-service/internal/store"
	"github.com/mitraexpress/dispatch-service/pkg/broadcast"
)

const defaultAcceptTimeout = 10 * time.Second

// Coordinator выполняет обе операции над пулом: публикацию нового заказа
// и атомарное принятие заказа курьером.
type Coordinator struct {
	logger  *slog.Logger
	store   store.Store
	timeout time.Duration
	now     func() time.Time

	mu      sync.Mutex
	claimed map[string]*ClaimedSet

	accepted *broadcast.Broadcaster[entities.Order]
}

func NewCoordinator(logger *slog.Logger, st store.Store, acceptTimeout time.Duration) *Coordinator {
	if acceptTimeout <= 0 {
		acceptTimeout = defaultAcceptTimeout
	}
	return &Coordinator{
		logger:   logger.With(slog.String("component", "match")),
		store:    st,
		timeout:  acceptTimeout,
		now:      time.Now,
		claimed:  make(map[string]*ClaimedSet),
		accepted: broadcast.New[entities.Order](),
	}
}

// Claimed возвращает набор принятых заказов курьера, создавая его при
// первом обращении.
func (c *Coordinator) Claimed(courierID string) *ClaimedSet {
	c.mu.Lock()
	defer c.mu.Unlock()

	set, ok := c.claimed[courierID]
	if !ok {
		set = NewClaimedSet()
		c.claimed[courierID] = set
	}
	return set
}

// OnAccepted регистрирует callback onOrderAccepted.
func (c *Coordinator) OnAccepted(fn func(entities.Order)) *broadcast.Subscription {
	return c.accepted.Subscribe(fn)
}

// Accept переводит заказ SEARCHING -> ASSIGNED от имени курьера.
// Условная запись в пуле гарантирует единственного победителя; проигравший
// получает ErrOrderAlreadyTaken и повторять попытку не должен.
//
// Таймаут трактуется как проигрыш (fail closed): успех не предполагается.
func (c *Coordinator) Accept(ctx context.Context, orderID string, courier entities.Courier) (entities.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	order, err := c.store.ConditionalAssign(ctx, orderID, courier, c.now())
	if errors.Is(err, context.DeadlineExceeded) {
		return entities.Order{}, fmt.Errorf("%w: accept timed out", entities.ErrOrderAlreadyTaken)
	}
	if err != nil {
		return entities.Order{}, err
	}

	c.Claimed(courier.ID).Add(orderID)
	c.accepted.Notify(order)

	c.logger.Info("order assigned",
		slog.String("order_id", orderID),
		slog.String("kurir_id", courier.ID),
	)
	return order, nil
}

// PublishInput — данные нового заказа. KodeOrder — корреляционный код из
// REST-бэкенда, где заказ уже сохранён. Пустой ID значит, что id сгенерирует
// координатор.
type PublishInput struct {
	ID           string
	KodeOrder    string
	Service      entities.Service
	Tarif        int
	TitikJemput  string
	AlamatJemput string
	TitikAntar   string
	AlamatAntar  string
	Produk       []entities.Product
}

// Publish кладёт новый заказ в пул со статусом SEARCHING. Это всегда
// вставка под новым id, транзакционная защита не нужна.
func (c *Coordinator) Publish(ctx context.Context, in PublishInput) (entities.Order, error) {
	if !in.Service.IsValid() {
		return entities.Order{}, fmt.Errorf("%w: unknown service %q", entities.ErrInvalidOrder, in.Service)
	}

	id := in.ID
	if id == "" {
		id = uuid.NewString()
	}

	order := entities.Order{
		ID:           id,
		KodeOrder:    in.KodeOrder,
		Service:      in.Service,
		Tarif:        in.Tarif,
		TitikJemput:  in.TitikJemput,
		AlamatJemput: in.AlamatJemput,
		TitikAntar:   in.TitikAntar,
		AlamatAntar:  in.AlamatAntar,
		Produk:       in.Produk,
		Status:       entities.StatusSearching,
		CreatedAt:    c.now(),
	}

	if err := c.store.Write(ctx, order); err != nil {
		return entities.Order{}, fmt.Errorf("failed to publish order: %w", err)
	}

	c.logger.Debug("order published",
		slog.String("order_id", order.ID),
		slog.String("service", string(order.Service)),
	)
	return order, nil
}
