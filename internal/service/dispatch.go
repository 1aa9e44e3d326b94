package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mitraexpress/dispatch-service/internal/entities"
	"github.com/mitraexpress/dispatch-service/internal/feed"
	"github.com/mitraexpress/dispatch-service/internal/match"
	"github.com/mitraexpress/dispatch-service/internal/store"
	"github.com/mitraexpress/dispatch-service/pkg/trm"
	"github.com/mitraexpress/dispatch-service/pkg/utils"
)

type OrderRepo interface {
	GetOrderByID(ctx context.Context, orderID string) (entities.Order, error)

	// Операции идемпотентны, используется ON CONFLICT DO NOTHING
	SaveOrder(ctx context.Context, o entities.Order) error
	SaveProducts(ctx context.Context, orderID string, products []entities.Product) error

	AssignOrder(ctx context.Context, orderID string, courier entities.Courier, acceptedAt time.Time) error
}

type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte)
}

type CreateOrderInput struct {
	Service      entities.Service
	Tarif        int
	TitikJemput  string
	AlamatJemput string
	TitikAntar   string
	AlamatAntar  string
	Produk       []entities.Product
}

// dispatchService связывает durable систему учёта (Postgres) и пул
// реального времени: создание заказа двухшаговое (сохранить, потом
// опубликовать), принятие идёт через условную запись пула, а durable
// сторона лишь зеркалит результат.
const defaultSessionIdle = 10 * time.Minute

type dispatchService struct {
	logger      *slog.Logger
	txManager   trm.Manager
	repo        OrderRepo
	cache       Cache
	coordinator *match.Coordinator
	store       store.Store

	tickInterval time.Duration
	sessionIdle  time.Duration

	mu       sync.Mutex
	runCtx   context.Context
	sessions map[string]*courierSession
}

// courierSession — состояние ленты одного курьера: view, подписка и тикер.
type courierSession struct {
	view       *feed.View
	subscriber *feed.Subscriber
	cancel     context.CancelFunc
	lastUsed   time.Time
}

func NewDispatchService(
	logger *slog.Logger,
	txManager trm.Manager,
	repo OrderRepo,
	cache Cache,
	coordinator *match.Coordinator,
	st store.Store,
	tickInterval time.Duration,
	sessionIdle time.Duration,
) *dispatchService {
	if sessionIdle <= 0 {
		sessionIdle = defaultSessionIdle
	}
	return &dispatchService{
		logger:       logger.With(slog.String("service", "dispatch")),
		txManager:    txManager,
		repo:         repo,
		cache:        cache,
		coordinator:  coordinator,
		store:        st,
		tickInterval: tickInterval,
		sessionIdle:  sessionIdle,
		sessions:     make(map[string]*courierSession),
	}
}

// Start запоминает корневой контекст (от него живут ленты курьеров) и
// запускает чистку простаивающих лент: каждая сессия держит подписку на пул
// и горутину тикера, без выселения map растёт на каждый новый kurir_id.
func (s *dispatchService) Start(ctx context.Context) error {
	s.mu.Lock()
	s.runCtx = ctx
	s.mu.Unlock()

	go func() {
		ticker := time.NewTicker(s.sessionIdle)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.evictIdleSessions(time.Now())
			}
		}
	}()
	return nil
}

func (s *dispatchService) evictIdleSessions(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, session := range s.sessions {
		if now.Sub(session.lastUsed) < s.sessionIdle {
			continue
		}
		session.subscriber.Stop()
		session.cancel()
		delete(s.sessions, id)
		s.logger.Debug("idle feed session evicted", slog.String("kurir_id", id))
	}
}

// ActiveSessions — число живых лент курьеров.
func (s *dispatchService) ActiveSessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

var saveRetry = utils.RetryConfig{
	InitialDelay: 100 * time.Millisecond,
	MaxAttempts:  5,
	Multiplier:   2,
}

// CreateOrder сохраняет заказ durable и публикует его в пул. Если публикация
// упала после успешного сохранения, заказ существует, но не разослан —
// это известный разрыв, он логируется и отдаётся наверх типизированно.
func (s *dispatchService) CreateOrder(ctx context.Context, in CreateOrderInput) (entities.Order, error) {
	if !in.Service.IsValid() {
		return entities.Order{}, fmt.Errorf("%w: unknown service %q", entities.ErrInvalidOrder, in.Service)
	}

	order := entities.Order{
		ID:           uuid.NewString(),
		KodeOrder:    generateKode(),
		Service:      in.Service,
		Tarif:        in.Tarif,
		TitikJemput:  in.TitikJemput,
		AlamatJemput: in.AlamatJemput,
		TitikAntar:   in.TitikAntar,
		AlamatAntar:  in.AlamatAntar,
		Produk:       in.Produk,
		Status:       entities.StatusSearching,
		CreatedAt:    time.Now(),
	}

	save := func() error {
		return s.txManager.Do(ctx, func(ctx context.Context) error {
			if err := s.repo.SaveOrder(ctx, order); err != nil {
				return fmt.Errorf("failed to save order: %w", err)
			}
			if err := s.repo.SaveProducts(ctx, order.ID, order.Produk); err != nil {
				return fmt.Errorf("failed to save products: %w", err)
			}
			return nil
		})
	}

	if err := utils.Retry(saveRetry, save); err != nil {
		return entities.Order{}, err
	}

	published, err := s.coordinator.Publish(ctx, match.PublishInput{
		ID:           order.ID,
		KodeOrder:    order.KodeOrder,
		Service:      order.Service,
		Tarif:        order.Tarif,
		TitikJemput:  order.TitikJemput,
		AlamatJemput: order.AlamatJemput,
		TitikAntar:   order.TitikAntar,
		AlamatAntar:  order.AlamatAntar,
		Produk:       order.Produk,
	})
	if err != nil {
		s.logger.Error("order saved but not published",
			slog.String("order_id", order.ID),
			slog.String("kode_order", order.KodeOrder),
			slog.Any("error", err),
		)
		return entities.Order{}, fmt.Errorf("%w: %v", entities.ErrPublishAfterSave, err)
	}

	s.logger.Debug("order created", "order_id", published.ID)
	return published, nil
}

// PublishOrder кладёт в пул заказ, уже сохранённый внешним бэкендом.
func (s *dispatchService) PublishOrder(ctx context.Context, order entities.Order) (entities.Order, error) {
	return s.coordinator.Publish(ctx, match.PublishInput{
		ID:           order.ID,
		KodeOrder:    order.KodeOrder,
		Service:      order.Service,
		Tarif:        order.Tarif,
		TitikJemput:  order.TitikJemput,
		AlamatJemput: order.AlamatJemput,
		TitikAntar:   order.TitikAntar,
		AlamatAntar:  order.AlamatAntar,
		Produk:       order.Produk,
	})
}

// AcceptOrder принимает заказ от имени курьера. Пул — арбитр гонки;
// durable сторона зеркалит исход и не влияет на результат.
func (s *dispatchService) AcceptOrder(ctx context.Context, orderID string, courier entities.Courier) (entities.Order, error) {
	order, err := s.coordinator.Accept(ctx, orderID, courier)
	if err != nil {
		return entities.Order{}, err
	}

	acceptedAt := time.Now()
	if order.AcceptedAt != nil {
		acceptedAt = *order.AcceptedAt
	}
	if err := s.repo.AssignOrder(ctx, orderID, courier, acceptedAt); err != nil {
		s.logger.Error("failed to mirror assignment",
			slog.String("order_id", orderID), slog.Any("error", err))
	}

	return order, nil
}

func (s *dispatchService) GetOrderByID(ctx context.Context, orderID string) (entities.Order, error) {
	if data, ok := s.cache.Get(orderID); ok {
		var order entities.Order
		if err := order.Unmarshal(data); err != nil {
			s.logger.Error("failed to unmarshal cached order", slog.Any("error", err))
			return entities.Order{}, entities.ErrInvalidOrder
		}
		return order, nil
	}

	var order entities.Order
	lookup := func() error {
		var err error
		order, err = s.repo.GetOrderByID(ctx, orderID)
		return err
	}
	if err := utils.Retry(saveRetry, lookup, entities.ErrOrderNotFound); err != nil {
		return entities.Order{}, err
	}

	if data, err := order.Marshal(); err == nil {
		s.cache.Set(orderID, data)
	}
	return order, nil
}

// AvailableOrders отдаёт текущий срез ленты курьера.
func (s *dispatchService) AvailableOrders(ctx context.Context, courierID string) ([]feed.AvailableOrder, error) {
	session, err := s.session(ctx, courierID)
	if err != nil {
		return nil, err
	}
	return session.view.Current(), nil
}

// FeedView — view ленты курьера для стриминга (OnChange).
func (s *dispatchService) FeedView(ctx context.Context, courierID string) (*feed.View, error) {
	session, err := s.session(ctx, courierID)
	if err != nil {
		return nil, err
	}
	return session.view, nil
}

func (s *dispatchService) session(ctx context.Context, courierID string) (*courierSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if session, ok := s.sessions[courierID]; ok {
		session.lastUsed = time.Now()
		return session, nil
	}

	base := s.runCtx
	if base == nil {
		base = context.Background()
	}
	sessionCtx, cancel := context.WithCancel(base)

	view := feed.NewView()
	subscriber := feed.NewSubscriber(s.logger, s.store, view, s.coordinator.Claimed(courierID))
	if err := subscriber.Start(sessionCtx); err != nil {
		cancel()
		return nil, err
	}

	go feed.NewTicker(view, s.tickInterval).Run(sessionCtx)

	session := &courierSession{view: view, subscriber: subscriber, cancel: cancel, lastUsed: time.Now()}
	s.sessions[courierID] = session
	return session, nil
}

// Close гасит все ленты.
func (s *dispatchService) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, session := range s.sessions {
		session.subscriber.Stop()
		session.cancel()
		delete(s.sessions, id)
	}
	return nil
}

func generateKode() string {
	return "MTR-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:10])
}
