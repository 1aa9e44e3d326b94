package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/mitraexpress/dispatch-service/internal/entities"
	"github.com/mitraexpress/dispatch-service/internal/feed"
	"github.com/mitraexpress/dispatch-service/internal/service"
	"github.com/mitraexpress/dispatch-service/pkg/utils"
)

type Dispatcher interface {
	CreateOrder(ctx context.Context, in service.CreateOrderInput) (entities.Order, error)
	AcceptOrder(ctx context.Context, orderID string, courier entities.Courier) (entities.Order, error)
	GetOrderByID(ctx context.Context, orderID string) (entities.Order, error)
	AvailableOrders(ctx context.Context, courierID string) ([]feed.AvailableOrder, error)
	FeedView(ctx context.Context, courierID string) (*feed.View, error)
}

type HTTPHandler struct {
	logger   *slog.Logger
	validate *validator.Validate
	svc      Dispatcher
}

func NewHTTPHandler(logger *slog.Logger, svc Dispatcher) *HTTPHandler {
	return &HTTPHandler{
		logger:   logger.With(slog.String("handler", "http")),
		validate: validator.New(),
		svc:      svc,
	}
}

func (h *HTTPHandler) Init(r chi.Router) {
	r.Post("/orders", h.CreateOrder)
	r.Post("/orders/{order_id}/accept", h.AcceptOrder)
	r.Get("/orders/available", h.AvailableOrders)
	r.Get("/orders/stream", h.StreamOrders)
	r.Get("/orders/{order_id}", h.GetOrderByID)
}

type createOrderRequest struct {
	Service      string    `json:"service" validate:"required,oneof=RIDE SEND FOOD SHOP"`
	Tarif        int       `json:"tarif" validate:"required,gt=0"`
	TitikJemput  string    `json:"titik_jemput" validate:"required"`
	AlamatJemput string    `json:"alamat_jemput" validate:"required"`
	TitikAntar   string    `json:"titik_antar" validate:"required"`
	AlamatAntar  string    `json:"alamat_antar" validate:"required"`
	Produk       []Product `json:"produk,omitempty" validate:"dive"`
}

// CreateOrder сохраняет заказ и публикует его в пул поиска курьера.
func (h *HTTPHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req createOrderRequest
	if err := utils.DecodeBody(r, &req); err != nil {
		utils.WriteError(w, "invalid json", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		utils.WriteValidationError(w, err)
		return
	}

	produk := make([]entities.Product, 0, len(req.Produk))
	for _, p := range req.Produk {
		produk = append(produk, ProductJSONToEntity(p))
	}

	order, err := h.svc.CreateOrder(ctx, service.CreateOrderInput{
		Service:      entities.Service(req.Service),
		Tarif:        req.Tarif,
		TitikJemput:  req.TitikJemput,
		AlamatJemput: req.AlamatJemput,
		TitikAntar:   req.TitikAntar,
		AlamatAntar:  req.AlamatAntar,
		Produk:       produk,
	})

	if errors.Is(err, entities.ErrInvalidOrder) {
		utils.WriteError(w, "invalid order", http.StatusBadRequest)
		return
	}
	if errors.Is(err, entities.ErrPublishAfterSave) {
		publishInconsistencies.Inc()
		utils.WriteError(w, "order saved but not broadcast, retry later", http.StatusServiceUnavailable)
		return
	}
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to create order", slog.Any("error", err))
		utils.WriteError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	ordersCreated.Inc()
	utils.WriteJSON(w, OrderEntityToJSON(order), http.StatusCreated)
}

type acceptOrderRequest struct {
	IDKurir   string `json:"id_kurir" validate:"required"`
	KurirName string `json:"kurir_name" validate:"required"`
}

// AcceptOrder — попытка курьера забрать заказ. Проигрыш гонки — ожидаемый
// исход, отдаётся как 409 без ретраев.
func (h *HTTPHandler) AcceptOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orderID := chi.URLParam(r, "order_id")

	var req acceptOrderRequest
	if err := utils.DecodeBody(r, &req); err != nil {
		utils.WriteError(w, "invalid json", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		utils.WriteValidationError(w, err)
		return
	}

	order, err := h.svc.AcceptOrder(ctx, orderID, entities.Courier{ID: req.IDKurir, Name: req.KurirName})

	if errors.Is(err, entities.ErrOrderNotFound) {
		utils.WriteError(w, "order not found", http.StatusNotFound)
		return
	}
	if errors.Is(err, entities.ErrOrderAlreadyTaken) {
		acceptsLost.Inc()
		utils.WriteError(w, "order already taken by another courier", http.StatusConflict)
		return
	}
	if errors.Is(err, entities.ErrStoreUnavailable) {
		utils.WriteError(w, "order pool unavailable, retry later", http.StatusServiceUnavailable)
		return
	}
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to accept order",
			slog.Any("error", err), slog.String("order_id", orderID))
		utils.WriteError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	acceptsWon.Inc()
	utils.WriteJSON(w, OrderEntityToJSON(order), http.StatusOK)
}

// AvailableOrders отдаёт текущую ленту доступных заказов курьера.
func (h *HTTPHandler) AvailableOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	courierID := r.URL.Query().Get("kurir_id")
	if err := h.validate.Var(courierID, "required"); err != nil {
		utils.WriteValidationError(w, err)
		return
	}

	orders, err := h.svc.AvailableOrders(ctx, courierID)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to get available orders",
			slog.Any("error", err), slog.String("kurir_id", courierID))
		utils.WriteError(w, "order pool unavailable, retry later", http.StatusServiceUnavailable)
		return
	}

	feedSize.Set(float64(len(orders)))
	utils.WriteJSON(w, AvailableOrdersToJSON(orders), http.StatusOK)
}

// StreamOrders — SSE-лента: полный список доступных заказов на каждое
// изменение view, до закрытия соединения клиентом.
func (h *HTTPHandler) StreamOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	courierID := r.URL.Query().Get("kurir_id")
	if err := h.validate.Var(courierID, "required"); err != nil {
		utils.WriteValidationError(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.WriteError(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	view, err := h.svc.FeedView(ctx, courierID)
	if err != nil {
		utils.WriteError(w, "order pool unavailable, retry later", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	events := make(chan []feed.AvailableOrder, 8)
	sub := view.OnChange(func(orders []feed.AvailableOrder) {
		select {
		case events <- orders:
		default:
			// медленный клиент: пропускаем срез, следующий его заменит
		}
	})
	defer sub.Cancel()

	writeEvent(w, flusher, view.Current())

	for {
		select {
		case <-ctx.Done():
			return
		case orders := <-events:
			writeEvent(w, flusher, orders)
		}
	}
}

func writeEvent(w http.ResponseWriter, flusher http.Flusher, orders []feed.AvailableOrder) {
	data, err := json.Marshal(AvailableOrdersToJSON(orders))
	if err != nil {
		return
	}
	w.Write([]byte("data: "))
	w.Write(data)
	w.Write([]byte("\n\n"))
	flusher.Flush()
}

// GetOrderByID возвращает заказ из durable-хранилища.
func (h *HTTPHandler) GetOrderByID(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orderID := chi.URLParam(r, "order_id")

	if err := h.validate.Var(orderID, "required"); err != nil {
		utils.WriteValidationError(w, err)
		return
	}

	order, err := h.svc.GetOrderByID(ctx, orderID)

	if errors.Is(err, entities.ErrOrderNotFound) {
		utils.WriteError(w, "order not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to get order",
			slog.Any("error", err), slog.String("order_id", orderID))
		utils.WriteError(w, "internal server error", http.StatusInternalServerError)
		return
	}

	utils.WriteJSON(w, OrderEntityToJSON(order), http.StatusOK)
}
