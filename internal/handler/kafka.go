package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/go-playground/validator/v10"
	"github.com/segmentio/kafka-go"

	"github.com/mitraexpress/dispatch-service/internal/config"
	"github.com/mitraexpress/dispatch-service/internal/entities"
	"github.com/mitraexpress/dispatch-service/pkg/broadcast"
)

type OrderPublisher interface {
	PublishOrder(ctx context.Context, order entities.Order) (entities.Order, error)
}

// kafkaHandler вливает в пул заказы, уже сохранённые внешним REST-бэкендом.
type kafkaHandler struct {
	dlq       *kafka.Writer
	reader    *kafka.Reader
	logger    *slog.Logger
	validate  *validator.Validate
	publisher OrderPublisher
}

func NewKafkaHandler(logger *slog.Logger, cfg config.Kafka, publisher OrderPublisher) *kafkaHandler {
	return &kafkaHandler{
		logger: logger.With(slog.String("handler", "kafka")),
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers: cfg.Brokers,
			GroupID: cfg.GroupID,
			Topic:   cfg.OrdersTopic,
			MaxWait: cfg.ReaderMaxWait,
		}),
		dlq: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Balancer:     &kafka.LeastBytes{},
			BatchTimeout: cfg.BatchTimeout,
		},
		validate:  validator.New(),
		publisher: publisher,
	}
}

func (h *kafkaHandler) Consume(ctx context.Context) {
	for {
		m, err := h.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
				break
			}
			h.logger.Error("failed to fetch message", slog.Any("error", err))
			continue
		}

		if err := h.handlePublishOrder(ctx, m); err != nil {
			ingestFailed.Inc()
			h.logger.Error("failed to handle message", slog.Any("error", err))

			if err := h.writeToDLQ(ctx, m); err != nil {
				h.logger.Error("failed to write message to DLQ", slog.Any("error", err))
				continue
			}
			ingestDLQ.Inc()
		} else {
			ingestProcessed.Inc()
		}

		if err := h.reader.CommitMessages(ctx, m); err != nil {
			h.logger.Error("failed to commit message", slog.Any("error", err))
		}
	}
}

func (h *kafkaHandler) handlePublishOrder(ctx context.Context, m kafka.Message) error {
	var order Order
	if err := json.Unmarshal(m.Value, &order); err != nil {
		return fmt.Errorf("failed to unmarshal order: %w", err)
	}

	if err := h.validate.Struct(order); err != nil {
		return fmt.Errorf("invalid order data: %w", err)
	}

	if _, err := h.publisher.PublishOrder(ctx, OrderJSONToEntity(order)); err != nil {
		return fmt.Errorf("failed to publish order: %w", err)
	}
	return nil
}

func (h *kafkaHandler) writeToDLQ(ctx context.Context, m kafka.Message) error {
	m.Topic = fmt.Sprintf("%s-dlq", m.Topic)
	return h.dlq.WriteMessages(ctx, m)
}

func (h *kafkaHandler) Close() error {
	if err := h.reader.Close(); err != nil {
		return err
	}
	return h.dlq.Close()
}

type AcceptedSource interface {
	OnAccepted(fn func(entities.Order)) *broadcast.Subscription
}

// assignedProducer шлёт вниз по конвейеру события о выигранных заказах.
type assignedProducer struct {
	logger *slog.Logger
	writer *kafka.Writer
	source AcceptedSource
	events chan entities.Order
	sub    *broadcast.Subscription
}

func NewAssignedProducer(logger *slog.Logger, cfg config.Kafka, source AcceptedSource) *assignedProducer {
	return &assignedProducer{
		logger: logger.With(slog.String("handler", "kafka_producer")),
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.AssignedTopic,
			Balancer:     &kafka.LeastBytes{},
			BatchTimeout: cfg.BatchTimeout,
		},
		source: source,
		events: make(chan entities.Order, 64),
	}
}

func (p *assignedProducer) Consume(ctx context.Context) {
	p.sub = p.source.OnAccepted(func(order entities.Order) {
		select {
		case p.events <- order:
		default:
			p.logger.Warn("assigned event dropped", slog.String("order_id", order.ID))
		}
	})

	for {
		select {
		case <-ctx.Done():
			return
		case order := <-p.events:
			data, err := json.Marshal(OrderEntityToJSON(order))
			if err != nil {
				p.logger.Error("failed to marshal assigned event", slog.Any("error", err))
				continue
			}
			if err := p.writer.WriteMessages(ctx, kafka.Message{
				Key:   []byte(order.ID),
				Value: data,
			}); err != nil {
				p.logger.Error("failed to write assigned event", slog.Any("error", err))
				continue
			}
			assignedEvents.Inc()
		}
	}
}

func (p *assignedProducer) Close() error {
	if p.sub != nil {
		p.sub.Cancel()
	}
	return p.writer.Close()
}
