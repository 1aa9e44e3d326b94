package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mitraexpress/dispatch-service/internal/entities"
)

const (
	keyPrefix     = "orders:"
	changeChannel = "orders:changed"
)

// RedisStore хранит записи пула как JSON-значения под orders:<id>,
// изменения рассылает через pub/sub канал.
type RedisStore struct {
	client *redis.Client
	logger *slog.Logger
}

func NewRedisStore(logger *slog.Logger, client *redis.Client) *RedisStore {
	return &RedisStore{
		client: client,
		logger: logger.With(slog.String("store", "redis")),
	}
}

func (s *RedisStore) key(orderID string) string {
	return keyPrefix + orderID
}

func (s *RedisStore) Write(ctx context.Context, order entities.Order) error {
	data, err := json.Marshal(EntityToRecord(order))
	if err != nil {
		return fmt.Errorf("failed to marshal order record: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.key(order.ID), data, 0)
	pipe.Publish(ctx, changeChannel, order.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: %v", entities.ErrStoreUnavailable, err)
	}
	return nil
}

func (s *RedisStore) ReadOnce(ctx context.Context, orderID string) (entities.Order, error) {
	data, err := s.client.Get(ctx, s.key(orderID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return entities.Order{}, entities.ErrOrderNotFound
	}
	if err != nil {
		return entities.Order{}, fmt.Errorf("%w: %v", entities.ErrStoreUnavailable, err)
	}

	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return entities.Order{}, fmt.Errorf("%w: %v", entities.ErrInvalidOrder, err)
	}
	return RecordToEntity(record), nil
}

// ConditionalAssign переводит заказ SEARCHING -> ASSIGNED через WATCH-транзакцию.
// Если запись изменилась между чтением и записью, транзакция падает целиком —
// проигравший получает ErrOrderAlreadyTaken, двух победителей быть не может.
func (s *RedisStore) ConditionalAssign(ctx context.Context, orderID string, courier entities.Courier, acceptedAt time.Time) (entities.Order, error) {
	key := s.key(orderID)
	var updated entities.Order

	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return entities.ErrOrderNotFound
		}
		if err != nil {
			// на стадии GET записи ещё не было: ошибка здесь (включая таймаут) —
			// недоступность стора, не проигранная гонка. Неоднозначен только
			// таймаут на стадии EXEC — он уходит наверх как есть
			return fmt.Errorf("%w: %v", entities.ErrStoreUnavailable, err)
		}

		var record Record
		if err := json.Unmarshal(data, &record); err != nil {
			return fmt.Errorf("%w: %v", entities.ErrInvalidOrder, err)
		}

		if record.Status != string(entities.StatusSearching) {
			return entities.ErrOrderAlreadyTaken
		}

		record.Status = string(entities.StatusAssigned)
		record.IDKurir = courier.ID
		record.KurirName = courier.Name
		record.AcceptedAt = acceptedAt.UnixMilli()
		record.UpdatedAt = acceptedAt.UnixMilli()

		payload, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("failed to marshal order record: %w", err)
		}

		if _, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, 0)
			pipe.Publish(ctx, changeChannel, orderID)
			return nil
		}); err != nil {
			return err
		}

		updated = RecordToEntity(record)
		return nil
	}

	err := s.client.Watch(ctx, txf, key)
	if errors.Is(err, redis.TxFailedErr) {
		// проигранная гонка: кто-то записал между GET и EXEC
		return entities.Order{}, entities.ErrOrderAlreadyTaken
	}
	if err != nil {
		return entities.Order{}, err
	}
	return updated, nil
}

func (s *RedisStore) Subscribe(ctx context.Context, fn SnapshotFunc) (*Subscription, error) {
	ps := s.client.Subscribe(ctx, changeChannel)
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, fmt.Errorf("%w: %v", entities.ErrStoreUnavailable, err)
	}

	go func() {
		// первый срез сразу после подписки, дальше — по уведомлениям;
		// переподключение pub/sub делает сам go-redis
		s.push(ctx, fn)

		ch := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-ch:
				if !ok {
					return
				}
				s.push(ctx, fn)
			}
		}
	}()

	return newSubscription(func() {
		if err := ps.Close(); err != nil {
			s.logger.Error("failed to close pubsub", slog.Any("error", err))
		}
	}), nil
}

func (s *RedisStore) push(ctx context.Context, fn SnapshotFunc) {
	orders, err := s.snapshot(ctx)
	if err != nil {
		s.logger.Error("failed to load pool snapshot", slog.Any("error", err))
		return
	}
	fn(orders)
}

func (s *RedisStore) snapshot(ctx context.Context) ([]entities.Order, error) {
	var keys []string
	iter := s.client.Scan(ctx, 0, keyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", entities.ErrStoreUnavailable, err)
	}

	if len(keys) == 0 {
		return []entities.Order{}, nil
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", entities.ErrStoreUnavailable, err)
	}

	orders := make([]entities.Order, 0, len(values))
	for i, value := range values {
		raw, ok := value.(string)
		if !ok {
			// ключ удалили между SCAN и MGET
			continue
		}

		var record Record
		if err := json.Unmarshal([]byte(raw), &record); err != nil {
			s.logger.Error("skipping malformed record",
				slog.String("key", keys[i]), slog.Any("error", err))
			continue
		}
		orders = append(orders, RecordToEntity(record))
	}

	sortOrders(orders)
	return orders, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
