package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/mitraexpress/dispatch-service/internal/app"
	"github.com/mitraexpress/dispatch-service/internal/config"
	"github.com/mitraexpress/dispatch-service/internal/handler"
	"github.com/mitraexpress/dispatch-service/internal/match"
	"github.com/mitraexpress/dispatch-service/internal/postgres"
	"github.com/mitraexpress/dispatch-service/internal/redis"
	"github.com/mitraexpress/dispatch-service/internal/repo"
	"github.com/mitraexpress/dispatch-service/internal/service"
	"github.com/mitraexpress/dispatch-service/internal/store"
	"github.com/mitraexpress/dispatch-service/pkg/cache"
	"github.com/mitraexpress/dispatch-service/pkg/trm"
)

func main() {
	conf := config.New()
	logger := newLogger(conf.Env)
	panicIfErr("invalid config", conf.Validate())

	handler.RegisterMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	db, err := postgres.New(conf.Postgres)
	panicIfErr("failed to connect to db", err)
	defer db.Close()
	panicIfErr("failed to apply migrations", postgres.Migrate(db))
	logger.Info("postgres connected")

	redisClient, err := redis.New(ctx, conf.Redis)
	panicIfErr("failed to connect to redis", err)
	logger.Info("redis connected")

	orderStore := store.NewRedisStore(logger, redisClient)
	orderRepo := repo.NewPostgresRepo(db)
	txManager := trm.NewManager(db)
	lru := cache.NewLRUCache(conf.Cache.Capacity, conf.Cache.TTL)

	coordinator := match.NewCoordinator(logger, orderStore, conf.Match.AcceptTimeout)
	dispatchService := service.NewDispatchService(
		logger, txManager, orderRepo, lru, coordinator, orderStore,
		conf.Match.TickInterval, conf.Match.SessionIdleTTL)

	kafkaHandler := handler.NewKafkaHandler(logger, conf.Kafka, dispatchService)
	assignedProducer := handler.NewAssignedProducer(logger, conf.Kafka, coordinator)
	httpHandler := handler.NewHTTPHandler(logger, dispatchService)

	application := app.New(logger, conf)

	application.SetHTTPHandlers(httpHandler)
	application.SetConsumers(kafkaHandler, assignedProducer)
	application.SetStarters(lru, dispatchService)
	application.SetClosers(dispatchService, orderStore)

	panicIfErr("failed to start app", application.Start(ctx))
	<-ctx.Done()
	panicIfErr("failed to stop app", application.Stop())
}

func init() {
	godotenv.Load()
}

func newLogger(env string) *slog.Logger {
	switch env {
	case "production":
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	default:
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
}

func panicIfErr(prefix string, err error) {
	if err != nil {
		panic(prefix + ": " + err.Error())
	}
}
