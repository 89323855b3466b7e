package main

import (
	"context"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"github.com/distributed-system-hk251/saga-choreography/app"
	"github.com/distributed-system-hk251/saga-choreography/internal/dedup"
	"github.com/distributed-system-hk251/saga-choreography/internal/dispatch"
	"github.com/distributed-system-hk251/saga-choreography/internal/event"
	"github.com/distributed-system-hk251/saga-choreography/internal/middleware"
	"github.com/distributed-system-hk251/saga-choreography/internal/outbox"
	"github.com/distributed-system-hk251/saga-choreography/internal/product"
	"github.com/distributed-system-hk251/saga-choreography/lib/kafka"
	"github.com/distributed-system-hk251/saga-choreography/router"
)

func main() {
	cfg, err := app.Load("product")
	if err != nil {
		logrus.WithError(err).Fatal("load config")
	}
	log := cfg.Logging.NewLogger(cfg.Service)

	db, err := cfg.Database.Open(
		&product.Product{},
		&outbox.Entry{}, &dedup.ProcessedEvent{},
	)
	if err != nil {
		log.WithError(err).Fatal("open database")
	}

	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			log.WithError(err).Warn("redis unreachable, running without cache")
			rdb = nil
		}
	}

	kcfg := kafka.Config{Brokers: cfg.Kafka.Brokers, GroupID: cfg.Kafka.GroupID}
	if err := kcfg.Ping(context.Background()); err != nil {
		log.WithError(err).Fatal("kafka unreachable")
	}
	for _, topic := range []string{event.TopicOrderRelay, event.TopicProductRelay, event.TopicStockReserveRelease} {
		if err := kafka.CreateTopic(kcfg, topic, 3, 1); err != nil {
			log.WithError(err).WithField("topic", topic).Warn("create topic failed")
		}
	}

	producer := kafka.NewProducer(kcfg)
	defer producer.Close()

	relay := outbox.NewRelay(db, producer, event.TopicProductRelay, log)
	relay.Start()
	defer relay.Stop()

	writer := outbox.NewWriter(log)
	repo := product.NewRepo(db)
	ledger := product.NewLedger(repo)
	cache := product.NewCache(rdb, cfg.Redis.TTL, log)
	svc := product.NewService(repo, ledger, writer, cache, log)

	d := dispatch.New(db, dedup.Guard{}, cfg.Kafka.GroupID, log)
	d.Register(event.TopicOrderRelay, event.KindOrderCreated, svc.HandleOrderCreated)
	d.Register(event.TopicStockReserveRelease, event.KindStockReserveRelease, svc.HandleStockReserveRelease)

	worker := kafka.NewWorker(kcfg, cfg.Kafka.GroupID,
		[]string{event.TopicOrderRelay, event.TopicStockReserveRelease},
		cfg.Kafka.Concurrency, log, d.HandleMessage)
	defer worker.Close()
	go func() {
		if err := worker.Run(context.Background()); err != nil {
			log.WithError(err).Fatal("kafka worker stopped")
		}
	}()

	fiberApp, api := router.New()
	adminGuard := middleware.APIKeyAuth(app.Getenv("API_KEY", ""))
	product.NewHandler(svc).Register(api, adminGuard)

	log.WithField("port", cfg.HTTPPort).Info("product service listening")
	if err := fiberApp.Listen(":" + cfg.HTTPPort); err != nil {
		log.WithError(err).Fatal("http server stopped")
	}
}
