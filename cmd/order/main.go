package main

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/distributed-system-hk251/saga-choreography/app"
	"github.com/distributed-system-hk251/saga-choreography/internal/dedup"
	"github.com/distributed-system-hk251/saga-choreography/internal/dispatch"
	"github.com/distributed-system-hk251/saga-choreography/internal/event"
	"github.com/distributed-system-hk251/saga-choreography/internal/order"
	"github.com/distributed-system-hk251/saga-choreography/internal/outbox"
	"github.com/distributed-system-hk251/saga-choreography/lib/kafka"
	"github.com/distributed-system-hk251/saga-choreography/router"
)

func main() {
	cfg, err := app.Load("order")
	if err != nil {
		logrus.WithError(err).Fatal("load config")
	}
	log := cfg.Logging.NewLogger(cfg.Service)

	db, err := cfg.Database.Open(
		&order.Order{}, &order.OrderItem{},
		&outbox.Entry{}, &dedup.ProcessedEvent{},
	)
	if err != nil {
		log.WithError(err).Fatal("open database")
	}

	kcfg := kafka.Config{Brokers: cfg.Kafka.Brokers, GroupID: cfg.Kafka.GroupID}
	if err := kcfg.Ping(context.Background()); err != nil {
		log.WithError(err).Fatal("kafka unreachable")
	}
	for _, topic := range []string{event.TopicOrderRelay, event.TopicProductRelay, event.TopicPaymentRelay} {
		if err := kafka.CreateTopic(kcfg, topic, 3, 1); err != nil {
			log.WithError(err).WithField("topic", topic).Warn("create topic failed")
		}
	}

	producer := kafka.NewProducer(kcfg)
	defer producer.Close()

	relay := outbox.NewRelay(db, producer, event.TopicOrderRelay, log)
	relay.Start()
	defer relay.Stop()

	writer := outbox.NewWriter(log)
	repo := order.NewRepo(db)
	pricer := order.NewHTTPPricer(app.Getenv("PRODUCT_SERVICE_URL", "http://localhost:3637"))
	svc := order.NewService(db, repo, writer, pricer, log)

	d := dispatch.New(db, dedup.Guard{}, cfg.Kafka.GroupID, log)
	d.Register(event.TopicProductRelay, event.KindStockReserveSucceeded, svc.HandleStockReserveSucceeded)
	d.Register(event.TopicProductRelay, event.KindStockReserveFailed, svc.HandleStockReserveFailed)
	d.Register(event.TopicPaymentRelay, event.KindPaymentAuthorizeSucceeded, svc.HandlePaymentSucceeded)
	d.Register(event.TopicPaymentRelay, event.KindPaymentAuthorizeFailed, svc.HandlePaymentFailed)
	d.Register(event.TopicPaymentRelay, event.KindPaymentRefunded, svc.HandlePaymentRefunded)

	worker := kafka.NewWorker(kcfg, cfg.Kafka.GroupID,
		[]string{event.TopicProductRelay, event.TopicPaymentRelay},
		cfg.Kafka.Concurrency, log, d.HandleMessage)
	defer worker.Close()
	go func() {
		if err := worker.Run(context.Background()); err != nil {
			log.WithError(err).Fatal("kafka worker stopped")
		}
	}()

	fiberApp, api := router.New()
	order.NewHandler(svc).Register(api)

	log.WithField("port", cfg.HTTPPort).Info("order service listening")
	if err := fiberApp.Listen(":" + cfg.HTTPPort); err != nil {
		log.WithError(err).Fatal("http server stopped")
	}
}
