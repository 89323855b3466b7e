package main

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/distributed-system-hk251/saga-choreography/app"
	"github.com/distributed-system-hk251/saga-choreography/internal/dedup"
	"github.com/distributed-system-hk251/saga-choreography/internal/dispatch"
	"github.com/distributed-system-hk251/saga-choreography/internal/event"
	"github.com/distributed-system-hk251/saga-choreography/internal/middleware"
	"github.com/distributed-system-hk251/saga-choreography/internal/outbox"
	"github.com/distributed-system-hk251/saga-choreography/internal/payment"
	"github.com/distributed-system-hk251/saga-choreography/lib/kafka"
	"github.com/distributed-system-hk251/saga-choreography/router"
)

func main() {
	cfg, err := app.Load("payment")
	if err != nil {
		logrus.WithError(err).Fatal("load config")
	}
	log := cfg.Logging.NewLogger(cfg.Service)

	db, err := cfg.Database.Open(
		&payment.Payment{},
		&outbox.Entry{}, &dedup.ProcessedEvent{},
	)
	if err != nil {
		log.WithError(err).Fatal("open database")
	}

	kcfg := kafka.Config{Brokers: cfg.Kafka.Brokers, GroupID: cfg.Kafka.GroupID}
	if err := kcfg.Ping(context.Background()); err != nil {
		log.WithError(err).Fatal("kafka unreachable")
	}
	for _, topic := range []string{event.TopicPaymentRelay, event.TopicPaymentAuthorize} {
		if err := kafka.CreateTopic(kcfg, topic, 3, 1); err != nil {
			log.WithError(err).WithField("topic", topic).Warn("create topic failed")
		}
	}

	producer := kafka.NewProducer(kcfg)
	defer producer.Close()

	relay := outbox.NewRelay(db, producer, event.TopicPaymentRelay, log)
	relay.Start()
	defer relay.Stop()

	writer := outbox.NewWriter(log)
	repo := payment.NewRepo(db)
	gateway := payment.NewSimulator()
	svc := payment.NewService(db, repo, gateway, writer, log)

	d := dispatch.New(db, dedup.Guard{}, cfg.Kafka.GroupID, log)
	d.Register(event.TopicPaymentAuthorize, event.KindPaymentAuthorize, svc.HandlePaymentAuthorize)

	worker := kafka.NewWorker(kcfg, cfg.Kafka.GroupID,
		[]string{event.TopicPaymentAuthorize},
		cfg.Kafka.Concurrency, log, d.HandleMessage)
	defer worker.Close()
	go func() {
		if err := worker.Run(context.Background()); err != nil {
			log.WithError(err).Fatal("kafka worker stopped")
		}
	}()

	fiberApp, api := router.New()
	adminGuard := middleware.APIKeyAuth(app.Getenv("API_KEY", ""))
	payment.NewHandler(svc).Register(api, adminGuard)

	log.WithField("port", cfg.HTTPPort).Info("payment service listening")
	if err := fiberApp.Listen(":" + cfg.HTTPPort); err != nil {
		log.WithError(err).Fatal("http server stopped")
	}
}
