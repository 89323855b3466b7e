package main

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/distributed-system-hk251/saga-choreography/app"
	"github.com/distributed-system-hk251/saga-choreography/internal/dedup"
	"github.com/distributed-system-hk251/saga-choreography/internal/dispatch"
	"github.com/distributed-system-hk251/saga-choreography/internal/event"
	"github.com/distributed-system-hk251/saga-choreography/internal/notification"
	"github.com/distributed-system-hk251/saga-choreography/lib/fcm"
	"github.com/distributed-system-hk251/saga-choreography/lib/kafka"
	"github.com/distributed-system-hk251/saga-choreography/router"
)

func main() {
	cfg, err := app.Load("notification")
	if err != nil {
		logrus.WithError(err).Fatal("load config")
	}
	log := cfg.Logging.NewLogger(cfg.Service)

	db, err := cfg.Database.Open(
		&notification.Notification{}, &notification.DeviceToken{},
		&dedup.ProcessedEvent{},
	)
	if err != nil {
		log.WithError(err).Fatal("open database")
	}

	kcfg := kafka.Config{Brokers: cfg.Kafka.Brokers, GroupID: cfg.Kafka.GroupID}
	if err := kcfg.Ping(context.Background()); err != nil {
		log.WithError(err).Fatal("kafka unreachable")
	}
	if err := kafka.CreateTopic(kcfg, event.TopicNotificationSend, 3, 1); err != nil {
		log.WithError(err).WithField("topic", event.TopicNotificationSend).Warn("create topic failed")
	}

	var pusher notification.Pusher
	if cfg.FCM.Enabled {
		client, err := fcm.New(context.Background(), cfg.FCM.CredentialsFile, log)
		if err != nil {
			log.WithError(err).Fatal("init FCM client")
		}
		pusher = client
	}

	repo := notification.NewRepo(db)
	svc := notification.NewService(repo, pusher, log)

	d := dispatch.New(db, dedup.Guard{}, cfg.Kafka.GroupID, log)
	d.Register(event.TopicNotificationSend, event.KindNotificationSend, svc.HandleNotificationSend)
	d.Register(event.TopicOrderRelay, event.KindOrderCreated, svc.HandleOrderEvent)
	d.Register(event.TopicOrderRelay, event.KindOrderStatusUpdated, svc.HandleOrderEvent)
	d.Register(event.TopicPaymentRelay, event.KindPaymentAuthorizeSucceeded, svc.HandlePaymentEvent)
	d.Register(event.TopicPaymentRelay, event.KindPaymentAuthorizeFailed, svc.HandlePaymentEvent)
	d.Register(event.TopicPaymentRelay, event.KindPaymentRefunded, svc.HandlePaymentEvent)

	worker := kafka.NewWorker(kcfg, cfg.Kafka.GroupID,
		[]string{event.TopicNotificationSend, event.TopicOrderRelay, event.TopicPaymentRelay},
		cfg.Kafka.Concurrency, log, d.HandleMessage)
	defer worker.Close()
	go func() {
		if err := worker.Run(context.Background()); err != nil {
			log.WithError(err).Fatal("kafka worker stopped")
		}
	}()

	fiberApp, api := router.New()
	notification.NewHandler(svc).Register(api)

	log.WithField("port", cfg.HTTPPort).Info("notification service listening")
	if err := fiberApp.Listen(":" + cfg.HTTPPort); err != nil {
		log.WithError(err).Fatal("http server stopped")
	}
}
