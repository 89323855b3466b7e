package fcm

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/option"
)

type Client struct {
	client *messaging.Client
	log    *logrus.Entry
}

// New initializes a Firebase Cloud Messaging client from a credentials file.
func New(ctx context.Context, credentialsPath string, log *logrus.Entry) (*Client, error) {
	opt := option.WithCredentialsFile(credentialsPath)
	app, err := firebase.NewApp(ctx, nil, opt)
	if err != nil {
		return nil, fmt.Errorf("initializing firebase app: %w", err)
	}

	messagingClient, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("getting messaging client: %w", err)
	}

	return &Client{client: messagingClient, log: log}, nil
}

// Send pushes one notification to a device token.
func (c *Client) Send(ctx context.Context, token, title, body string, data map[string]string) error {
	msg := &messaging.Message{
		Token: token,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Data: data,
	}
	_, err := c.client.Send(ctx, msg)
	return err
}

// SendMulti pushes to every token, logging per-token failures instead of
// aborting the batch.
func (c *Client) SendMulti(ctx context.Context, tokens []string, title, body string, data map[string]string) {
	for _, token := range tokens {
		if err := c.Send(ctx, token, title, body, data); err != nil {
			c.log.WithError(err).WithField("token", token).Warn("FCM push failed")
		}
	}
}
