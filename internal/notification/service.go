package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/distributed-system-hk251/saga-choreography/internal/event"
)

// Pusher delivers a notification to a batch of device tokens. A nil Pusher
// means push delivery is disabled and notifications are store-only.
type Pusher interface {
	SendMulti(ctx context.Context, tokens []string, title, body string, data map[string]string)
}

type Service struct {
	repo   Repo
	pusher Pusher
	log    *logrus.Entry
}

func NewService(repo Repo, pusher Pusher, log *logrus.Entry) *Service {
	return &Service{repo: repo, pusher: pusher, log: log}
}

// HandleNotificationSend stores the notification in the handler's
// transaction, then pushes to the user's devices best-effort. Push failures
// never fail the handler; the stored row is the source of truth.
func (s *Service) HandleNotificationSend(ctx context.Context, tx *gorm.DB, p event.Payload) error {
	evt, ok := p.(event.NotificationSend)
	if !ok {
		return fmt.Errorf("unexpected payload %T", p)
	}

	if err := s.store(tx, evt.OrderID, evt.UserID, evt.Type, evt.Message, evt.EventID); err != nil {
		return err
	}

	s.push(ctx, evt)
	return nil
}

// HandleOrderEvent records a notification for each order lifecycle event.
// These rows are store-only; only NOTIFICATION_SEND commands trigger pushes.
func (s *Service) HandleOrderEvent(ctx context.Context, tx *gorm.DB, p event.Payload) error {
	evt, ok := p.(event.OrderEvent)
	if !ok {
		return fmt.Errorf("unexpected payload %T", p)
	}

	var notifType, message string
	switch evt.EventKind() {
	case event.KindOrderCreated:
		notifType = "ORDER_CONFIRMATION"
		message = fmt.Sprintf("Order #%d has been created successfully", evt.OrderID)
	default:
		switch evt.Status {
		case "CANCELED":
			notifType = "ORDER_CANCELLATION"
			message = fmt.Sprintf("Order #%d has been cancelled", evt.OrderID)
		case "COMPLETED":
			notifType = "ORDER_COMPLETION"
			message = fmt.Sprintf("Order #%d has been completed", evt.OrderID)
		case "STOCK_FAILED", "PAYMENT_FAILED":
			notifType = "ORDER_FAILURE"
			message = fmt.Sprintf("Order #%d has failed", evt.OrderID)
		default:
			notifType = "GENERAL"
			message = fmt.Sprintf("Order #%d - Status: %s", evt.OrderID, evt.Status)
		}
	}

	return s.store(tx, evt.OrderID, evt.UserID, notifType, message, evt.EventID)
}

// HandlePaymentEvent records a notification for each payment lifecycle event.
func (s *Service) HandlePaymentEvent(ctx context.Context, tx *gorm.DB, p event.Payload) error {
	var (
		orderID            int
		eventID            string
		notifType, message string
	)
	switch evt := p.(type) {
	case event.PaymentAuthorizeSucceeded:
		orderID, eventID = evt.OrderID, evt.EventID
		notifType = "PAYMENT_SUCCESS"
		message = fmt.Sprintf("Payment successful for order #%d", orderID)
	case event.PaymentAuthorizeFailed:
		orderID, eventID = evt.OrderID, evt.EventID
		notifType = "PAYMENT_FAILURE"
		message = fmt.Sprintf("Payment failed for order #%d. Please try again", orderID)
	case event.PaymentRefunded:
		orderID, eventID = evt.OrderID, evt.EventID
		notifType = "PAYMENT_REFUND"
		message = fmt.Sprintf("Refund processed for order #%d", orderID)
	default:
		return fmt.Errorf("unexpected payload %T", p)
	}

	return s.store(tx, orderID, 0, notifType, message, eventID)
}

func (s *Service) store(tx *gorm.DB, orderID, userID int, notifType, message, eventID string) error {
	meta, _ := json.Marshal(map[string]any{
		"orderId": orderID,
		"eventId": eventID,
	})
	n := &Notification{
		OrderID:  orderID,
		UserID:   userID,
		Type:     notifType,
		Message:  message,
		Metadata: meta,
	}
	if err := s.repo.Create(tx, n); err != nil {
		return err
	}
	s.log.WithFields(logrus.Fields{"order_id": orderID, "type": notifType}).Info("notification stored")
	return nil
}

func (s *Service) push(ctx context.Context, evt event.NotificationSend) {
	if s.pusher == nil || evt.UserID == 0 {
		return
	}
	tokens, err := s.repo.ActiveTokens(ctx, evt.UserID)
	if err != nil {
		s.log.WithError(err).WithField("user_id", evt.UserID).Warn("loading device tokens failed")
		return
	}
	if len(tokens) == 0 {
		return
	}
	s.pusher.SendMulti(ctx, tokens, titleFor(evt.Type), evt.Message, map[string]string{
		"orderId": strconv.Itoa(evt.OrderID),
		"type":    evt.Type,
	})
}

func titleFor(notifType string) string {
	switch notifType {
	case "PAYMENT_SUCCESS":
		return "Payment successful"
	case "PAYMENT_FAILED":
		return "Payment failed"
	case "PAYMENT_REFUND":
		return "Order refunded"
	case "STOCK_RESERVE_FAILED":
		return "Order cannot be processed"
	case "ORDER_CANCELLED":
		return "Order cancelled"
	default:
		return "Order update"
	}
}

func (s *Service) List(ctx context.Context, q Query) ([]Notification, int64, error) {
	return s.repo.List(ctx, q)
}

func (s *Service) RegisterDeviceToken(ctx context.Context, t *DeviceToken) error {
	if t.DeviceToken == "" {
		return fmt.Errorf("device_token is required")
	}
	if t.DeviceType == "" {
		t.DeviceType = "web"
	}
	return s.repo.SaveDeviceToken(ctx, t)
}
