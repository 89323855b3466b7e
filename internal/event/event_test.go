package event

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnwrapBareObject(t *testing.T) {
	raw := []byte(`{"orderId":7,"status":"PENDING"}`)
	body, err := Unwrap(raw)
	require.NoError(t, err)
	assert.JSONEq(t, string(raw), string(body))
}

func TestUnwrapEnvelopeObjectPayload(t *testing.T) {
	raw := []byte(`{"schema":{"type":"struct"},"payload":{"orderId":7}}`)
	body, err := Unwrap(raw)
	require.NoError(t, err)
	assert.JSONEq(t, `{"orderId":7}`, string(body))
}

func TestUnwrapEnvelopeStringPayload(t *testing.T) {
	raw := []byte(`{"schema":{"type":"string"},"payload":"{\"orderId\":7,\"status\":\"PENDING\"}"}`)
	body, err := Unwrap(raw)
	require.NoError(t, err)
	assert.JSONEq(t, `{"orderId":7,"status":"PENDING"}`, string(body))
}

func TestUnwrapMalformed(t *testing.T) {
	_, err := Unwrap([]byte(`{"payload":`))
	assert.Error(t, err)
}

func TestKindOfPrefersHeader(t *testing.T) {
	headers := map[string]string{"eventType": "ORDER_CREATED"}
	body := []byte(`{"eventType":"ORDER_STATUS_UPDATED"}`)

	kind, ok := KindOf(headers, body, TopicOrderRelay)
	require.True(t, ok)
	assert.Equal(t, KindOrderCreated, kind)
}

func TestKindOfFallsBackToBody(t *testing.T) {
	body := []byte(`{"eventType":"STOCK_RESERVE_FAILED","orderId":1}`)

	kind, ok := KindOf(nil, body, TopicProductRelay)
	require.True(t, ok)
	assert.Equal(t, KindStockReserveFailed, kind)
}

func TestKindOfSingleKindTopic(t *testing.T) {
	kind, ok := KindOf(nil, []byte(`{"orderId":1}`), TopicPaymentAuthorize)
	require.True(t, ok)
	assert.Equal(t, KindPaymentAuthorize, kind)
}

func TestKindOfUnresolvable(t *testing.T) {
	_, ok := KindOf(nil, []byte(`{"orderId":1}`), TopicOrderRelay)
	assert.False(t, ok)
}

func TestIDOfPrefersHeader(t *testing.T) {
	headers := map[string]string{"eventId": "abc"}
	assert.Equal(t, "abc", IDOf(headers, []byte(`{"eventId":"def"}`)))
	assert.Equal(t, "def", IDOf(nil, []byte(`{"eventId":"def"}`)))
	assert.Equal(t, "", IDOf(nil, []byte(`{}`)))
}

func TestDecodeOrderEventCarriesKind(t *testing.T) {
	body := []byte(`{"orderId":3,"userId":9,"status":"PENDING","totalAmount":"125.50","items":[{"productId":1,"quantity":2}]}`)

	p, err := Decode(KindOrderCreated, body)
	require.NoError(t, err)

	evt, ok := p.(OrderEvent)
	require.True(t, ok)
	assert.Equal(t, KindOrderCreated, evt.EventKind())
	assert.Equal(t, "3", evt.AggregateID())
	assert.True(t, evt.TotalAmount.Equal(decimal.RequireFromString("125.50")))
	require.Len(t, evt.Items, 1)
	assert.Equal(t, 1, evt.Items[0].ProductID)
}

func TestDecodePaymentAuthorize(t *testing.T) {
	body := []byte(`{"eventId":"e1","orderId":4,"amount":"99.99"}`)

	p, err := Decode(KindPaymentAuthorize, body)
	require.NoError(t, err)

	evt, ok := p.(PaymentAuthorize)
	require.True(t, ok)
	assert.Equal(t, "e1", evt.EventID)
	assert.True(t, evt.Amount.Equal(decimal.RequireFromString("99.99")))
}

func TestDecodeUnknownKind(t *testing.T) {
	_, err := Decode(Kind("SOMETHING_ELSE"), []byte(`{}`))
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestDecodeRejectsMalformedBody(t *testing.T) {
	_, err := Decode(KindStockReserveRelease, []byte(`{"items":`))
	assert.Error(t, err)
}

func TestKindsByTopicCoversEveryKind(t *testing.T) {
	seen := map[Kind]bool{}
	for _, kinds := range KindsByTopic {
		for _, k := range kinds {
			seen[k] = true
		}
	}
	all := []Kind{
		KindOrderCreated, KindOrderStatusUpdated,
		KindStockReserveSucceeded, KindStockReserveFailed,
		KindPaymentAuthorize, KindPaymentAuthorizeSucceeded, KindPaymentAuthorizeFailed, KindPaymentRefunded,
		KindStockReserveRelease, KindNotificationSend,
	}
	for _, k := range all {
		assert.Truef(t, seen[k], "kind %s is not routed to any topic", k)
	}
}

func TestPayloadJSONFieldNames(t *testing.T) {
	raw, err := json.Marshal(StockReserveRelease{EventID: "e2", OrderID: 5, Items: []Item{{ProductID: 2, Quantity: 1}}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"eventId":"e2","orderId":5,"items":[{"productId":2,"quantity":1}]}`, string(raw))
}
