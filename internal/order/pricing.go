package order

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/distributed-system-hk251/saga-choreography/internal/event"
)

// HTTPPricer asks the inventory service for the total amount of an item list.
// Prices live with the products, so order creation makes one synchronous call.
type HTTPPricer struct {
	baseURL string
	client  *http.Client
}

func NewHTTPPricer(baseURL string) *HTTPPricer {
	return &HTTPPricer{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 5 * time.Second},
	}
}

type totalAmountResponse struct {
	Status bool            `json:"status"`
	Data   decimal.Decimal `json:"data"`
	Error  string          `json:"error"`
}

func (p *HTTPPricer) TotalAmount(ctx context.Context, items []event.Item) (decimal.Decimal, error) {
	body, err := json.Marshal(map[string]any{"items": items})
	if err != nil {
		return decimal.Zero, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/products/total_amount", bytes.NewReader(body))
	if err != nil {
		return decimal.Zero, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("product service unreachable: %w", err)
	}
	defer resp.Body.Close()

	var out totalAmountResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return decimal.Zero, fmt.Errorf("decode total amount response: %w", err)
	}
	if resp.StatusCode != http.StatusOK || !out.Status {
		return decimal.Zero, fmt.Errorf("product service rejected pricing request: %s", orDefault(out.Error, resp.Status))
	}
	return out.Data, nil
}
