package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// ClientConfig holds gateway connection settings.
type ClientConfig struct {
	BaseURL  string
	KeyID    string
	Secret   string
	Currency string
}

// httpClient talks to the gateway's order API over HTTPS with basic auth.
type httpClient struct {
	cfg ClientConfig
	hc  *http.Client
}

// NewClient returns the production gateway client.
func NewClient(cfg ClientConfig) Client {
	return &httpClient{
		cfg: cfg,
		hc:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *httpClient) CreateOrder(ctx context.Context, receipt string, amountMinorUnits int64) (*Order, error) {
	body, err := json.Marshal(map[string]interface{}{
		"amount":   amountMinorUnits,
		"currency": c.cfg.Currency,
		"receipt":  receipt,
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/v1/orders", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.cfg.KeyID, c.cfg.Secret)

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway create order: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("gateway create order: status %d", resp.StatusCode)
	}
	var ord Order
	if err := json.NewDecoder(resp.Body).Decode(&ord); err != nil {
		return nil, fmt.Errorf("gateway create order: decode: %w", err)
	}
	return &ord, nil
}
