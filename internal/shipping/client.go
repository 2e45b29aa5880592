package shipping

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker"

	"github.com/minhdang/storefront-backend/pkg/config"
	pkgerrors "github.com/minhdang/storefront-backend/pkg/errors"
	"github.com/minhdang/storefront-backend/pkg/logger"
)

// FeeRequest describes one quote against the external fee calculator.
type FeeRequest struct {
	Subtotal  int64  `json:"subtotal"`
	City      string `json:"city"`
	District  string `json:"district"`
	Ward      string `json:"ward"`
	Address   string `json:"address"`
	ItemCount int    `json:"item_count"`
}

type feeResponse struct {
	Fee int64 `json:"fee"`
}

// FeeCalculator quotes a shipping fee for a delivery address.
type FeeCalculator interface {
	Quote(ctx context.Context, req FeeRequest) (int64, error)
}

// Client talks to the external shipping-fee service through a circuit
// breaker. Any transport, HTTP or breaker failure surfaces as the
// retryable SHIPPING_FEE_UNAVAILABLE error.
type Client struct {
	http    *resty.Client
	breaker *gobreaker.CircuitBreaker
	log     *logger.Logger
}

// NewClient builds a shipping client from configuration.
func NewClient(cfg config.ShippingConfig, log *logger.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("shipping base url required")
	}
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}

	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.RequestTimeout).
		SetRetryCount(0)
	if cfg.Token != "" {
		httpClient.SetAuthToken(cfg.Token)
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:     "shipping-fee",
		Interval: cfg.BreakerInterval,
		Timeout:  cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn(context.Background(), fmt.Sprintf("circuit breaker %s moved from %s to %s", name, from, to))
		},
	})

	return &Client{http: httpClient, breaker: breaker, log: log}, nil
}

// Quote returns the fee in minor units for the given delivery.
func (c *Client) Quote(ctx context.Context, req FeeRequest) (int64, error) {
	result, err := c.breaker.Execute(func() (any, error) {
		var out feeResponse
		resp, err := c.http.R().
			SetContext(ctx).
			SetBody(req).
			SetResult(&out).
			Post("/fees/quote")
		if err != nil {
			return nil, err
		}
		if resp.StatusCode() != http.StatusOK {
			return nil, fmt.Errorf("shipping fee service returned %d", resp.StatusCode())
		}
		if out.Fee < 0 {
			return nil, fmt.Errorf("shipping fee service returned negative fee %d", out.Fee)
		}
		return out.Fee, nil
	})
	if err != nil {
		c.log.Error(ctx, "shipping fee quote failed", err)
		return 0, pkgerrors.Wrap(pkgerrors.CodeShippingUnavailable, err, "quote shipping fee")
	}
	return result.(int64), nil
}
