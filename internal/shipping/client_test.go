package shipping

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/minhdang/storefront-backend/pkg/config"
	pkgerrors "github.com/minhdang/storefront-backend/pkg/errors"
	"github.com/minhdang/storefront-backend/pkg/logger"
	"github.com/rs/zerolog"
)

func testShippingConfig(baseURL string) config.ShippingConfig {
	return config.ShippingConfig{
		BaseURL:         baseURL,
		RequestTimeout:  2 * time.Second,
		BreakerInterval: time.Minute,
		BreakerTimeout:  time.Minute,
		BreakerFailures: 3,
	}
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Level: zerolog.Disabled})
}

func TestQuoteReturnsFee(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/fees/quote", r.URL.Path)

		var req FeeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, int64(150_000), req.Subtotal)
		require.Equal(t, "Hanoi", req.City)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]int64{"fee": 25_000})
	}))
	defer srv.Close()

	client, err := NewClient(testShippingConfig(srv.URL), testLogger())
	require.NoError(t, err)

	fee, err := client.Quote(context.Background(), FeeRequest{
		Subtotal:  150_000,
		City:      "Hanoi",
		District:  "Ba Dinh",
		Ward:      "Truc Bach",
		Address:   "12 Phan Dinh Phung",
		ItemCount: 2,
	})
	require.NoError(t, err)
	require.EqualValues(t, 25_000, fee)
}

func TestQuoteMapsServerErrors(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client, err := NewClient(testShippingConfig(srv.URL), testLogger())
	require.NoError(t, err)

	_, err = client.Quote(context.Background(), FeeRequest{Subtotal: 1000, City: "Hanoi"})
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeShippingUnavailable))
}

func TestQuoteTripsBreakerAfterConsecutiveFailures(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client, err := NewClient(testShippingConfig(srv.URL), testLogger())
	require.NoError(t, err)

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, err := client.Quote(ctx, FeeRequest{Subtotal: 1000, City: "Hanoi"})
		require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeShippingUnavailable))
	}

	// After three consecutive failures the breaker is open and the
	// upstream stops being called.
	require.EqualValues(t, 3, calls.Load())
}

func TestNewClientValidation(t *testing.T) {
	t.Parallel()

	_, err := NewClient(config.ShippingConfig{}, testLogger())
	require.Error(t, err)

	_, err = NewClient(testShippingConfig("http://localhost:0"), nil)
	require.Error(t, err)
}
