package yahooApi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/KotFed0t/ttwo_investment_bot/config"
	"github.com/KotFed0t/ttwo_investment_bot/internal/externalApi"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApi(t *testing.T, status int, body string) *YahooApi {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v8/finance/chart/TTWO", r.URL.Path)
		assert.Equal(t, "1d", r.URL.Query().Get("range"))
		assert.Equal(t, "1d", r.URL.Query().Get("interval"))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	cfg := &config.Config{API: config.API{Timeout: 5 * time.Second, YahooApi: config.YahooApi{Url: srv.URL}}}
	return New(cfg)
}

func TestGetLastClose(t *testing.T) {
	body := `{"chart":{"result":[{"meta":{"currency":"USD","symbol":"TTWO"},
		"timestamp":[1760000000,1760086400],
		"indicators":{"quote":[{"close":[149.5,150.1234]}]}}],"error":null}`

	api := newTestApi(t, http.StatusOK, body)

	price, err := api.GetLastClose(context.Background(), "TTWO")
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("150.1234").Equal(price), "got %s", price)
}

func TestGetLastClose_SkipsTrailingNulls(t *testing.T) {
	body := `{"chart":{"result":[{"indicators":{"quote":[{"close":[148.0,null]}]}}],"error":null}`

	api := newTestApi(t, http.StatusOK, body)

	price, err := api.GetLastClose(context.Background(), "TTWO")
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(148).Equal(price), "got %s", price)
}

func TestGetLastClose_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "empty series", status: http.StatusOK, body: `{"chart":{"result":[{"indicators":{"quote":[{"close":[]}]}}],"error":null}`},
		{name: "only nulls", status: http.StatusOK, body: `{"chart":{"result":[{"indicators":{"quote":[{"close":[null]}]}}],"error":null}`},
		{name: "no quotes", status: http.StatusOK, body: `{"chart":{"result":[{"indicators":{"quote":[]}}],"error":null}`},
		{name: "no result", status: http.StatusOK, body: `{"chart":{"result":[],"error":null}`},
		{name: "zero close", status: http.StatusOK, body: `{"chart":{"result":[{"indicators":{"quote":[{"close":[0]}]}}],"error":null}`},
		{name: "malformed json", status: http.StatusOK, body: `{"chart":`},
		{name: "chart error", status: http.StatusNotFound, body: `{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found, symbol may be delisted"}}}`},
		{name: "server error", status: http.StatusInternalServerError, body: `{}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newTestApi(t, tt.status, tt.body)

			price, err := api.GetLastClose(context.Background(), "TTWO")
			require.ErrorIs(t, err, externalApi.ErrNoPrice)
			assert.True(t, price.IsZero())
		})
	}
}

func TestGetLastClose_Unreachable(t *testing.T) {
	cfg := &config.Config{API: config.API{Timeout: time.Second, YahooApi: config.YahooApi{Url: "http://127.0.0.1:1"}}}
	api := New(cfg)

	_, err := api.GetLastClose(context.Background(), "TTWO")
	require.ErrorIs(t, err, externalApi.ErrNoPrice)
}
