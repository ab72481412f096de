package marketdata

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestTradier(t *testing.T, handler http.Handler) *TradierSource {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	src := NewTradierSource(TradierConfig{
		BaseURL:        srv.URL,
		Token:          "test-token",
		RateLimitRPS:   1000,
		Burst:          100,
		MaxRetries:     2,
		RetryBaseDelay: time.Millisecond,
		Defaults:       DefaultGreeks(),
	}, quietLogger())
	src.clock = fixedClock
	return src
}

func tradierMux(t *testing.T) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/markets/quotes", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.Equal(t, "SPX", r.URL.Query().Get("symbols"))
		fmt.Fprint(w, `{"quotes":{"quote":{"symbol":"SPX","last":5300.5,"bid":5300,"ask":5301}}}`)
	})
	mux.HandleFunc("/markets/options/expirations", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"expirations":{"date":["2025-06-16","2025-06-20","2025-07-18"]}}`)
	})
	mux.HandleFunc("/markets/options/chains", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("expiration") {
		case "2025-06-16":
			// single contract comes back as a bare object
			fmt.Fprint(w, `{"options":{"option":{"strike":5400,"bid":5,"ask":6,"volume":10,"option_type":"call","greeks":null}}}`)
		case "2025-06-20":
			fmt.Fprint(w, `{"options":{"option":[
				{"strike":5200,"bid":20,"ask":24,"volume":200,"open_interest":800,"option_type":"put","greeks":{"delta":-0.3,"gamma":0.02,"theta":-1.4,"vega":2.0,"mid_iv":0.2}},
				{"strike":5400,"bid":20,"ask":24,"volume":200,"open_interest":800,"option_type":"call","greeks":{"delta":0.3,"gamma":0.02,"theta":-1.4,"vega":2.0,"mid_iv":0.2}},
				{"strike":5150,"bid":null,"ask":14,"option_type":"put"}
			]}}`)
		default:
			t.Errorf("unexpected expiration %s", r.URL.Query().Get("expiration"))
		}
	})
	return mux
}

func TestTradierSource_Spot(t *testing.T) {
	src := newTestTradier(t, tradierMux(t))
	spot, err := src.Spot(context.Background(), "$spx")
	require.NoError(t, err)
	assert.Equal(t, 5300.5, spot)
}

func TestTradierSource_SpotFallsBackToMid(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/markets/quotes", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"quotes":{"quote":[{"symbol":"SPY","last":null,"bid":530,"ask":531}]}}`)
	})
	src := newTestTradier(t, mux)

	spot, err := src.Spot(context.Background(), "SPY")
	require.NoError(t, err)
	assert.Equal(t, 530.5, spot)
}

func TestTradierSource_Chain(t *testing.T) {
	src := newTestTradier(t, tradierMux(t))

	chain, err := src.Chain(context.Background(), "$SPX", 0, 7)
	require.NoError(t, err)
	assert.Equal(t, 5300.5, chain.Spot)
	require.Len(t, chain.Expirations, 2)

	first := chain.Expirations[0]
	assert.Equal(t, 3, first.DTE)
	require.Len(t, first.Calls, 1)
	assert.Equal(t, 0.01, first.Calls[0].Gamma, "null greeks take defaults")

	second := chain.Expirations[1]
	assert.Equal(t, 7, second.DTE)
	require.Len(t, second.Puts, 2)
	assert.Equal(t, 5150.0, second.Puts[0].Strike)
	assert.Equal(t, 0.0, second.Puts[0].Bid)
	assert.Equal(t, 0.2, second.Puts[1].ImpliedVolatility)
	require.Len(t, second.Calls, 1)
	assert.Equal(t, 0.3, second.Calls[0].Delta)
}

func TestTradierSource_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/markets/quotes", func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, `{"quotes":{"quote":{"symbol":"SPX","last":5300}}}`)
	})
	src := newTestTradier(t, mux)

	spot, err := src.Spot(context.Background(), "SPX")
	require.NoError(t, err)
	assert.Equal(t, 5300.0, spot)
	assert.Equal(t, int32(3), calls.Load())
}

func TestTradierSource_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/markets/quotes", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad token", http.StatusUnauthorized)
	})
	src := newTestTradier(t, mux)

	_, err := src.Spot(context.Background(), "SPX")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSpotUnavailable)
	assert.Contains(t, err.Error(), "401")
	assert.Contains(t, err.Error(), "after 1 attempts")
	assert.Equal(t, int32(1), calls.Load())
}

func TestTradierSource_RetryAttempts(t *testing.T) {
	tests := []struct {
		name      string
		handler   http.HandlerFunc
		wantCalls int32
		wantMsg   string
	}{
		{
			name: "server errors exhaust retries",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "busy", http.StatusBadGateway)
			},
			wantCalls: 3,
			wantMsg:   "after 3 attempts",
		},
		{
			name: "rate limited responses are retried",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "slow down", http.StatusTooManyRequests)
			},
			wantCalls: 3,
			wantMsg:   "after 3 attempts",
		},
		{
			name: "malformed body is not retried",
			handler: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `{"quotes":`)
			},
			wantCalls: 1,
			wantMsg:   "after 1 attempts",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			mux := http.NewServeMux()
			mux.HandleFunc("/markets/quotes", func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				tt.handler(w, r)
			})

			_, err := newTestTradier(t, mux).Spot(context.Background(), "SPX")
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrSpotUnavailable)
			assert.Contains(t, err.Error(), tt.wantMsg)
			assert.Equal(t, tt.wantCalls, calls.Load())
		})
	}
}

func TestIsRetryable(t *testing.T) {
	ctx := context.Background()
	cancelled, cancel := context.WithCancel(ctx)
	cancel()

	transport := fmt.Errorf("%w: %w", errTransport, errors.New("connection reset"))

	assert.True(t, isRetryable(ctx, transport))
	assert.True(t, isRetryable(ctx, &statusError{Code: http.StatusServiceUnavailable}))
	assert.True(t, isRetryable(ctx, &statusError{Code: http.StatusTooManyRequests}))
	assert.False(t, isRetryable(ctx, &statusError{Code: http.StatusNotFound}))
	assert.False(t, isRetryable(ctx, fmt.Errorf("decode response: %w", errors.New("unexpected EOF"))))
	assert.False(t, isRetryable(cancelled, transport))
}

func TestTradierSource_ChainFailure(t *testing.T) {
	broken := http.NewServeMux()
	broken.Handle("/markets/quotes", tradierMux(t))
	broken.HandleFunc("/markets/options/expirations", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"expirations":{"date":"2025-06-20"}}`)
	})
	broken.HandleFunc("/markets/options/chains", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadRequest)
	})
	src := newTestTradier(t, broken)

	_, err := src.Chain(context.Background(), "SPX", 0, 7)
	assert.ErrorIs(t, err, ErrChainUnavailable)
}

func TestTradierSource_NoExpirations(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/markets/quotes", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"quotes":{"quote":{"symbol":"XYZ","last":10}}}`)
	})
	mux.HandleFunc("/markets/options/expirations", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"expirations":null}`)
	})
	src := newTestTradier(t, mux)

	chain, err := src.Chain(context.Background(), "XYZ", 0, 7)
	require.NoError(t, err)
	assert.Empty(t, chain.Expirations)
	assert.Equal(t, 10.0, chain.Spot)
}

func TestDecodeOneOrMany(t *testing.T) {
	many, err := decodeOneOrMany[string]([]byte(`["a","b"]`))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, many)

	one, err := decodeOneOrMany[string]([]byte(`"a"`))
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, one)

	none, err := decodeOneOrMany[string]([]byte(`null`))
	require.NoError(t, err)
	assert.Nil(t, none)

	_, err = decodeOneOrMany[string]([]byte(`{`))
	assert.Error(t, err)
}
