package feed

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/debtview/pkg/config"
	"github.com/wonny/debtview/pkg/httputil"
	"github.com/wonny/debtview/pkg/logger"
)

const feedPath = "/api/liveBonds-traded-on-cm"

// exchange is a stub of the landing page and the order book endpoint.
type exchange struct {
	handshakeStatus int
	handshakeBody   string
	feedStatus      int
	feedBody        []byte
	encoding        string

	handshakes atomic.Int32
	mu         sync.Mutex
	issued     string
	seen       []string
}

func (x *exchange) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		n := x.handshakes.Add(1)
		token := fmt.Sprintf("session-%d", n)
		x.mu.Lock()
		x.issued = token
		x.mu.Unlock()

		http.SetCookie(w, &http.Cookie{Name: "nsit", Value: token, Path: "/"})
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if x.handshakeStatus != 0 {
			w.WriteHeader(x.handshakeStatus)
		}
		body := x.handshakeBody
		if body == "" {
			body = "<html><head><title>NSE - National Stock Exchange of India</title></head></html>"
		}
		_, _ = w.Write([]byte(body))
	})
	mux.HandleFunc(feedPath, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "gsec", r.URL.Query().Get("type"))
		assert.Equal(t, AcceptEncoding, r.Header.Get("Accept-Encoding"))
		assert.NotEmpty(t, r.Header.Get("Referer"))
		assert.NotEmpty(t, r.Header.Get("User-Agent"))

		cookie, err := r.Cookie("nsit")
		x.mu.Lock()
		issued := x.issued
		if err == nil {
			x.seen = append(x.seen, cookie.Value)
		}
		x.mu.Unlock()
		if err != nil || cookie.Value != issued {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"session expired"}`))
			return
		}

		if x.feedStatus != 0 {
			w.WriteHeader(x.feedStatus)
			_, _ = w.Write(x.feedBody)
			return
		}
		if x.encoding != "" {
			w.Header().Set("Content-Encoding", x.encoding)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(x.feedBody)
	})
	return mux
}

func newTestClient(t *testing.T, x *exchange) *Client {
	t.Helper()
	srv := httptest.NewServer(x.handler(t))
	t.Cleanup(srv.Close)

	cfg := &config.Config{Feed: config.FeedConfig{
		BaseURL:   srv.URL + "/",
		URL:       srv.URL + feedPath + "?type=gsec",
		Referer:   srv.URL + "/market-data/bonds-traded-in-capital-market",
		UserAgent: "Mozilla/5.0 (X11; Linux x86_64)",
	}}
	log := logger.NewNop()
	return NewClient(httputil.New(cfg, log).DisableRetry(), cfg.Feed, log)
}

func TestFetchEncodings(t *testing.T) {
	plain := payloadJSON(t, entry("718GS2033", SeriesGSec, 100.25))

	for _, enc := range []string{"identity", "gzip", "deflate", "br", "zstd"} {
		t.Run(enc, func(t *testing.T) {
			x := &exchange{encoding: enc, feedBody: encode(t, enc, plain)}
			client := newTestClient(t, x)

			levels, err := client.Fetch(context.Background())
			require.NoError(t, err)
			require.Len(t, levels, Levels)
			for i, q := range levels {
				assert.Equal(t, "718GS2033", q.Symbol)
				assert.Equal(t, i+1, q.Level)
				assert.Equal(t, int64(125000), q.TotalVolume)
				assert.InDelta(t, 100.25, q.VWAP, 1e-9)
			}
		})
	}
}

func TestFetchPhases(t *testing.T) {
	x := &exchange{encoding: "br", feedBody: encode(t, "br", payloadJSON(t, entry("A", SeriesGSec, 99)))}
	client := newTestClient(t, x)

	var phases []Phase
	_, err := client.FetchObserved(context.Background(), func(p Phase) { phases = append(phases, p) })
	require.NoError(t, err)
	assert.Equal(t, []Phase{PhaseAuthenticating, PhaseFetching, PhaseParsing}, phases)
}

func TestFetchFreshSessionPerCall(t *testing.T) {
	x := &exchange{feedBody: payloadJSON(t, entry("A", SeriesGSec, 99))}
	client := newTestClient(t, x)

	for i := 0; i < 3; i++ {
		_, err := client.Fetch(context.Background())
		require.NoError(t, err)
	}

	assert.Equal(t, int32(3), x.handshakes.Load())
	assert.Equal(t, []string{"session-1", "session-2", "session-3"}, x.seen)
}

func TestFetchAuthErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"forbidden", http.StatusForbidden, "<html><title>Forbidden</title></html>"},
		{"server error", http.StatusServiceUnavailable, ""},
		{"block page", http.StatusOK, "<html><head><title>Access Denied</title></head><body>Reference #18</body></html>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x := &exchange{handshakeStatus: tt.status, handshakeBody: tt.body}
			client := newTestClient(t, x)

			var phases []Phase
			_, err := client.FetchObserved(context.Background(), func(p Phase) { phases = append(phases, p) })
			require.Error(t, err)

			var ae *AuthError
			require.True(t, errors.As(err, &ae), "got %T: %v", err, err)
			assert.Equal(t, tt.status, ae.StatusCode)
			assert.Equal(t, []Phase{PhaseAuthenticating}, phases)
		})
	}
}

func TestFetchStatusError(t *testing.T) {
	x := &exchange{feedStatus: http.StatusForbidden, feedBody: []byte(`{"msg":"rate limited"}`)}
	client := newTestClient(t, x)

	_, err := client.Fetch(context.Background())
	require.Error(t, err)

	var fe *FetchError
	require.True(t, errors.As(err, &fe), "got %T: %v", err, err)
	assert.Equal(t, http.StatusForbidden, fe.StatusCode)
	assert.Contains(t, fe.Body, "rate limited")
}

func TestFetchDecompressionError(t *testing.T) {
	x := &exchange{encoding: "br", feedBody: []byte("not brotli at all")}
	client := newTestClient(t, x)

	_, err := client.Fetch(context.Background())
	var de *DecompressionError
	require.True(t, errors.As(err, &de), "got %T: %v", err, err)
	assert.Equal(t, "br", de.Encoding)
}

func TestFetchParseError(t *testing.T) {
	x := &exchange{feedBody: []byte(`{"timestamp":"10-May-2024 11:00:00"}`)}
	client := newTestClient(t, x)

	_, err := client.Fetch(context.Background())
	var pe *ParseError
	require.True(t, errors.As(err, &pe), "got %T: %v", err, err)
}

func TestFetchCancelled(t *testing.T) {
	x := &exchange{feedBody: payloadJSON(t, entry("A", SeriesGSec, 99))}
	client := newTestClient(t, x)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var phases []Phase
	_, err := client.FetchObserved(ctx, func(p Phase) { phases = append(phases, p) })
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, phases)
	assert.Equal(t, int32(0), x.handshakes.Load())
}

func TestPrintable(t *testing.T) {
	assert.Equal(t, "ok..", printable([]byte{'o', 'k', 0x00, 0x1b}))
}
