package feed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/wonny/debtview/pkg/config"
	"github.com/wonny/debtview/pkg/httputil"
	"github.com/wonny/debtview/pkg/logger"
)

const (
	bodyExcerpt  = 512
	maxRawBody   = 32 << 20
	maxHandshake = 1 << 20
)

// Client performs one authenticated order book fetch per call.
// Every call opens a fresh cookie session; nothing is cached across calls.
// ⭐ SSOT: 거래소 호가 피드 요청은 여기서만
type Client struct {
	http   *httputil.Client
	cfg    config.FeedConfig
	logger *logger.Logger
}

// NewClient creates a feed client on top of the shared HTTP client.
// Retries are left to the refresh loop, so the HTTP client should have them disabled.
func NewClient(httpClient *httputil.Client, cfg config.FeedConfig, log *logger.Logger) *Client {
	return &Client{
		http:   httpClient,
		cfg:    cfg,
		logger: log.Component("feed"),
	}
}

// Fetch runs handshake, fetch, decode and parse.
func (c *Client) Fetch(ctx context.Context) ([]QuoteLevel, error) {
	return c.FetchObserved(ctx, nil)
}

// FetchObserved is Fetch with a callback at every phase transition.
// ctx is checked before each phase.
func (c *Client) FetchObserved(ctx context.Context, onPhase PhaseFunc) ([]QuoteLevel, error) {
	enter := func(p Phase) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if onPhase != nil {
			onPhase(p)
		}
		return nil
	}

	if err := enter(PhaseAuthenticating); err != nil {
		return nil, err
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, &AuthError{Err: err}
	}
	session := c.http.WithSession(jar)
	if err := c.handshake(ctx, session); err != nil {
		return nil, err
	}

	if err := enter(PhaseFetching); err != nil {
		return nil, err
	}
	encoding, raw, err := c.fetch(ctx, session)
	if err != nil {
		return nil, err
	}

	if err := enter(PhaseParsing); err != nil {
		return nil, err
	}
	body, err := Decode(encoding, raw)
	if err != nil {
		return nil, err
	}
	levels, err := Parse(body)
	if err != nil {
		return nil, err
	}

	c.logger.WithFields(map[string]interface{}{
		"encoding":   encoding,
		"raw_bytes":  len(raw),
		"body_bytes": len(body),
		"levels":     len(levels),
	}).Debug("order book fetched")

	return levels, nil
}

// handshake loads the landing page so the session picks up its cookies.
func (c *Client) handshake(ctx context.Context, session *httputil.Client) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL, nil)
	if err != nil {
		return &AuthError{Err: err}
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := session.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &AuthError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &AuthError{StatusCode: resp.StatusCode, Reason: http.StatusText(resp.StatusCode)}
	}

	if isHTML(resp.Header.Get("Content-Type")) {
		doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxHandshake))
		if err == nil {
			title := strings.TrimSpace(doc.Find("title").First().Text())
			if strings.Contains(strings.ToLower(title), "access denied") {
				return &AuthError{StatusCode: resp.StatusCode, Reason: "blocked: " + title}
			}
		}
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxHandshake))

	if u, err := url.Parse(c.cfg.BaseURL); err == nil {
		c.logger.WithField("cookies", len(session.Cookies(u))).Debug("session established")
	}
	return nil
}

// fetch returns the Content-Encoding and the still-encoded body.
func (c *Client) fetch(ctx context.Context, session *httputil.Client) (string, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.URL, nil)
	if err != nil {
		return "", nil, &FetchError{Err: err}
	}
	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("Accept-Encoding", AcceptEncoding)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	if c.cfg.Referer != "" {
		req.Header.Set("Referer", c.cfg.Referer)
	}

	resp, err := session.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", nil, ctx.Err()
		}
		return "", nil, &FetchError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, bodyExcerpt))
		return "", nil, &FetchError{StatusCode: resp.StatusCode, Body: printable(excerpt)}
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxRawBody))
	if err != nil {
		if ctx.Err() != nil {
			return "", nil, ctx.Err()
		}
		return "", nil, &FetchError{StatusCode: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}
	return resp.Header.Get("Content-Encoding"), raw, nil
}

func isHTML(contentType string) bool {
	return contentType == "" || strings.Contains(strings.ToLower(contentType), "html")
}

// printable keeps error excerpts readable when the body is binary.
func printable(b []byte) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' || (r >= 0x20 && r != 0x7f && r != 0xfffd) {
			return r
		}
		return '.'
	}, string(b))
}
