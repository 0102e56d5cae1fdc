package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const (
	// RequestIDHeader carries a per-request correlation id so client and
	// backend logs can be joined.
	RequestIDHeader = "X-Request-ID"

	defaultTimeout = 15 * time.Second
)

// RESTConfig configures the reference HTTP transport.
type RESTConfig struct {
	// BaseURL is the backend root, e.g. "http://127.0.0.1:8765".
	BaseURL string

	// Timeout bounds each request. Default: 15s.
	Timeout time.Duration

	// RateLimit is the maximum requests per second issued to the backend.
	// Zero means unlimited.
	RateLimit float64

	// HTTPClient overrides the underlying client. Timeout is ignored when
	// set. Used by tests.
	HTTPClient *http.Client
}

// RESTGateway talks HTTP/JSON to the Marvin backend.
//
// All methods translate transport-level failures (connection refused,
// non-JSON bodies, 5xx) into ErrUnavailable so callers can apply a uniform
// retry policy.
type RESTGateway struct {
	base    *url.URL
	client  *http.Client
	limiter *rate.Limiter
}

var _ Gateway = (*RESTGateway)(nil)

// NewREST builds the reference transport.
func NewREST(cfg RESTConfig) (*RESTGateway, error) {
	raw := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if raw == "" {
		return nil, fmt.Errorf("gateway base URL is required")
	}
	base, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse gateway base URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("unsupported gateway scheme: %q", base.Scheme)
	}

	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		client = &http.Client{Timeout: timeout}
	}

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}

	return &RESTGateway{base: base, client: client, limiter: limiter}, nil
}

func (g *RESTGateway) Submit(ctx context.Context, spec JobSpec) (Snapshot, error) {
	var snap Snapshot
	if strings.TrimSpace(spec.Kind) == "" {
		return snap, fmt.Errorf("job kind is required")
	}
	err := g.do(ctx, http.MethodPost, "/api/v1/jobs", spec, &snap)
	return snap, err
}

func (g *RESTGateway) Status(ctx context.Context, id string) (Snapshot, error) {
	var snap Snapshot
	if strings.TrimSpace(id) == "" {
		return snap, fmt.Errorf("job id is required")
	}
	err := g.do(ctx, http.MethodGet, "/api/v1/jobs/"+url.PathEscape(id), nil, &snap)
	return snap, err
}

func (g *RESTGateway) Cancel(ctx context.Context, id string) (bool, error) {
	return g.action(ctx, id, "cancel")
}

func (g *RESTGateway) Retry(ctx context.Context, id string) (bool, error) {
	return g.action(ctx, id, "retry")
}

func (g *RESTGateway) ListAll(ctx context.Context) ([]Snapshot, error) {
	var body struct {
		Jobs []Snapshot `json:"jobs"`
	}
	if err := g.do(ctx, http.MethodGet, "/api/v1/jobs", nil, &body); err != nil {
		return nil, err
	}
	return body.Jobs, nil
}

func (g *RESTGateway) action(ctx context.Context, id, verb string) (bool, error) {
	if strings.TrimSpace(id) == "" {
		return false, fmt.Errorf("job id is required")
	}
	var body struct {
		Success bool `json:"success"`
	}
	path := "/api/v1/jobs/" + url.PathEscape(id) + "/" + verb
	if err := g.do(ctx, http.MethodPost, path, nil, &body); err != nil {
		return false, err
	}
	return body.Success, nil
}

func (g *RESTGateway) do(ctx context.Context, method, path string, in, out any) error {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	var reqBody io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.base.String()+path, reqBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(RequestIDHeader, uuid.New().String())
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %s %s: %v", ErrUnavailable, method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, path)
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: %s %s: %s", ErrUnavailable, method, path, resp.Status)
	case resp.StatusCode >= 400:
		return fmt.Errorf("gateway rejected %s %s: %s", method, path, resp.Status)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s %s: %v", ErrUnavailable, method, path, err)
	}
	return nil
}
