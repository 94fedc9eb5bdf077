// Package addok implements the geocoder contract against an addok-compatible
// HTTP API (/search and /reverse returning GeoJSON feature collections).
package addok

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/mohammed-shakir/csv-geocoder/internal/core/observability"
	"github.com/mohammed-shakir/csv-geocoder/internal/geocoder"
)

type Client struct {
	logger         *slog.Logger
	client         *http.Client
	baseURL        *url.URL
	queryMaxLength int
	now            func() time.Time
}

// New returns a client for the engine at base. queryMaxLength <= 0 disables
// the local length check; an upstream 413 is still reported as too large.
func New(logger *slog.Logger, client *http.Client, base string, queryMaxLength int) (*Client, error) {
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parse geocoder url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("geocoder url %q must be absolute", base)
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &Client{
		logger:         logger,
		client:         client,
		baseURL:        u,
		queryMaxLength: queryMaxLength,
		now:            time.Now,
	}, nil
}

func (c *Client) Search(ctx context.Context, q geocoder.SearchQuery) ([]geocoder.Result, error) {
	if n := utf8.RuneCountInString(q.Text); c.queryMaxLength > 0 && n > c.queryMaxLength {
		return nil, &geocoder.QueryTooLargeError{Length: n, Limit: c.queryMaxLength}
	}
	params := url.Values{}
	for k, v := range q.Filters {
		params.Set(k, v)
	}
	params.Set("q", q.Text)
	params.Set("limit", strconv.Itoa(max(q.Limit, 1)))
	if q.Autocomplete {
		params.Set("autocomplete", "1")
	} else {
		params.Set("autocomplete", "0")
	}
	if q.Center != nil {
		params.Set("lat", geocoder.FormatFloat(q.Center.Lat))
		params.Set("lon", geocoder.FormatFloat(q.Center.Lon))
	}

	results, status, err := c.fetch(ctx, "search", params)
	if status == http.StatusRequestEntityTooLarge {
		return nil, &geocoder.QueryTooLargeError{
			Length: utf8.RuneCountInString(q.Text),
			Limit:  c.queryMaxLength,
		}
	}
	return results, err
}

func (c *Client) Reverse(ctx context.Context, q geocoder.ReverseQuery) ([]geocoder.Result, error) {
	params := url.Values{}
	for k, v := range q.Filters {
		params.Set(k, v)
	}
	params.Set("lat", geocoder.FormatFloat(q.Lat))
	params.Set("lon", geocoder.FormatFloat(q.Lon))
	params.Set("limit", strconv.Itoa(max(q.Limit, 1)))

	results, _, err := c.fetch(ctx, "reverse", params)
	return results, err
}

// Readiness issues a minimal search to check the engine answers.
func (c *Client) Readiness(ctx context.Context) error {
	params := url.Values{}
	params.Set("q", "ready")
	params.Set("limit", "1")
	_, _, err := c.fetch(ctx, "search", params)
	return err
}

func (c *Client) endpoint(name string) *url.URL {
	u := *c.baseURL
	u.Path = strings.TrimSuffix(u.Path, "/") + "/" + name + "/"
	u.RawPath = ""
	return &u
}

func (c *Client) fetch(ctx context.Context, name string, params url.Values) ([]geocoder.Result, int, error) {
	u := c.endpoint(name)
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := c.now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	dur := c.now().Sub(start)
	observability.ObserveUpstreamLatency(name, dur.Seconds())
	c.logger.Debug("geocoder call", "endpoint", name, "status", resp.StatusCode, "duration", dur.String())

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
		return nil, resp.StatusCode, fmt.Errorf("upstream status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var fc featureCollection
	if err := json.NewDecoder(resp.Body).Decode(&fc); err != nil {
		return nil, resp.StatusCode, fmt.Errorf("decode %s response: %w", name, err)
	}
	out := make([]geocoder.Result, 0, len(fc.Features))
	for _, f := range fc.Features {
		out = append(out, f.result())
	}
	return out, resp.StatusCode, nil
}
