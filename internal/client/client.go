// Package client talks to the admin API's paginated list endpoints.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/telhawk-systems/console/common/httputil"
	"github.com/telhawk-systems/console/common/middleware"
	"github.com/telhawk-systems/console/pkg/listview"
)

// ErrUnexpectedResponse is returned when a list endpoint answers with
// something that is neither a JSON:API collection nor a rows/total object.
var ErrUnexpectedResponse = errors.New("unexpected list response")

// ErrResponseTooLarge is returned when a response body exceeds the client's
// size limit.
var ErrResponseTooLarge = errors.New("response body too large")

// DefaultMaxBodyBytes caps how much of a list response is read.
const DefaultMaxBodyBytes int64 = 32 << 20

// Client fetches list pages from the admin API.
type Client struct {
	baseURL      string
	token        string
	client       *http.Client
	maxBodyBytes int64
}

// Option configures a Client.
type Option func(*Client)

// WithToken sends a bearer token with every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.client = hc
		}
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.client.Timeout = d
		}
	}
}

// WithMaxBodyBytes changes the response size limit.
func WithMaxBodyBytes(n int64) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxBodyBytes = n
		}
	}
}

// New creates a Client pointing at the given base URL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		client:       &http.Client{Timeout: 30 * time.Second},
		maxBodyBytes: DefaultMaxBodyBytes,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Client exposes the underlying http.Client for specialized calls.
func (c *Client) Client() *http.Client { return c.client }

// rowsDocument is the plain shape some endpoints use instead of JSON:API.
type rowsDocument struct {
	Rows  []map[string]any `json:"rows"`
	Total *int             `json:"total"`
}

// List fetches one page of resource.
func (c *Client) List(ctx context.Context, resource string, params url.Values) (listview.Page, error) {
	endpoint := c.baseURL + "/api/v1/" + url.PathEscape(resource)
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return listview.Page{}, fmt.Errorf("list %s: %w", resource, err)
	}
	req.Header.Set("Accept", httputil.ContentTypeJSONAPI)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	middleware.SetOutgoing(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return listview.Page{}, fmt.Errorf("list %s: %w", resource, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodyBytes+1))
	if err != nil {
		return listview.Page{}, fmt.Errorf("list %s: read body: %w", resource, err)
	}
	if int64(len(body)) > c.maxBodyBytes {
		return listview.Page{}, fmt.Errorf("list %s: %w: over %d bytes", resource, ErrResponseTooLarge, c.maxBodyBytes)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if _, derr := httputil.DecodeCollection(bytes.NewReader(body)); derr != nil {
			if _, ok := httputil.AsErrorObject(derr); ok {
				return listview.Page{}, fmt.Errorf("list %s: %w", resource, derr)
			}
		}
		return listview.Page{}, fmt.Errorf("list %s: %w: status %d", resource, ErrUnexpectedResponse, resp.StatusCode)
	}

	page, err := decodePage(body)
	if err != nil {
		return listview.Page{}, fmt.Errorf("list %s: %w", resource, err)
	}
	return page, nil
}

// Source binds the client to one resource as a listview.PageSource.
func (c *Client) Source(resource string) listview.PageSource {
	return listview.PageSourceFunc(func(ctx context.Context, params url.Values) (listview.Page, error) {
		return c.List(ctx, resource, params)
	})
}

func decodePage(body []byte) (listview.Page, error) {
	var shape map[string]json.RawMessage
	if err := json.Unmarshal(body, &shape); err != nil {
		return listview.Page{}, fmt.Errorf("%w: %v", ErrUnexpectedResponse, err)
	}

	if _, ok := shape["data"]; ok {
		doc, err := httputil.DecodeCollection(bytes.NewReader(body))
		if err != nil {
			return listview.Page{}, err
		}
		rows := make([]listview.Record, len(doc.Data))
		for i, res := range doc.Data {
			rows[i] = listview.Fields(res.Flatten())
		}
		total := len(rows)
		if doc.Meta != nil && doc.Meta.Pagination != nil {
			total = doc.Meta.Pagination.Total
		}
		return listview.Page{Rows: rows, Total: total}, nil
	}

	if _, ok := shape["rows"]; ok {
		var doc rowsDocument
		if err := json.Unmarshal(body, &doc); err != nil {
			return listview.Page{}, fmt.Errorf("%w: %v", ErrUnexpectedResponse, err)
		}
		rows := make([]listview.Record, len(doc.Rows))
		for i, row := range doc.Rows {
			rows[i] = listview.Fields(row)
		}
		total := len(rows)
		if doc.Total != nil {
			total = *doc.Total
		}
		return listview.Page{Rows: rows, Total: total}, nil
	}

	return listview.Page{}, ErrUnexpectedResponse
}
