// Package lampapi is a thin client for the lamp CRUD API exposed by every
// service under test.
package lampapi

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Lamp is the resource managed by the API.
type Lamp struct {
	ID        string `json:"id"`
	Status    bool   `json:"status"`
	CreatedAt string `json:"createdAt,omitempty"`
	UpdatedAt string `json:"updatedAt,omitempty"`
}

// Page is one page of the list endpoint.
type Page struct {
	Data       []Lamp `json:"data"`
	HasMore    bool   `json:"hasMore"`
	NextCursor string `json:"nextCursor,omitempty"`
}

// Response is a raw API response with its measured round trip.
type Response struct {
	Status int
	Body   []byte
}

// Client issues lamp API requests against one base URL.
type Client struct {
	prefix     string
	authHeader string
	http       *http.Client
}

// NewTransport returns a transport sized for load generation.
func NewTransport() *http.Transport {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.MaxIdleConns = 2000
	t.MaxConnsPerHost = 2000
	t.MaxIdleConnsPerHost = 2000
	t.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	return t
}

// NewClient builds a client for baseURL+basePath. authHeader, when set, is
// sent verbatim as the Authorization header. A nil httpClient gets a default
// one with a 30s timeout.
func NewClient(baseURL, basePath, authHeader string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second, Transport: NewTransport()}
	}
	return &Client{
		prefix:     strings.TrimRight(baseURL, "/") + basePath,
		authHeader: authHeader,
		http:       httpClient,
	}
}

// URL returns the absolute URL of pathAndQuery under the API prefix.
func (c *Client) URL(pathAndQuery string) string {
	return c.prefix + pathAndQuery
}

// Do sends one request. body, when non-nil, is JSON encoded. Transport
// failures are returned as errors; any HTTP status is a valid response.
func (c *Client) Do(ctx context.Context, method, pathAndQuery string, body any) (*Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, errors.Wrap(err, "encoding request body")
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.URL(pathAndQuery), reader)
	if err != nil {
		return nil, errors.Wrapf(err, "building %s %s", method, pathAndQuery)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-Id", uuid.NewString())
	if c.authHeader != "" {
		req.Header.Set("Authorization", c.authHeader)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "%s %s", method, pathAndQuery)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s %s", method, pathAndQuery)
	}
	return &Response{Status: resp.StatusCode, Body: data}, nil
}

// ListPath builds the list query, with an optional cursor.
func ListPath(pageSize int, cursor string) string {
	p := fmt.Sprintf("/lamps?pageSize=%d", pageSize)
	if cursor != "" {
		p += "&cursor=" + url.QueryEscape(cursor)
	}
	return p
}

type statusBody struct {
	Status bool `json:"status"`
}

func (c *Client) List(ctx context.Context, pageSize int, cursor string) (*Response, error) {
	return c.Do(ctx, http.MethodGet, ListPath(pageSize, cursor), nil)
}

func (c *Client) Get(ctx context.Context, id string) (*Response, error) {
	return c.Do(ctx, http.MethodGet, "/lamps/"+url.PathEscape(id), nil)
}

func (c *Client) Create(ctx context.Context, status bool) (*Response, error) {
	return c.Do(ctx, http.MethodPost, "/lamps", statusBody{Status: status})
}

func (c *Client) Update(ctx context.Context, id string, status bool) (*Response, error) {
	return c.Do(ctx, http.MethodPut, "/lamps/"+url.PathEscape(id), statusBody{Status: status})
}

func (c *Client) Delete(ctx context.Context, id string) (*Response, error) {
	return c.Do(ctx, http.MethodDelete, "/lamps/"+url.PathEscape(id), nil)
}

// DecodeLamp parses a lamp body and reports whether it carries a non-empty
// string id and a boolean status.
func DecodeLamp(body []byte) (Lamp, bool) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return Lamp{}, false
	}
	var l Lamp
	if err := json.Unmarshal(raw["id"], &l.ID); err != nil || l.ID == "" {
		return Lamp{}, false
	}
	if err := json.Unmarshal(raw["status"], &l.Status); err != nil {
		return Lamp{}, false
	}
	_ = json.Unmarshal(raw["createdAt"], &l.CreatedAt)
	_ = json.Unmarshal(raw["updatedAt"], &l.UpdatedAt)
	return l, true
}

// DecodePage parses a list body. hasData reports a data array, hasMore a
// boolean hasMore field.
func DecodePage(body []byte) (p Page, hasData, hasMore bool) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return Page{}, false, false
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw["data"], &items); err == nil && items != nil {
		hasData = true
		for _, item := range items {
			if l, ok := DecodeLamp(item); ok {
				p.Data = append(p.Data, l)
			}
		}
	}
	hasMore = json.Unmarshal(raw["hasMore"], &p.HasMore) == nil
	_ = json.Unmarshal(raw["nextCursor"], &p.NextCursor)
	return p, hasData, hasMore
}
