package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tonhe/nocwatch/internal/engine"
)

// Client reads the query API. The TUI is its main user.
type Client struct {
	base   *url.URL
	apiKey string
	http   *http.Client
}

// NewClient returns a client for the API rooted at baseURL, for example
// "http://127.0.0.1:8080".
func NewClient(baseURL, apiKey string, timeout time.Duration) (*Client, error) {
	if !strings.Contains(baseURL, "://") {
		baseURL = "http://" + baseURL
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse api url: %w", err)
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{base: u, apiKey: apiKey, http: &http.Client{Timeout: timeout}}, nil
}

// StatusError is a non-2xx API response.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api returned %d", e.Status)
	}
	return fmt.Sprintf("api returned %d: %s", e.Status, e.Message)
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.base
	u.Path = strings.TrimSuffix(u.Path, "/") + "/api/v1" + path
	u.RawQuery = query.Encode()
	return u.String()
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(path, query), nil)
	if err != nil {
		return err
	}
	if c.apiKey != "" {
		req.Header.Set(APIKeyHeader, c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var body struct {
			Error string `json:"error"`
		}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		_ = json.Unmarshal(raw, &body)
		return &StatusError{Status: resp.StatusCode, Message: body.Error}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// Health returns nil when the API answers its health check.
func (c *Client) Health(ctx context.Context) error {
	var out struct {
		Status string `json:"status"`
	}
	if err := c.get(ctx, "/health", nil, &out); err != nil {
		return err
	}
	if out.Status != "ok" {
		return fmt.Errorf("api health: %q", out.Status)
	}
	return nil
}

func (c *Client) Devices(ctx context.Context) ([]DeviceView, error) {
	var out struct {
		Devices []DeviceView `json:"devices"`
	}
	if err := c.get(ctx, "/devices", nil, &out); err != nil {
		return nil, err
	}
	return out.Devices, nil
}

func (c *Client) DeviceInterfaces(ctx context.Context, device string) ([]engine.Snapshot, error) {
	var out struct {
		Interfaces []engine.Snapshot `json:"interfaces"`
	}
	if err := c.get(ctx, "/devices/"+url.PathEscape(device)+"/ifaces", nil, &out); err != nil {
		return nil, err
	}
	return out.Interfaces, nil
}

// Board fetches the collector's status board.
func (c *Client) Board(ctx context.Context) (engine.BoardSnapshot, error) {
	var out engine.BoardSnapshot
	err := c.get(ctx, "/interfaces", nil, &out)
	return out, err
}

// Events fetches up to limit transitions, newest first.
func (c *Client) Events(ctx context.Context, limit int) ([]engine.Transition, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var out struct {
		Events []engine.Transition `json:"events"`
	}
	if err := c.get(ctx, "/events", q, &out); err != nil {
		return nil, err
	}
	return out.Events, nil
}

// Stream delivers live transitions to fn until ctx is cancelled or the
// connection drops.
func (c *Client) Stream(ctx context.Context, fn func(engine.Transition)) error {
	u := *c.base
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/api/v1/events/stream"

	headers := http.Header{}
	if c.apiKey != "" {
		headers.Set(APIKeyHeader, c.apiKey)
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), headers)
	if err != nil {
		if resp != nil {
			return &StatusError{Status: resp.StatusCode, Message: err.Error()}
		}
		return fmt.Errorf("dial event stream: %w", err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	for {
		var t engine.Transition
		if err := conn.ReadJSON(&t); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				return nil
			}
			return fmt.Errorf("read event stream: %w", err)
		}
		fn(t)
	}
}
