package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/coder/websocket"
)

// Client consumes the extension bridge's websocket endpoint: it decodes the
// event stream into typed events, dispatches them to a Handler, and doubles
// as the Snapshot implementation via request/response frames on the same
// connection.
type Client struct {
	conn   *websocket.Conn
	logger *slog.Logger

	mu      sync.Mutex
	nextID  int64
	pending map[int64]chan responseFrame
	closed  bool
}

// requestFrame is an outgoing snapshot request.
type requestFrame struct {
	ID     int64           `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// responseFrame is an incoming reply to a requestFrame. Result is null when
// the requested object no longer exists.
type responseFrame struct {
	ID     int64           `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// Dial connects to the bridge endpoint. The caller owns the connection and
// must call Close; Run drives the read loop.
func Dial(ctx context.Context, url string, logger *slog.Logger) (*Client, error) {
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("browser: dialing bridge %s: %w", url, err)
	}

	logger.Info("connected to browser bridge", "url", url)

	return &Client{
		conn:    conn,
		logger:  logger,
		pending: make(map[int64]chan responseFrame),
	}, nil
}

// Run reads frames until the context is canceled or the connection drops.
// Event frames are dispatched to h serially, in arrival order; response
// frames are routed to their waiting snapshot call. Dispatch errors are
// logged, never propagated — a malformed frame must not kill the stream.
func (c *Client) Run(ctx context.Context, h Handler) error {
	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			c.failPending(err)

			if ctx.Err() != nil {
				return ctx.Err()
			}

			return fmt.Errorf("browser: reading bridge frame: %w", err)
		}

		// Response frames carry an id; event frames carry an event name.
		var probe struct {
			ID    int64  `json:"id"`
			Event string `json:"event"`
		}

		if err := json.Unmarshal(data, &probe); err != nil {
			c.logger.Warn("discarding unparseable bridge frame", "error", err)
			continue
		}

		if probe.Event != "" {
			if err := dispatchEvent(ctx, data, h); err != nil {
				c.logger.Warn("event dispatch failed", "error", err)
			}

			continue
		}

		c.routeResponse(data)
	}
}

// routeResponse delivers a response frame to the waiting request, if any.
func (c *Client) routeResponse(data []byte) {
	var resp responseFrame

	if err := json.Unmarshal(data, &resp); err != nil {
		c.logger.Warn("discarding unparseable bridge response", "error", err)
		return
	}

	c.mu.Lock()
	ch, ok := c.pending[resp.ID]
	delete(c.pending, resp.ID)
	c.mu.Unlock()

	if !ok {
		c.logger.Warn("response for unknown request", "id", resp.ID)
		return
	}

	ch <- resp
}

// failPending unblocks all in-flight snapshot calls after a read failure.
func (c *Client) failPending(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for id, ch := range c.pending {
		delete(c.pending, id)
		ch <- responseFrame{ID: id, Error: err.Error()}
	}
}

// call sends a request frame and waits for its response.
func (c *Client) call(ctx context.Context, method string, params any, out any) error {
	raw, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("browser: encoding %s params: %w", method, err)
	}

	c.mu.Lock()
	c.nextID++
	id := c.nextID
	ch := make(chan responseFrame, 1)
	c.pending[id] = ch
	c.mu.Unlock()

	req, err := json.Marshal(requestFrame{ID: id, Method: method, Params: raw})
	if err != nil {
		return fmt.Errorf("browser: encoding %s request: %w", method, err)
	}

	if err := c.conn.Write(ctx, websocket.MessageText, req); err != nil {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()

		return fmt.Errorf("browser: sending %s request: %w", method, err)
	}

	select {
	case <-ctx.Done():
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()

		return ctx.Err()

	case resp := <-ch:
		if resp.Error != "" {
			return fmt.Errorf("browser: %s failed: %s", method, resp.Error)
		}

		if len(resp.Result) == 0 || string(resp.Result) == "null" {
			return errSnapshotMiss
		}

		if err := json.Unmarshal(resp.Result, out); err != nil {
			return fmt.Errorf("browser: decoding %s result: %w", method, err)
		}

		return nil
	}
}

// errSnapshotMiss marks a snapshot request whose target no longer exists.
var errSnapshotMiss = errors.New("browser: snapshot target gone")

// Tab fetches the full live tab by id. Returns (nil, nil) when the tab no
// longer exists.
func (c *Client) Tab(ctx context.Context, tabID int64) (*Tab, error) {
	var tab Tab

	err := c.call(ctx, "tab.get", map[string]int64{"tabId": tabID}, &tab)
	if errors.Is(err, errSnapshotMiss) {
		return nil, nil
	}

	if err != nil {
		return nil, err
	}

	return &tab, nil
}

// Group fetches the full live tab-group by id. Returns (nil, nil) when the
// group no longer exists.
func (c *Client) Group(ctx context.Context, groupID int64) (*TabGroup, error) {
	var group TabGroup

	err := c.call(ctx, "group.get", map[string]int64{"groupId": groupID}, &group)
	if errors.Is(err, errSnapshotMiss) {
		return nil, nil
	}

	if err != nil {
		return nil, err
	}

	return &group, nil
}

// Close shuts the websocket connection down cleanly.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}

	c.closed = true
	c.mu.Unlock()

	return c.conn.Close(websocket.StatusNormalClosure, "shutting down")
}

// Compile-time interface check.
var _ Snapshot = (*Client)(nil)
