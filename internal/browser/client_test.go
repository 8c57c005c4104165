package browser

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger(t *testing.T) *slog.Logger {
	t.Helper()
	return slog.New(slog.NewTextHandler(&testWriter{t: t}, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// testWriter adapts testing.T to io.Writer for slog output.
type testWriter struct {
	t *testing.T
}

func (w *testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}

// chanHandler forwards every tab-created event over a channel so the test
// can wait for dispatches happening on the Run goroutine.
type chanHandler struct {
	recordingHandler

	created chan Tab
}

func (h *chanHandler) OnTabCreated(_ context.Context, tab Tab) {
	h.created <- tab
}

// fakeBridge is a websocket server speaking the bridge protocol: it pushes
// the given event frames on connect and answers tab.get requests from the
// tabs map (null result for unknown ids).
func fakeBridge(t *testing.T, events []string, tabs map[int64]Tab) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			t.Logf("bridge accept failed: %v", err)
			return
		}
		defer conn.CloseNow()

		ctx := r.Context()

		for _, ev := range events {
			if err := conn.Write(ctx, websocket.MessageText, []byte(ev)); err != nil {
				return
			}
		}

		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				return
			}

			var req requestFrame
			if err := json.Unmarshal(data, &req); err != nil {
				continue
			}

			resp := responseFrame{ID: req.ID}

			if req.Method == "tab.get" {
				var params struct {
					TabID int64 `json:"tabId"`
				}
				_ = json.Unmarshal(req.Params, &params)

				if tab, ok := tabs[params.TabID]; ok {
					raw, _ := json.Marshal(tab)
					resp.Result = raw
				}
			} else {
				resp.Error = "unknown method"
			}

			raw, _ := json.Marshal(resp)
			if err := conn.Write(ctx, websocket.MessageText, raw); err != nil {
				return
			}
		}
	}))

	t.Cleanup(srv.Close)

	return srv
}

func TestClient(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	events := []string{
		`{"event":"tab.created","tab":{"id":5,"windowId":100,"url":"https://a.test","title":"A"}}`,
		`{"event":"bogus.event"}`, // must be logged and skipped, not kill the stream
		`{"event":"tab.created","tab":{"id":6,"windowId":100,"url":"https://b.test"}}`,
	}
	tabs := map[int64]Tab{
		5: {ID: 5, WindowID: 100, URL: "https://a.test", Title: "A"},
	}

	srv := fakeBridge(t, events, tabs)

	client, err := Dial(ctx, srv.URL, testLogger(t))
	require.NoError(t, err)
	defer client.Close()

	h := &chanHandler{created: make(chan Tab, 4)}

	runDone := make(chan error, 1)
	go func() { runDone <- client.Run(ctx, h) }()

	t.Run("events dispatch in order across malformed frames", func(t *testing.T) {
		first := <-h.created
		assert.Equal(t, int64(5), first.ID)

		second := <-h.created
		assert.Equal(t, int64(6), second.ID)
	})

	t.Run("snapshot fetch round-trips", func(t *testing.T) {
		tab, err := client.Tab(ctx, 5)
		require.NoError(t, err)
		require.NotNil(t, tab)
		assert.Equal(t, "https://a.test", tab.URL)
	})

	t.Run("missing target returns nil, nil", func(t *testing.T) {
		tab, err := client.Tab(ctx, 999)
		require.NoError(t, err)
		assert.Nil(t, tab)
	})

	t.Run("unknown method surfaces the bridge error", func(t *testing.T) {
		_, err := client.Group(ctx, 7)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown method")
	})

	t.Run("close ends the run loop", func(t *testing.T) {
		require.NoError(t, client.Close())

		select {
		case err := <-runDone:
			assert.Error(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("run loop did not exit after close")
		}
	})
}

func TestDialFailure(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := Dial(ctx, "ws://127.0.0.1:1/events", testLogger(t))
	assert.Error(t, err)
}
