package stream

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const (
	StreamPath = "/api/scan/stream"

	maxBackoff = 20 * time.Second
)

// Watcher follows a scanner's event stream, reconnecting with backoff.
type Watcher struct {
	baseURL     string
	logger      *slog.Logger
	readTimeout time.Duration
}

func NewWatcher(baseURL string, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{baseURL: strings.TrimSuffix(baseURL, "/"), logger: logger, readTimeout: 2 * pongWait}
}

// Run delivers every envelope to onMessage until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context, onMessage func(RawEnvelope)) {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return
		}
		err := w.runSession(ctx, onMessage)
		if err != nil && ctx.Err() == nil {
			w.logger.Warn("scan stream disconnected", "err", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		if backoff < maxBackoff {
			backoff *= 2
		}
	}
}

// RawEnvelope keeps the data payload undecoded so callers pick the type.
type RawEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func (w *Watcher) runSession(ctx context.Context, onMessage func(RawEnvelope)) error {
	wsURL, err := toWebsocketURL(w.baseURL + StreamPath)
	if err != nil {
		return err
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	for {
		if err := conn.SetReadDeadline(time.Now().Add(w.readTimeout)); err != nil {
			return err
		}
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var env RawEnvelope
		if err := json.Unmarshal(msg, &env); err != nil {
			w.logger.Debug("ignoring malformed stream message", "err", err)
			continue
		}
		onMessage(env)
	}
}

func toWebsocketURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	return u.String(), nil
}
