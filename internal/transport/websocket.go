package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/desertthunder/jam/internal/shared"
)

const (
	writeTimeout = 10 * time.Second
	pongTimeout  = 60 * time.Second
	pingInterval = 30 * time.Second
)

var errReused = errors.New("transport already used")

// WebSocket is a [Transport] over gorilla/websocket.
type WebSocket struct {
	dialer *websocket.Dialer
	logger *log.Logger

	mu       sync.Mutex
	handlers map[string][]Handler
	conn     *websocket.Conn
	cancel   context.CancelFunc
	started  bool
	closed   bool

	writeMu sync.Mutex // serialises conn writes (frames, pings, close)
}

// NewWebSocket creates an unconnected transport.
func NewWebSocket(logger *log.Logger) *WebSocket {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &WebSocket{
		dialer:   &websocket.Dialer{HandshakeTimeout: 10 * time.Second, Proxy: http.ProxyFromEnvironment},
		logger:   logger,
		handlers: make(map[string][]Handler),
	}
}

// WebSocketFactory returns a [Factory] of [WebSocket] transports.
func WebSocketFactory(logger *log.Logger) Factory {
	return func() Transport { return NewWebSocket(logger) }
}

func (w *WebSocket) On(event string, h Handler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers[event] = append(w.handlers[event], h)
}

func (w *WebSocket) Connect(ctx context.Context, url string, auth Auth) error {
	if url == "" {
		return fmt.Errorf("%w: url is required", shared.ErrInvalidArgument)
	}

	w.mu.Lock()
	if w.started || w.closed {
		w.mu.Unlock()
		return errReused
	}
	ctx, cancel := context.WithCancel(ctx)
	w.started = true
	w.cancel = cancel
	w.mu.Unlock()

	header := http.Header{}
	if auth.Token != "" {
		header.Set("Authorization", "Bearer "+auth.Token)
	}

	go w.run(ctx, url, header)
	return nil
}

func (w *WebSocket) run(ctx context.Context, url string, header http.Header) {
	conn, resp, err := w.dialer.DialContext(ctx, url, header)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		ce := ConnectError{Message: err.Error()}
		if resp != nil {
			ce.Status = resp.StatusCode
			ce.Auth = resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden
		}
		w.logger.Debug("dial failed", "url", url, "status", ce.Status, "error", err)
		w.emit(EventConnectError, ce)
		return
	}

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		conn.Close()
		return
	}
	w.conn = conn
	w.mu.Unlock()

	w.logger.Debug("connected", "url", url)
	w.emit(EventConnect, nil)

	go w.pingLoop(ctx, conn)
	w.readLoop(conn)
}

func (w *WebSocket) readLoop(conn *websocket.Conn) {
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongTimeout))
	})
	conn.SetReadDeadline(time.Now().Add(pongTimeout))

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			w.mu.Lock()
			closed := w.closed
			w.conn = nil
			w.mu.Unlock()
			conn.Close()

			if !closed {
				w.emit(EventDisconnect, disconnectReason(err))
			}
			return
		}

		frame, err := Decode(data)
		if err != nil {
			w.logger.Warn("dropped malformed frame", "error", err)
			continue
		}
		w.dispatch(frame.Event, frame.Data)
	}
}

func (w *WebSocket) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.writeMu.Lock()
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			err := conn.WriteMessage(websocket.PingMessage, nil)
			w.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

func (w *WebSocket) Send(event string, payload any) error {
	w.mu.Lock()
	conn := w.conn
	w.mu.Unlock()
	if conn == nil {
		return shared.ErrNotConnected
	}

	raw, err := Encode(event, payload)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", event, err)
	}

	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, raw); err != nil {
		return fmt.Errorf("failed to send %s: %w", event, err)
	}
	return nil
}

func (w *WebSocket) Disconnect() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	if w.cancel != nil {
		w.cancel()
	}
	conn := w.conn
	w.conn = nil
	w.mu.Unlock()

	if conn == nil {
		return nil
	}

	w.writeMu.Lock()
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	w.writeMu.Unlock()
	return conn.Close()
}

func (w *WebSocket) emit(event string, payload any) {
	var data json.RawMessage
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			w.logger.Error("failed to encode synthesized event", "event", event, "error", err)
			return
		}
		data = raw
	}
	w.dispatch(event, data)
}

func (w *WebSocket) dispatch(event string, data json.RawMessage) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	hs := slices.Clone(w.handlers[event])
	w.mu.Unlock()

	if len(hs) == 0 {
		w.logger.Debug("no handler for event", "event", event)
	}
	for _, h := range hs {
		h(data)
	}
}

func disconnectReason(err error) DisconnectReason {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		reason := ce.Text
		if reason == "" {
			reason = fmt.Sprintf("closed by relay (%d)", ce.Code)
		}
		return DisconnectReason{Reason: reason, Auth: ce.Code == CloseAuthFailed}
	}
	return DisconnectReason{Reason: "transport error: " + err.Error()}
}
