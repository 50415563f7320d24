package testing

import (
	"context"
	"encoding/json"
	"slices"
	"sync"
	"time"

	"github.com/desertthunder/jam/internal/models"
	"github.com/desertthunder/jam/internal/shared"
	"github.com/desertthunder/jam/internal/transport"
)

// SentFrame is one frame recorded by [MockTransport].
type SentFrame struct {
	Event   string
	Payload transport.Payload
}

// MockTransport is a [transport.Transport] driven by the test: it records what is sent and lets the test deliver
// inbound events with [MockTransport.Emit].
type MockTransport struct {
	mu           sync.Mutex
	handlers     map[string][]transport.Handler
	url          string
	auth         transport.Auth
	dialed       bool
	disconnected bool
	sent         []SentFrame

	// ConnectErr is returned from Connect when set.
	ConnectErr error
}

// NewMockTransport creates an unconnected mock.
func NewMockTransport() *MockTransport {
	return &MockTransport{handlers: make(map[string][]transport.Handler)}
}

func (m *MockTransport) Connect(_ context.Context, url string, auth transport.Auth) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.url = url
	m.auth = auth
	m.dialed = true
	return m.ConnectErr
}

func (m *MockTransport) Send(event string, payload any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.dialed || m.disconnected {
		return shared.ErrNotConnected
	}

	frame := SentFrame{Event: event}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		if err := json.Unmarshal(raw, &frame.Payload); err != nil {
			return err
		}
	}
	m.sent = append(m.sent, frame)
	return nil
}

func (m *MockTransport) On(event string, h transport.Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[event] = append(m.handlers[event], h)
}

func (m *MockTransport) Disconnect() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.disconnected = true
	return nil
}

// Emit delivers an inbound event as the real transport would, JSON-encoding payload. Handlers run on the calling
// goroutine. Unlike a real transport the mock still delivers after Disconnect, so tests can simulate late events.
func (m *MockTransport) Emit(event string, payload any) {
	var data json.RawMessage
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			panic(err)
		}
		data = raw
	}
	m.EmitRaw(event, data)
}

// EmitRaw delivers data verbatim.
func (m *MockTransport) EmitRaw(event string, data []byte) {
	m.mu.Lock()
	hs := slices.Clone(m.handlers[event])
	m.mu.Unlock()
	for _, h := range hs {
		h(data)
	}
}

// Sent returns the recorded frames.
func (m *MockTransport) Sent() []SentFrame {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.sent)
}

// SentEvents returns the names of the recorded frames.
func (m *MockTransport) SentEvents() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, len(m.sent))
	for i, f := range m.sent {
		names[i] = f.Event
	}
	return names
}

// URL returns the dialed url.
func (m *MockTransport) URL() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.url
}

// Auth returns the credential presented on Connect.
func (m *MockTransport) Auth() transport.Auth {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.auth
}

// Disconnected reports whether Disconnect was called.
func (m *MockTransport) Disconnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.disconnected
}

// MockDialer hands out a fresh [MockTransport] per connection attempt and remembers them all.
type MockDialer struct {
	mu         sync.Mutex
	transports []*MockTransport
	created    chan *MockTransport

	// ConnectErr is copied into every transport created.
	ConnectErr error
}

// NewMockDialer creates a dialer. Each created transport is also published on [MockDialer.Created].
func NewMockDialer() *MockDialer {
	return &MockDialer{created: make(chan *MockTransport, 64)}
}

// Factory returns the [transport.Factory] to hand to the code under test.
func (d *MockDialer) Factory() transport.Factory {
	return func() transport.Transport {
		m := NewMockTransport()
		d.mu.Lock()
		m.ConnectErr = d.ConnectErr
		d.transports = append(d.transports, m)
		d.mu.Unlock()

		select {
		case d.created <- m:
		default:
		}
		return m
	}
}

// Created publishes each transport as it is created.
func (d *MockDialer) Created() <-chan *MockTransport {
	return d.created
}

// Count returns how many transports were created.
func (d *MockDialer) Count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.transports)
}

// Last returns the most recent transport, or nil.
func (d *MockDialer) Last() *MockTransport {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.transports) == 0 {
		return nil
	}
	return d.transports[len(d.transports)-1]
}

// StaticCredentials is a fixed bearer token. An empty token means "not signed in".
type StaticCredentials struct {
	mu    sync.Mutex
	token string
}

func NewStaticCredentials(token string) *StaticCredentials {
	return &StaticCredentials{token: token}
}

func (c *StaticCredentials) BearerToken() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token, c.token != ""
}

// Set replaces the token.
func (c *StaticCredentials) Set(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

// StaticIdentity is a fixed participant. A nil participant means no identity.
type StaticIdentity struct {
	Participant *models.Participant
}

func (i StaticIdentity) Identity() (models.Participant, bool) {
	if i.Participant == nil {
		return models.Participant{}, false
	}
	return *i.Participant, true
}

// Clock is a manually advanced clock.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock starts a clock at a fixed instant.
func NewClock() *Clock {
	return &Clock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
