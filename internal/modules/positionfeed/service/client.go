package service

import (
	"context"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"

	"trade_router/internal/models"
	"trade_router/pkg/logger"
)

// State is the feed's connection lifecycle, exported on /health.
type State string

const (
	StateDisconnected   State = "disconnected"
	StateAuthenticating State = "authenticating"
	StateConnected      State = "connected"
	StateStreaming      State = "streaming"
	StateReconnecting   State = "reconnecting"
)

// Conn is the slice of a websocket connection the feed needs. Production
// uses gorilla, tests plug a scripted fake.
type Conn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Dialer opens an authenticated websocket. The bearer token travels as the
// negotiated subprotocol, the origin mirrors the SSO host.
type Dialer interface {
	Dial(ctx context.Context, url, origin, token string) (Conn, error)
}

// Authenticator exchanges account credentials for a fresh bearer token.
type Authenticator interface {
	Login(ctx context.Context) (string, error)
}

// Settings are the shared feed timings.
type Settings struct {
	Heartbeat         time.Duration
	ReconnectDelay    time.Duration
	MaxReconnectDelay time.Duration
	QueueSize         int
}

// Feed owns one account's persistent market stream: login, connect,
// subscribe, read until the socket dies, then reconnect with backoff.
// Every account runs its own Feed so one outage never stalls the rest.
type Feed struct {
	acc      *models.AccountConfig
	auth     Authenticator
	dialer   Dialer
	store    *Store
	queue    *BidQueue
	settings Settings

	mu      sync.Mutex
	state   State
	running bool
	cancel  context.CancelFunc
	conn    Conn
}

func NewFeed(acc *models.AccountConfig, auth Authenticator, dialer Dialer, settings Settings) *Feed {
	return &Feed{
		acc:      acc,
		auth:     auth,
		dialer:   dialer,
		store:    NewStore(acc.Name),
		queue:    NewBidQueue(acc.Name, settings.QueueSize),
		settings: settings,
		state:    StateDisconnected,
	}
}

func (f *Feed) Store() *Store    { return f.store }
func (f *Feed) Queue() *BidQueue { return f.queue }

func (f *Feed) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *Feed) setState(s State) {
	f.mu.Lock()
	if f.state != s {
		logger.Info("feed %s: %s -> %s", f.acc.Name, f.state, s)
		f.state = s
	}
	f.mu.Unlock()
}

// Start launches the supervisor goroutine. Idempotent while running.
func (f *Feed) Start(parent context.Context) {
	f.mu.Lock()
	if f.running {
		f.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(parent)
	f.running = true
	f.cancel = cancel
	f.mu.Unlock()

	go f.run(ctx)
}

// Stop cancels the supervisor and closes the live socket so the blocked
// read returns immediately.
func (f *Feed) Stop() {
	f.mu.Lock()
	f.running = false
	if f.cancel != nil {
		f.cancel()
		f.cancel = nil
	}
	if f.conn != nil {
		_ = f.conn.Close()
		f.conn = nil
	}
	f.mu.Unlock()
}

func (f *Feed) setConn(c Conn) {
	f.mu.Lock()
	f.conn = c
	f.mu.Unlock()
}

// run reconnects forever until stopped. The delay grows on each failed
// cycle and resets once a connection actually streams data.
func (f *Feed) run(ctx context.Context) {
	delay := f.settings.ReconnectDelay

	for {
		if ctx.Err() != nil {
			f.setState(StateDisconnected)
			return
		}

		streamed, err := f.cycle(ctx)
		if streamed {
			delay = f.settings.ReconnectDelay
		}

		if ctx.Err() != nil {
			f.setState(StateDisconnected)
			return
		}
		if err != nil {
			logger.Error("feed %s: %v", f.acc.Name, err)
		}

		f.setState(StateReconnecting)
		if !sleepCtx(ctx, delay) {
			f.setState(StateDisconnected)
			return
		}
		if !streamed {
			delay *= 2
			if delay > f.settings.MaxReconnectDelay {
				delay = f.settings.MaxReconnectDelay
			}
		}
	}
}

// cycle is one full connect attempt: token, dial, subscribe, read loop.
// Returns whether the connection got as far as streaming valid frames.
func (f *Feed) cycle(ctx context.Context) (bool, error) {
	f.setState(StateAuthenticating)
	token, err := f.auth.Login(ctx)
	if err != nil {
		return false, err
	}

	conn, err := f.dialer.Dial(ctx, f.acc.Credentials.WSURL, f.acc.Credentials.APIBaseURL, token)
	if err != nil {
		return false, err
	}
	f.setConn(conn)
	defer func() {
		f.setConn(nil)
		_ = conn.Close()
	}()

	f.setState(StateConnected)
	if err := f.subscribe(conn); err != nil {
		return false, err
	}

	return f.readLoop(ctx, conn), nil
}

var subscriptions = []string{"balance.subscribe", "ticker.subscribe", "marketdata.subscribe"}

func (f *Feed) subscribe(conn Conn) error {
	for _, sub := range subscriptions {
		payload, err := sonic.Marshal(map[string]string{"type": sub})
		if err != nil {
			return err
		}
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return err
		}
	}
	return nil
}

// readLoop pumps frames into the store until the socket errors out. A
// side goroutine pings on the heartbeat interval to keep the venue from
// idling us out.
func (f *Feed) readLoop(ctx context.Context, conn Conn) bool {
	stop := make(chan struct{})
	defer close(stop)

	go func() {
		t := time.NewTicker(f.settings.Heartbeat)
		defer t.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ctx.Done():
				return
			case <-t.C:
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					logger.Warn("feed %s: heartbeat: %v", f.acc.Name, err)
					return
				}
			}
		}
	}()

	streamed := false
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				logger.Warn("feed %s: read: %v", f.acc.Name, err)
			}
			return streamed
		}
		if f.handleFrame(data) && !streamed {
			streamed = true
			f.setState(StateStreaming)
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
