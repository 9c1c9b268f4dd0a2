package service

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

type wsDialer struct {
	handshakeTimeout time.Duration
}

// NewDialer returns the production gorilla-backed dialer.
func NewDialer(handshakeTimeout time.Duration) Dialer {
	return &wsDialer{handshakeTimeout: handshakeTimeout}
}

func (d *wsDialer) Dial(ctx context.Context, url, origin, token string) (Conn, error) {
	dialer := &websocket.Dialer{
		HandshakeTimeout: d.handshakeTimeout,
		Subprotocols:     []string{token},
	}
	header := http.Header{}
	header.Set("Origin", origin)

	conn, resp, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: http %d: %w", url, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return conn, nil
}
