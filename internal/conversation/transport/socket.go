package transport

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const handshakeTimeout = 10 * time.Second

// Socket is the minimal surface the session needs from a realtime connection.
// *websocket.Conn satisfies it directly.
type Socket interface {
	ReadJSON(v interface{}) error
	WriteJSON(v interface{}) error
	Close() error
}

// Dialer opens a socket to the chat gateway.
type Dialer interface {
	DialContext(ctx context.Context, url string, authToken string) (Socket, error)
}

// WebsocketDialer dials the gateway over a gorilla websocket, carrying the
// viewer's JWT in the auth query parameter the gateway middleware expects.
type WebsocketDialer struct{}

// DialContext open the websocket
func (WebsocketDialer) DialContext(ctx context.Context, url string, authToken string) (Socket, error) {
	d := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	if authToken != "" {
		url = url + "?auth=" + authToken
	}
	conn, resp, err := d.DialContext(ctx, url, http.Header{})
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}
	return conn, nil
}
