// Package lavalink provides a Lavalink v4 client that plays tracks in
// Discord voice channels.
package lavalink

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gorilla/websocket"
	zlog "github.com/rs/zerolog/log"
)

// ErrNodeNotReady is returned when the node has no websocket session.
var ErrNodeNotReady = errors.New("lavalink node is not ready")

// Config holds configuration for a Lavalink node
type Config struct {
	URL            string // http(s)://host:port
	Password       string
	ClientName     string
	UserID         string // Bot user ID
	ReconnectDelay time.Duration
	HTTPClient     *http.Client
}

// Node is one Lavalink server: a websocket for events and a REST client
// for commands.
type Node struct {
	cfg   Config
	wsURL string
	rest  *restClient

	mu        sync.RWMutex
	conn      *websocket.Conn
	sessionID string
	ready     chan struct{}
	closed    bool

	onMessage    func(message)
	onDisconnect func()
}

// NewNode creates a node. Call Connect to open the websocket.
func NewNode(cfg Config) (*Node, error) {
	u, err := url.Parse(strings.TrimRight(cfg.URL, "/"))
	if err != nil {
		return nil, errors.Wrap(err, "invalid lavalink url")
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return nil, errors.Newf("unsupported lavalink url scheme: %s", u.Scheme)
	}
	if cfg.ClientName == "" {
		cfg.ClientName = "19voice"
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = 5 * time.Second
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}

	return &Node{
		cfg:   cfg,
		wsURL: u.String() + "/v4/websocket",
		rest: &restClient{
			baseURL:  strings.TrimRight(cfg.URL, "/"),
			password: cfg.Password,
			http:     cfg.HTTPClient,
		},
		ready: make(chan struct{}),
	}, nil
}

// SetUserID sets the bot user ID sent on the next websocket handshake.
func (n *Node) SetUserID(id string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.cfg.UserID = id
}

func (n *Node) setHandlers(onMessage func(message), onDisconnect func()) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.onMessage = onMessage
	n.onDisconnect = onDisconnect
}

// SessionID returns the websocket session ID, or "" before ready.
func (n *Node) SessionID() string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.sessionID
}

// Connect opens the websocket and waits for the ready op.
func (n *Node) Connect(ctx context.Context) error {
	if err := n.dial(ctx); err != nil {
		return err
	}

	n.mu.RLock()
	ready := n.ready
	n.mu.RUnlock()

	select {
	case <-ready:
		zlog.Info().Msgf("lavalink ready: url=%s session=%s", n.cfg.URL, n.SessionID())
		return nil
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "waiting for lavalink ready")
	}
}

func (n *Node) dial(ctx context.Context) error {
	n.mu.RLock()
	headers := http.Header{}
	headers.Set("Authorization", n.cfg.Password)
	headers.Set("User-Id", n.cfg.UserID)
	headers.Set("Client-Name", n.cfg.ClientName)
	n.mu.RUnlock()

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, resp, err := dialer.DialContext(ctx, n.wsURL, headers)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return errors.Wrapf(&RestError{Status: resp.StatusCode, Message: "websocket handshake failed", Path: "/v4/websocket"}, "dial %s", n.wsURL)
		}
		return errors.Wrapf(err, "dial %s", n.wsURL)
	}

	n.mu.Lock()
	n.conn = conn
	n.mu.Unlock()

	go n.readMessages(conn)
	return nil
}

// readMessages reads messages from the Lavalink websocket
func (n *Node) readMessages(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			n.handleDisconnect(err)
			return
		}

		var msg message
		if err := json.Unmarshal(data, &msg); err != nil {
			zlog.Warn().Msgf("invalid lavalink message: %v", err)
			continue
		}
		n.handleMessage(msg)
	}
}

func (n *Node) handleMessage(msg message) {
	switch msg.Op {
	case "ready":
		n.mu.Lock()
		n.sessionID = msg.SessionID
		select {
		case <-n.ready:
		default:
			close(n.ready)
		}
		n.mu.Unlock()
	case "stats":
		// Node statistics are not used.
	case "playerUpdate", "event":
		n.mu.RLock()
		handler := n.onMessage
		n.mu.RUnlock()
		if handler != nil {
			handler(msg)
		}
	default:
		zlog.Debug().Msgf("unknown lavalink op: %s", msg.Op)
	}
}

// handleDisconnect handles node disconnection
func (n *Node) handleDisconnect(err error) {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return
	}
	n.conn = nil
	n.sessionID = ""
	n.ready = make(chan struct{})
	onDisconnect := n.onDisconnect
	n.mu.Unlock()

	zlog.Warn().Msgf("lavalink websocket closed, reconnecting: error=%v", err)
	if onDisconnect != nil {
		onDisconnect()
	}
	go n.reconnect()
}

func (n *Node) reconnect() {
	for {
		time.Sleep(n.cfg.ReconnectDelay)

		n.mu.RLock()
		closed := n.closed
		n.mu.RUnlock()
		if closed {
			return
		}

		// A successful dial hands over to readMessages, which handles the
		// ready op and any later disconnect.
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := n.dial(ctx)
		cancel()
		if err == nil {
			return
		}
		zlog.Error().Msgf("lavalink reconnect failed: error=%v", err)
	}
}

// Close closes the websocket without reconnecting.
func (n *Node) Close() error {
	n.mu.Lock()
	n.closed = true
	conn := n.conn
	n.conn = nil
	n.mu.Unlock()

	if conn == nil {
		return nil
	}
	return conn.Close()
}
