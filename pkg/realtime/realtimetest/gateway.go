// Package realtimetest provides an in-process notification gateway for tests.
package realtimetest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"

	"github.com/storedesk/notifykit/pkg/realtime"
)

// Command is a client frame recorded by the gateway.
type Command struct {
	Name    realtime.CommandName
	Payload json.RawMessage
}

// Handshake records the credentials presented on one upgrade request.
type Handshake struct {
	HeaderToken string
	QueryToken  string
}

// Rejection makes the gateway refuse handshakes.
type Rejection struct {
	Status  int
	Code    string
	Message string
}

// Gateway is a websocket server speaking the notification wire format.
// Routes: GET /ws (stream) and GET /config.json (runtime config).
type Gateway struct {
	Server *httptest.Server

	token string

	mu         sync.Mutex
	peers      map[*websocket.Conn]struct{}
	commands   []Command
	handshakes []Handshake
	reject     *Rejection
	onConnect  func(p *Peer)
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithToken makes the gateway accept only this token (401 otherwise).
func WithToken(token string) Option {
	return func(g *Gateway) { g.token = token }
}

// WithOnConnect runs fn for every accepted connection before commands are read.
func WithOnConnect(fn func(p *Peer)) Option {
	return func(g *Gateway) { g.onConnect = fn }
}

// New starts a gateway; it is shut down through t.Cleanup.
func New(t testing.TB, opts ...Option) *Gateway {
	t.Helper()
	g := &Gateway{peers: make(map[*websocket.Conn]struct{})}
	for _, opt := range opts {
		opt(g)
	}

	r := chi.NewRouter()
	r.Get("/ws", g.handleStream)
	r.Get("/config.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"socketUrl": g.URL()})
	})

	g.Server = httptest.NewServer(r)
	t.Cleanup(g.Close)
	return g
}

// URL is the websocket address of the stream.
func (g *Gateway) URL() string {
	return "ws" + strings.TrimPrefix(g.Server.URL, "http") + "/ws"
}

// Origin is the http address serving /config.json.
func (g *Gateway) Origin() string {
	return g.Server.URL
}

// Reject refuses subsequent handshakes; nil accepts again.
func (g *Gateway) Reject(r *Rejection) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.reject = r
}

// Push sends an event to every connected peer.
func (g *Gateway) Push(ctx context.Context, name realtime.EventName, data any) error {
	frame, err := realtime.EncodeEvent(name, data)
	if err != nil {
		return err
	}
	return g.PushRaw(ctx, frame)
}

// PushRaw sends a pre-encoded frame to every connected peer.
func (g *Gateway) PushRaw(ctx context.Context, frame []byte) error {
	for _, c := range g.snapshot() {
		if err := c.Write(ctx, websocket.MessageText, frame); err != nil {
			return err
		}
	}
	return nil
}

// Drop aborts every connection without a close handshake, as a network
// failure would.
func (g *Gateway) Drop() {
	for _, c := range g.snapshot() {
		_ = c.CloseNow()
	}
}

// Peers is the number of live connections.
func (g *Gateway) Peers() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.peers)
}

// Handshakes returns every upgrade request seen, accepted or not.
func (g *Gateway) Handshakes() []Handshake {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]Handshake(nil), g.handshakes...)
}

// Commands returns the recorded client commands in arrival order.
func (g *Gateway) Commands() []Command {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]Command(nil), g.commands...)
}

// Close drops all peers and stops the server.
func (g *Gateway) Close() {
	g.Drop()
	g.Server.Close()
}

func (g *Gateway) snapshot() []*websocket.Conn {
	g.mu.Lock()
	defer g.mu.Unlock()
	conns := make([]*websocket.Conn, 0, len(g.peers))
	for c := range g.peers {
		conns = append(conns, c)
	}
	return conns
}

func (g *Gateway) handleStream(w http.ResponseWriter, r *http.Request) {
	hs := Handshake{
		HeaderToken: strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "),
		QueryToken:  r.URL.Query().Get("token"),
	}

	g.mu.Lock()
	g.handshakes = append(g.handshakes, hs)
	reject := g.reject
	g.mu.Unlock()

	if reject != nil {
		writeError(w, reject.Status, reject.Code, reject.Message)
		return
	}
	if g.token != "" && hs.HeaderToken != g.token && hs.QueryToken != g.token {
		writeError(w, http.StatusUnauthorized, "unauthorized", "invalid token")
		return
	}

	c, err := websocket.Accept(w, r, nil)
	if err != nil {
		return
	}

	g.mu.Lock()
	g.peers[c] = struct{}{}
	g.mu.Unlock()
	defer func() {
		g.mu.Lock()
		delete(g.peers, c)
		g.mu.Unlock()
		_ = c.CloseNow()
	}()

	if g.onConnect != nil {
		g.onConnect(&Peer{conn: c})
	}

	for {
		_, frame, err := c.Read(context.Background())
		if err != nil {
			return
		}
		name, payload, err := realtime.DecodeCommand(frame)
		if err != nil {
			continue
		}
		g.mu.Lock()
		g.commands = append(g.commands, Command{Name: name, Payload: payload})
		g.mu.Unlock()
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"code": code, "message": message})
}

// Peer is one accepted connection, handed to WithOnConnect callbacks.
type Peer struct {
	conn *websocket.Conn
}

// Send writes an event to this peer only.
func (p *Peer) Send(name realtime.EventName, data any) error {
	frame, err := realtime.EncodeEvent(name, data)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return p.conn.Write(ctx, websocket.MessageText, frame)
}
