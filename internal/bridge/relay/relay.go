// Package relay owns the listening transport and the per-connection
// dispatch loop. Each accepted connection gets its own frame assembler and
// session; the handshake is answered locally and everything else is
// forwarded upstream, with replies written back through the same framing.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"trinobridge/internal/bridge/config"
	"trinobridge/internal/bridge/forward"
	"trinobridge/internal/bridge/handshake"
	"trinobridge/internal/shared/jsonrpc"
	"trinobridge/internal/shared/logging"
)

// Announcement is the single line emitted on stdout at startup so a
// launching host can learn how to connect.
type Announcement struct {
	Protocol string   `json:"protocol"`
	Address  *Address `json:"address,omitempty"`
}

// Address locates a socket-based transport
type Address struct {
	Host string `json:"host,omitempty"`
	Port int    `json:"port"`
}

// Listener binds the configured transport and routes decoded messages
// through the handshake responder and the upstream forwarder. It is
// constructed once at process start and shut down explicitly; no state
// is shared across connections beyond the read-only responder and
// forwarder.
type Listener struct {
	cfg       *config.Config
	forwarder *forward.Forwarder
	responder *handshake.Responder
	logger    *logging.Logger

	// announce and the stdio pair are injectable for tests
	announce io.Writer
	stdin    io.Reader
	stdout   io.Writer

	ln       net.Listener
	httpSrv  *http.Server
	upgrader websocket.Upgrader

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	done   chan struct{}
}

// New creates a listener for the configured transport
func New(cfg *config.Config, forwarder *forward.Forwarder, responder *handshake.Responder) *Listener {
	ctx, cancel := context.WithCancel(context.Background())
	return &Listener{
		cfg:       cfg,
		forwarder: forwarder,
		responder: responder,
		logger:    logging.NewLogger("relay"),
		announce:  os.Stdout,
		stdin:     os.Stdin,
		stdout:    os.Stdout,
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
}

// Start binds the transport, emits the announcement line and begins
// serving. Bind failure is fatal and returned to the caller.
func (l *Listener) Start() error {
	switch l.cfg.Transport {
	case config.TransportStdio:
		return l.startStdio()
	case config.TransportTCP:
		return l.startTCP()
	case config.TransportWS:
		return l.startWS()
	default:
		return fmt.Errorf("unknown transport %q", l.cfg.Transport)
	}
}

// Done is closed when the stdio session reaches EOF, so the process can
// exit when the launching host closes the pipe. Socket transports serve
// until Shutdown.
func (l *Listener) Done() <-chan struct{} {
	return l.done
}

// Addr returns the bound socket address, or nil for the stdio transport
func (l *Listener) Addr() net.Addr {
	if l.ln == nil {
		return nil
	}
	return l.ln.Addr()
}

// Shutdown stops accepting, closes the listener and cancels in-flight
// upstream calls for every connection.
func (l *Listener) Shutdown() error {
	l.logger.Info("Stopping relay")
	l.cancel()

	if l.httpSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		l.httpSrv.Shutdown(ctx)
	}
	if l.ln != nil {
		l.ln.Close()
	}

	finished := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(10 * time.Second):
		l.logger.Warn("Timeout waiting for connections to close")
	}
	return nil
}

func (l *Listener) startStdio() error {
	if err := l.announceTransport(Announcement{Protocol: "jsonrpc"}); err != nil {
		return err
	}

	session := newStreamSession(l.stdin, l.stdout, nil, "stdio")
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		defer close(l.done)
		l.handleSession(session)
	}()

	l.logger.Info("Relay started", "transport", "stdio")
	return nil
}

func (l *Listener) startTCP() error {
	ln, err := net.Listen("tcp", l.cfg.ListenAddress())
	if err != nil {
		return fmt.Errorf("failed to bind %s: %w", l.cfg.ListenAddress(), err)
	}
	l.ln = ln

	if err := l.announceSocket("tcp", ln.Addr()); err != nil {
		ln.Close()
		return err
	}

	l.wg.Add(1)
	go l.acceptLoop()

	l.logger.Info("Relay started", "transport", "tcp", "addr", ln.Addr().String())
	return nil
}

func (l *Listener) startWS() error {
	ln, err := net.Listen("tcp", l.cfg.ListenAddress())
	if err != nil {
		return fmt.Errorf("failed to bind %s: %w", l.cfg.ListenAddress(), err)
	}
	l.ln = ln

	if err := l.announceSocket("ws", ln.Addr()); err != nil {
		ln.Close()
		return err
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", l.handleUpgrade)
	l.httpSrv = &http.Server{Handler: mux}

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		if err := l.httpSrv.Serve(ln); err != nil && err != http.ErrServerClosed {
			l.logger.Error("WebSocket server error", err)
		}
	}()

	l.logger.Info("Relay started", "transport", "ws", "addr", ln.Addr().String())
	return nil
}

// announceTransport writes the one startup line on the primary output
// channel; diagnostics go elsewhere so this line stays machine-parseable.
func (l *Listener) announceTransport(a Announcement) error {
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("failed to encode announcement: %w", err)
	}
	if _, err := l.announce.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write announcement: %w", err)
	}
	return nil
}

func (l *Listener) announceSocket(protocol string, addr net.Addr) error {
	tcpAddr, ok := addr.(*net.TCPAddr)
	if !ok {
		return fmt.Errorf("unexpected listener address type %T", addr)
	}
	return l.announceTransport(Announcement{
		Protocol: protocol,
		Address:  &Address{Host: l.cfg.ListenHost, Port: tcpAddr.Port},
	})
}

func (l *Listener) acceptLoop() {
	defer l.wg.Done()

	for {
		conn, err := l.ln.Accept()
		if err != nil {
			select {
			case <-l.ctx.Done():
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			l.logger.Error("Failed to accept connection", err)
			continue
		}

		l.wg.Add(1)
		go func() {
			defer l.wg.Done()
			session := newStreamSession(conn, conn, conn, conn.RemoteAddr().String())
			l.handleSession(session)
		}()
	}
}

func (l *Listener) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := l.upgrader.Upgrade(w, r, nil)
	if err != nil {
		l.logger.Error("WebSocket upgrade failed", err, "remote", r.RemoteAddr)
		return
	}

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		l.handleSession(newWSSession(conn))
	}()
}

// handleSession runs one connection: frame, dispatch, reply, until EOF or
// a read error. Teardown cancels in-flight upstream calls for this
// connection only; other connections are unaffected.
func (l *Listener) handleSession(session Session) {
	l.logger.Info("Client connected", "remote", session.Remote())

	ctx, cancel := context.WithCancel(l.ctx)
	var pending sync.WaitGroup

	clean := true
	for {
		payload, err := session.Read()
		if err != nil {
			if err != io.EOF && !errors.Is(err, net.ErrClosed) &&
				!websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				l.logger.Error("Connection read failed", err, "remote", session.Remote())
				clean = false
			}
			break
		}
		l.dispatch(ctx, session, &pending, payload)
	}

	// A clean EOF still drains in-flight replies; a broken connection
	// aborts them, nobody is left to read the answers
	if clean {
		pending.Wait()
		cancel()
	} else {
		cancel()
		pending.Wait()
	}
	session.Close()

	l.logger.Info("Client disconnected", "remote", session.Remote())
}

// dispatch routes one decoded message: handshake answered locally,
// requests and notifications forwarded concurrently, anything else
// rejected as an invalid request.
func (l *Listener) dispatch(ctx context.Context, session Session, pending *sync.WaitGroup, payload []byte) {
	msg, err := jsonrpc.Parse(payload)
	if err != nil {
		l.logger.Warn("Malformed message", "error", err.Error(), "raw", string(payload))
		l.reply(session, jsonrpc.NewErrorResponse(nil, jsonrpc.CodeParseError, "Parse error: invalid JSON"))
		return
	}

	switch msg.Type() {
	case jsonrpc.TypeRequest, jsonrpc.TypeNotification:
		if l.responder.Handles(msg.Method) {
			l.handleInitialize(session, msg)
			return
		}
		pending.Add(1)
		go func() {
			defer pending.Done()
			l.forward(ctx, session, msg)
		}()

	default:
		l.logger.Warn("Message is not a request", "type", msg.Type().String(), "remote", session.Remote())
		l.reply(session, jsonrpc.NewErrorResponse(msg.ID, jsonrpc.CodeInvalidRequest, "Invalid request: method is required"))
	}
}

// handleInitialize answers the handshake locally and follows the reply
// with the initialized notification; the upstream is never contacted.
func (l *Listener) handleInitialize(session Session, msg *jsonrpc.Message) {
	resp, err := l.responder.Respond(msg.ID)
	if err != nil {
		l.reply(session, jsonrpc.NewErrorResponse(msg.ID, jsonrpc.CodeInternalError, fmt.Sprintf("Internal error: %v", err)))
		return
	}
	l.reply(session, resp)

	notify, err := l.responder.Initialized()
	if err != nil {
		l.logger.Error("Failed to build initialized notification", err)
		return
	}
	l.reply(session, notify)
	l.logger.Info("Handshake answered", "remote", session.Remote())
}

// forward sends one message upstream and writes back the reply as it
// resolves. Replies from concurrent calls are written in completion
// order; correlation is by id only.
func (l *Listener) forward(ctx context.Context, session Session, msg *jsonrpc.Message) {
	reply, err := l.forwarder.Forward(ctx, msg)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			// Connection went away, nobody is waiting for this reply
			return
		}
		l.logger.Error("Upstream call failed", err, "method", msg.Method, "id", string(msg.ID))
		l.reply(session, jsonrpc.NewErrorResponse(msg.ID, jsonrpc.CodeInternalError, fmt.Sprintf("Transport error: %v", err)))
		return
	}
	if reply == nil {
		// Empty upstream body: notification accepted, nothing to write back
		return
	}
	l.reply(session, reply)
}

func (l *Listener) reply(session Session, msg *jsonrpc.Message) {
	data, err := jsonrpc.Encode(msg)
	if err != nil {
		l.logger.Error("Failed to encode reply", err)
		return
	}
	if err := session.Write(data); err != nil {
		l.logger.Error("Failed to write reply", err, "remote", session.Remote())
	}
}
