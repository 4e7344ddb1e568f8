// Package transport implements the peer RPC shell: a length-framed
// binary channel carrying gob-encoded request/response pairs between a
// process that owns a partition of session/chat state and a process that
// only holds a Remote adapter over it. Grounded on the teacher's
// internal/gslistener (net.Listen + accept loop + framed read/write over
// a plain net.Conn) generalized from a fixed GS<->LS wire shape to an
// arbitrary named-method call.
package transport

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"

	"github.com/google/uuid"
)

// maxFrameSize bounds a single RPC frame so a corrupt length prefix can
// never make the reader allocate unbounded memory.
const maxFrameSize = 32 << 20

// Envelope is the wire shape for one RPC call: a request or a response,
// tagged by method name and correlated by RequestID.
type Envelope struct {
	RequestID string
	Method    string
	Status    string // "" on success; well-known codes otherwise (NotFound, Internal, InvalidArgument)
	Payload   []byte // gob-encoded request or response body
}

func writeEnvelope(w *bufio.Writer, env Envelope) error {
	buf, err := encodeGob(env)
	if err != nil {
		return fmt.Errorf("writeEnvelope: encode: %w", err)
	}
	var lenPrefix [4]byte
	binary.LittleEndian.PutUint32(lenPrefix[:], uint32(len(buf)))
	if _, err := w.Write(lenPrefix[:]); err != nil {
		return fmt.Errorf("writeEnvelope: write length: %w", err)
	}
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("writeEnvelope: write body: %w", err)
	}
	return w.Flush()
}

func readEnvelope(r io.Reader) (Envelope, error) {
	var lenPrefix [4]byte
	if _, err := io.ReadFull(r, lenPrefix[:]); err != nil {
		return Envelope{}, err
	}
	n := binary.LittleEndian.Uint32(lenPrefix[:])
	if n > maxFrameSize {
		return Envelope{}, fmt.Errorf("readEnvelope: frame too large (%d bytes)", n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return Envelope{}, fmt.Errorf("readEnvelope: read body: %w", err)
	}
	var env Envelope
	if err := decodeGob(buf, &env); err != nil {
		return Envelope{}, fmt.Errorf("readEnvelope: decode: %w", err)
	}
	return env, nil
}

func encodeGob(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeGob(b []byte, v any) error {
	return gob.NewDecoder(bytes.NewReader(b)).Decode(v)
}

// Decode gob-decodes a handler's raw request payload into v. Exported for
// HandlerFunc implementations registered from other packages (see
// bancho.RegisterSessionService, chat.RegisterChatService).
func Decode(payload []byte, v any) error {
	return decodeGob(payload, v)
}

// Client dials a single peer and serializes calls over one persistent
// connection, matching the GS<->LS relay's one-connection-per-peer shape.
type Client struct {
	mu   sync.Mutex
	conn net.Conn
	w    *bufio.Writer
	r    *bufio.Reader
}

// Dial connects to a peer's RPC listener.
func Dial(addr string) (*Client, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("transport.Dial %s: %w", addr, err)
	}
	return &Client{conn: conn, w: bufio.NewWriter(conn), r: bufio.NewReader(conn)}, nil
}

// Call sends req under method and decodes the response into resp. Calls
// on one Client are serialized; a peer that wants concurrency dials
// multiple Clients, matching the teacher's one-goroutine-per-GS-conn model.
func (c *Client) Call(method string, req any, resp any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	reqBody, err := encodeGob(req)
	if err != nil {
		return fmt.Errorf("transport.Call %s: encode request: %w", method, err)
	}

	reqID := uuid.NewString()
	if err := writeEnvelope(c.w, Envelope{RequestID: reqID, Method: method, Payload: reqBody}); err != nil {
		return fmt.Errorf("transport.Call %s: %w", method, err)
	}

	env, err := readEnvelope(c.r)
	if err != nil {
		return fmt.Errorf("transport.Call %s: read response: %w", method, err)
	}
	if env.Status != "" {
		return &StatusError{Status: env.Status}
	}
	if resp == nil {
		return nil
	}
	if err := decodeGob(env.Payload, resp); err != nil {
		return fmt.Errorf("transport.Call %s: decode response: %w", method, err)
	}
	return nil
}

// Close releases the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// StatusError is returned by Call when the peer reports a well-known
// failure status instead of a transport-level error.
type StatusError struct {
	Status string
}

func (e *StatusError) Error() string { return "rpc: " + e.Status }

// HandlerFunc processes one decoded request and returns a response value
// to encode, a non-empty well-known status to report instead, or an error,
// which is logged and reported to the caller as status "Internal".
type HandlerFunc func(payload []byte) (resp any, status string, err error)

// Server accepts peer connections and dispatches each request envelope to
// a registered method handler, one connection per goroutine — the same
// shape as gslistener.Server.Run's accept loop.
type Server struct {
	mu       sync.RWMutex
	handlers map[string]HandlerFunc
	listener net.Listener
}

// NewServer creates an RPC server with no handlers registered yet.
func NewServer() *Server {
	return &Server{handlers: make(map[string]HandlerFunc)}
}

// Handle registers a method handler. Not safe to call concurrently with Run.
func (s *Server) Handle(method string, fn HandlerFunc) {
	s.mu.Lock()
	s.handlers[method] = fn
	s.mu.Unlock()
}

// Run listens on addr and serves until the listener is closed.
func (s *Server) Run(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("transport.Server.Run: listen %s: %w", addr, err)
	}
	s.listener = ln
	slog.Info("peer rpc listening", "addr", addr)

	for {
		conn, err := ln.Accept()
		if err != nil {
			return fmt.Errorf("transport.Server.Run: accept: %w", err)
		}
		go s.serveConn(conn)
	}
}

// Close stops accepting new connections.
func (s *Server) Close() error {
	if s.listener == nil {
		return nil
	}
	return s.listener.Close()
}

func (s *Server) serveConn(conn net.Conn) {
	defer conn.Close()
	r := bufio.NewReader(conn)
	w := bufio.NewWriter(conn)

	for {
		env, err := readEnvelope(r)
		if err != nil {
			if err != io.EOF {
				slog.Warn("peer rpc read failed", "remote", conn.RemoteAddr(), "err", err)
			}
			return
		}

		s.mu.RLock()
		fn, ok := s.handlers[env.Method]
		s.mu.RUnlock()

		var out Envelope
		out.RequestID = env.RequestID
		if !ok {
			out.Status = "NotFound"
		} else {
			resp, status, err := fn(env.Payload)
			if err != nil {
				out.Status = "Internal"
				slog.Warn("peer rpc handler error", "method", env.Method, "err", err)
			} else if status != "" {
				out.Status = status
			} else {
				body, encErr := encodeGob(resp)
				if encErr != nil {
					out.Status = "Internal"
					slog.Warn("peer rpc encode response failed", "method", env.Method, "err", encErr)
				} else {
					out.Payload = body
				}
			}
		}

		if err := writeEnvelope(w, out); err != nil {
			slog.Warn("peer rpc write failed", "remote", conn.RemoteAddr(), "err", err)
			return
		}
	}
}
