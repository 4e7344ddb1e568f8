package transport

import (
	"bufio"
	"errors"
	"net"
	"testing"
)

var errBoom = errors.New("boom")

// pipeClient wires a Client over one half of a net.Pipe, with the Server
// serving the other half in a background goroutine — avoids binding a
// real TCP port for unit tests.
func pipeClient(t *testing.T, srv *Server) *Client {
	t.Helper()
	clientConn, serverConn := net.Pipe()
	t.Cleanup(func() {
		_ = clientConn.Close()
		_ = serverConn.Close()
	})
	go srv.serveConn(serverConn)
	return &Client{conn: clientConn, w: bufio.NewWriter(clientConn), r: bufio.NewReader(clientConn)}
}

type echoRequest struct {
	Text string
}

type echoResponse struct {
	Text string
}

func TestClientCallRoundTrip(t *testing.T) {
	srv := NewServer()
	srv.Handle("Echo", func(payload []byte) (any, string, error) {
		var req echoRequest
		if err := Decode(payload, &req); err != nil {
			return nil, "", err
		}
		return echoResponse{Text: req.Text + "!"}, "", nil
	})

	c := pipeClient(t, srv)
	var resp echoResponse
	if err := c.Call("Echo", echoRequest{Text: "hello"}, &resp); err != nil {
		t.Fatalf("Call: %v", err)
	}
	if resp.Text != "hello!" {
		t.Fatalf("resp.Text = %q, want %q", resp.Text, "hello!")
	}
}

func TestClientCallUnknownMethodReturnsNotFound(t *testing.T) {
	srv := NewServer()
	c := pipeClient(t, srv)

	var resp echoResponse
	err := c.Call("DoesNotExist", echoRequest{}, &resp)
	statusErr, ok := err.(*StatusError)
	if !ok {
		t.Fatalf("Call on an unregistered method: got %v (%T), want *StatusError", err, err)
	}
	if statusErr.Status != "NotFound" {
		t.Fatalf("StatusError.Status = %q, want %q", statusErr.Status, "NotFound")
	}
}

func TestClientCallHandlerErrorReturnsInternal(t *testing.T) {
	srv := NewServer()
	srv.Handle("Boom", func(payload []byte) (any, string, error) {
		return nil, "", errBoom
	})
	c := pipeClient(t, srv)

	err := c.Call("Boom", echoRequest{}, nil)
	statusErr, ok := err.(*StatusError)
	if !ok {
		t.Fatalf("Call on a failing handler: got %v (%T), want *StatusError", err, err)
	}
	if statusErr.Status != "Internal" {
		t.Fatalf("StatusError.Status = %q, want %q", statusErr.Status, "Internal")
	}
}

func TestClientCallHandlerStatusPassesThrough(t *testing.T) {
	srv := NewServer()
	srv.Handle("Missing", func(payload []byte) (any, string, error) {
		return nil, "NotFound", nil
	})
	c := pipeClient(t, srv)

	err := c.Call("Missing", echoRequest{}, nil)
	statusErr, ok := err.(*StatusError)
	if !ok || statusErr.Status != "NotFound" {
		t.Fatalf("Call: got %v, want StatusError{Status: NotFound}", err)
	}
}

func TestClientCallNilResponseSkipsDecode(t *testing.T) {
	srv := NewServer()
	srv.Handle("Noop", func(payload []byte) (any, string, error) {
		return nil, "", nil
	})
	c := pipeClient(t, srv)

	if err := c.Call("Noop", echoRequest{}, nil); err != nil {
		t.Fatalf("Call with nil resp: %v", err)
	}
}

func TestClientSerializesConcurrentCalls(t *testing.T) {
	srv := NewServer()
	srv.Handle("Echo", func(payload []byte) (any, string, error) {
		var req echoRequest
		if err := Decode(payload, &req); err != nil {
			return nil, "", err
		}
		return echoResponse{Text: req.Text}, "", nil
	})
	c := pipeClient(t, srv)

	done := make(chan error, 8)
	for i := 0; i < 8; i++ {
		go func() {
			var resp echoResponse
			done <- c.Call("Echo", echoRequest{Text: "x"}, &resp)
		}()
	}
	for i := 0; i < 8; i++ {
		if err := <-done; err != nil {
			t.Fatalf("concurrent Call: %v", err)
		}
	}
}

func TestEnvelopeRoundTripThroughGob(t *testing.T) {
	buf, err := encodeGob(Envelope{RequestID: "r1", Method: "Echo", Payload: []byte{1, 2, 3}})
	if err != nil {
		t.Fatalf("encodeGob: %v", err)
	}
	var got Envelope
	if err := decodeGob(buf, &got); err != nil {
		t.Fatalf("decodeGob: %v", err)
	}
	if got.RequestID != "r1" || got.Method != "Echo" || len(got.Payload) != 3 {
		t.Fatalf("round-tripped envelope = %+v", got)
	}
}
