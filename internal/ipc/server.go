package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"
)

const (
	// DefaultReadTimeout bounds how long a client may take to send its request line.
	DefaultReadTimeout = 2 * time.Second
	maxRequestBytes    = 4 << 10
)

// Handler answers one control request against the running session.
type Handler interface {
	Handle(context.Context, Request) Response
}

type HandlerFunc func(context.Context, Request) Response

func (f HandlerFunc) Handle(ctx context.Context, req Request) Response {
	return f(ctx, req)
}

// Server serves the practice control socket. Each connection carries one
// JSON request line and gets one JSON response line.
type Server struct {
	Handler Handler
	// ReadTimeout defaults to DefaultReadTimeout.
	ReadTimeout time.Duration
}

// Serve runs a Server with default limits.
func Serve(ctx context.Context, listener net.Listener, handler Handler) error {
	s := &Server{Handler: handler}
	return s.Serve(ctx, listener)
}

// Serve accepts clients until ctx ends or listener closes, then waits for
// in-flight connections.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	var wg sync.WaitGroup

	go func() {
		<-ctx.Done()
		_ = listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				wg.Wait()
				return nil
			}
			return fmt.Errorf("accept control connection: %w", err)
		}

		wg.Add(1)
		go func(c net.Conn) {
			defer wg.Done()
			defer c.Close()
			s.serveConn(ctx, c)
		}(conn)
	}
}

func (s *Server) serveConn(ctx context.Context, c net.Conn) {
	timeout := s.ReadTimeout
	if timeout <= 0 {
		timeout = DefaultReadTimeout
	}
	// a stalled client must not pin the session's control socket
	_ = c.SetDeadline(time.Now().Add(timeout))

	req, err := readRequest(c)
	if err != nil {
		_ = json.NewEncoder(c).Encode(Response{OK: false, Error: err.Error()})
		return
	}

	resp := s.Handler.Handle(ctx, req)
	_ = c.SetWriteDeadline(time.Now().Add(timeout))
	_ = json.NewEncoder(c).Encode(resp)
}

func readRequest(r io.Reader) (Request, error) {
	reader := bufio.NewReader(io.LimitReader(r, maxRequestBytes))
	line, err := reader.ReadBytes('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && len(line) >= maxRequestBytes {
			return Request{}, fmt.Errorf("read request: exceeds %d bytes", maxRequestBytes)
		}
		return Request{}, fmt.Errorf("read request: %w", err)
	}

	var req Request
	if err := json.Unmarshal(line, &req); err != nil {
		return Request{}, fmt.Errorf("decode request: %w", err)
	}
	req.Command = strings.TrimSpace(req.Command)
	if req.Command == "" {
		return Request{}, errors.New("decode request: missing command")
	}
	return req, nil
}
