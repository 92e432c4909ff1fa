package daemon

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"

	sovereignerr "github.com/Aman-CERP/sovereign/internal/errors"
)

// LineServer serves the line-delimited JSON protocol over either a Unix
// domain socket or a TCP address, forwarding every request through the
// shared Owner so all mutation funnels through one goroutine.
type LineServer struct {
	network string
	addr    string
	owner   *Owner
	log     *slog.Logger

	mu       sync.Mutex
	listener net.Listener
	shutdown bool
	wg       sync.WaitGroup
}

// NewUnixServer creates a listener bound to a Unix domain socket path.
// A stale socket file at that path is removed before binding.
func NewUnixServer(socketPath string, owner *Owner, log *slog.Logger) *LineServer {
	if log == nil {
		log = slog.Default()
	}
	return &LineServer{network: "unix", addr: socketPath, owner: owner, log: log}
}

// NewTCPServer creates a listener bound to a TCP address.
func NewTCPServer(addr string, owner *Owner, log *slog.Logger) *LineServer {
	if log == nil {
		log = slog.Default()
	}
	return &LineServer{network: "tcp", addr: addr, owner: owner, log: log}
}

// ListenAndServe binds the listener and accepts connections until ctx is
// cancelled. It blocks until all in-flight connections have finished.
func (s *LineServer) ListenAndServe(ctx context.Context) error {
	if s.network == "unix" {
		_ = os.Remove(s.addr)
	}

	listener, err := net.Listen(s.network, s.addr)
	if err != nil {
		return fmt.Errorf("listen on %s %s: %w", s.network, s.addr, err)
	}

	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	if s.network == "unix" {
		defer func() { _ = os.Remove(s.addr) }()
	}
	defer listener.Close()

	s.log.Info("listener started", slog.String("network", s.network), slog.String("addr", s.addr))

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		s.shutdown = true
		s.mu.Unlock()
		_ = listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			s.mu.Lock()
			shutdown := s.shutdown
			s.mu.Unlock()
			if shutdown {
				break
			}
			s.log.Error("accept error", slog.String("network", s.network), slog.String("error", err.Error()))
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(ctx, conn)
		}()
	}

	s.wg.Wait()
	return nil
}

// handleConn loops request/response over one connection until EOF or a
// protocol error, at which point the connection is closed but the listener
// keeps accepting others.
func (s *LineServer) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	encoder := json.NewEncoder(conn)

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			_ = encoder.Encode(NewErrorResponse(sovereignerr.New(sovereignerr.ErrCodeMalformedRequest, "malformed request: "+err.Error(), err)))
			return
		}

		resp := s.dispatch(ctx, req)
		if err := encoder.Encode(resp); err != nil {
			return
		}
	}
}

func (s *LineServer) dispatch(ctx context.Context, req Request) Response {
	input := req.Command
	if req.Args != nil && *req.Args != "" {
		input = req.Command + " " + *req.Args
	}

	result, err := s.owner.Submit(ctx, input)
	if err != nil {
		return NewErrorResponse(err)
	}
	return NewSuccessResponse(result)
}

// Close stops the listener. Safe to call multiple times.
func (s *LineServer) Close() error {
	s.mu.Lock()
	s.shutdown = true
	listener := s.listener
	s.mu.Unlock()

	if listener != nil {
		return listener.Close()
	}
	return nil
}
