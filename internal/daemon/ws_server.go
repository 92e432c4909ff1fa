package daemon

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WSServer serves the WebSocket protocol. Unlike the line protocol, a
// completed result is chopped into chunk events before a final complete
// event, so a slow or chatty client can render results incrementally.
type WSServer struct {
	addr  string
	owner *Owner
	log   *slog.Logger

	upgrader websocket.Upgrader

	mu     sync.Mutex
	server *http.Server
	wg     sync.WaitGroup
}

// NewWSServer creates a WebSocket listener bound to addr.
func NewWSServer(addr string, owner *Owner, log *slog.Logger) *WSServer {
	if log == nil {
		log = slog.Default()
	}
	return &WSServer{
		addr:  addr,
		owner: owner,
		log:   log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// ListenAndServe binds the HTTP upgrade endpoint and serves until ctx is
// cancelled, then shuts down in-flight connections gracefully.
func (s *WSServer) ListenAndServe(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleUpgrade)

	httpServer := &http.Server{Addr: s.addr, Handler: mux}
	s.mu.Lock()
	s.server = httpServer
	s.mu.Unlock()

	s.log.Info("websocket listener started", slog.String("addr", s.addr))

	errCh := make(chan error, 1)
	go func() { errCh <- httpServer.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
		s.wg.Wait()
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *WSServer) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	// handleConn runs inside the handler: r.Context() is cancelled as soon
	// as the handler returns, which would fail every Submit on this socket.
	s.wg.Add(1)
	defer s.wg.Done()
	s.handleConn(r.Context(), conn)
}

// handleConn loops request/response over one socket until it is closed.
// gorilla/websocket answers ping control frames with pong automatically
// via its default ping handler, satisfying the ping/pong requirement with
// no extra code here.
func (s *WSServer) handleConn(ctx context.Context, conn *websocket.Conn) {
	defer conn.Close()

	for {
		var req WSRequest
		if err := conn.ReadJSON(&req); err != nil {
			return
		}

		input := req.Command
		if req.Args != nil && *req.Args != "" {
			input = req.Command + " " + *req.Args
		}

		result, err := s.owner.Submit(ctx, input)
		if err != nil {
			if werr := conn.WriteJSON(NewWSErrorEvent(req.ID, err)); werr != nil {
				return
			}
			continue
		}

		if !s.sendChunks(conn, req.ID, result) {
			return
		}
	}
}

func (s *WSServer) sendChunks(conn *websocket.Conn, id, result string) bool {
	for _, chunk := range ChunkMessage(result) {
		c := chunk
		if err := conn.WriteJSON(WSResponse{ID: id, Event: WSEventChunk, Data: &c}); err != nil {
			return false
		}
	}
	if err := conn.WriteJSON(WSResponse{ID: id, Event: WSEventComplete}); err != nil {
		return false
	}
	return true
}

// Close stops the HTTP server. Safe to call multiple times.
func (s *WSServer) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server == nil {
		return nil
	}
	return s.server.Close()
}
