package p2psync

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"
)

// connDeadline bounds how long a single sync exchange may take; a stalled
// peer must not pin a server goroutine forever.
const connDeadline = 30 * time.Second

// Service is the P2P sync service: a TCP listener handling PUSH/PULL/SYNC
// requests against the CRDT memory document on disk, plus client methods
// for driving those same commands against a peer.
type Service struct {
	dataDir    string
	listenAddr string
	log        *slog.Logger
}

// New creates a sync service rooted at dataDir (where memories.automerge
// lives), listening on listenAddr when Start is called.
func New(dataDir, listenAddr string, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{dataDir: dataDir, listenAddr: listenAddr, log: log}
}

func (s *Service) syncFilePath() string {
	return filepath.Join(s.dataDir, "memories.automerge")
}

func (s *Service) incomingFilePath() string {
	return filepath.Join(s.dataDir, "memories.automerge.incoming")
}

// Start listens for incoming sync connections until ctx is cancelled, one
// goroutine per accepted connection.
func (s *Service) Start(ctx context.Context) error {
	lst, err := net.Listen("tcp", s.listenAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.listenAddr, err)
	}
	s.log.Info("sync server listening", "addr", s.listenAddr)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-gctx.Done()
		return lst.Close()
	})
	g.Go(func() error {
		for {
			conn, err := lst.Accept()
			if err != nil {
				if gctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("accept: %w", err)
			}
			go s.handleConnection(conn)
		}
	})

	err = g.Wait()
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

func (s *Service) handleConnection(conn net.Conn) {
	defer conn.Close()
	peer := conn.RemoteAddr().String()
	s.log.Debug("sync connection", "peer", peer)

	if err := conn.SetDeadline(time.Now().Add(connDeadline)); err != nil {
		s.log.Warn("sync set deadline failed", "peer", peer, "error", err)
		return
	}

	cmd := make([]byte, cmdLength)
	if _, err := io.ReadFull(conn, cmd); err != nil {
		s.log.Warn("sync read command failed", "peer", peer, "error", err)
		return
	}

	var err error
	switch string(cmd) {
	case cmdPush:
		err = s.handlePush(conn)
	case cmdPull:
		err = s.handlePull(conn)
	case cmdSync:
		err = s.handleSync(conn)
	default:
		err = fmt.Errorf("unknown command %q", cmd)
	}
	if err != nil {
		s.log.Warn("sync error", "peer", peer, "error", err)
	}
}

// handlePush receives a peer's full document and writes it to the
// ".incoming" sidecar rather than merging it in place — merging is left to
// an explicit later step (/sync-import) so a bad push can never corrupt the
// live document out from under a concurrent local write.
func (s *Service) handlePush(conn net.Conn) error {
	data, err := readFramed(conn)
	if err != nil {
		return fmt.Errorf("read pushed data: %w", err)
	}

	if err := os.WriteFile(s.incomingFilePath(), data, 0o644); err != nil {
		return fmt.Errorf("write incoming sidecar: %w", err)
	}

	if _, err := conn.Write([]byte(ackOK)); err != nil {
		return fmt.Errorf("write ack: %w", err)
	}
	return nil
}

func (s *Service) handlePull(conn net.Conn) error {
	data, err := readLocalDocument(s.syncFilePath())
	if err != nil {
		return err
	}
	return writeFramed(conn, data)
}

// handleSync exchanges documents in both directions without merging
// server-side, mirroring the exchange-only behavior this was ported from:
// the caller on each end is responsible for merging what it receives.
func (s *Service) handleSync(conn net.Conn) error {
	if _, err := readFramed(conn); err != nil {
		return fmt.Errorf("read remote document: %w", err)
	}

	data, err := readLocalDocument(s.syncFilePath())
	if err != nil {
		return err
	}
	return writeFramed(conn, data)
}

func readLocalDocument(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

func readFramed(r io.Reader) ([]byte, error) {
	lenBytes := make([]byte, lengthPrefix)
	if _, err := io.ReadFull(r, lenBytes); err != nil {
		return nil, err
	}
	length := binary.BigEndian.Uint64(lenBytes)

	data := make([]byte, length)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, err
	}
	return data, nil
}

func writeFramed(w io.Writer, data []byte) error {
	lenBytes := make([]byte, lengthPrefix)
	binary.BigEndian.PutUint64(lenBytes, uint64(len(data)))
	if _, err := w.Write(lenBytes); err != nil {
		return err
	}
	_, err := w.Write(data)
	return err
}

// ConnectionInfo reports this service's host/port and whether it has any
// sync data yet, for sharing with a peer out of band.
func (s *Service) ConnectionInfo() ConnectionInfo {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "localhost"
	}

	_, portStr, err := net.SplitHostPort(s.listenAddr)
	port := 0
	if err == nil {
		fmt.Sscanf(portStr, "%d", &port)
	}

	_, statErr := os.Stat(s.syncFilePath())
	return ConnectionInfo{Hostname: hostname, Port: port, HasData: statErr == nil}
}
