package p2psync

import (
	"context"
	"fmt"
	"io"
	"net"
)

func (s *Service) dial(ctx context.Context, peerAddr string) (net.Conn, error) {
	d := net.Dialer{}
	conn, err := d.DialContext(ctx, "tcp", peerAddr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", peerAddr, err)
	}
	return conn, nil
}

// PushToPeer sends this service's local document to peerAddr. The peer
// stores it as a sidecar rather than merging it immediately.
func (s *Service) PushToPeer(ctx context.Context, peerAddr string) (SyncResult, error) {
	conn, err := s.dial(ctx, peerAddr)
	if err != nil {
		return SyncResult{}, err
	}
	defer conn.Close()

	local, err := readLocalDocument(s.syncFilePath())
	if err != nil {
		return SyncResult{}, err
	}
	if local == nil {
		return SyncResult{}, fmt.Errorf("no local sync data found")
	}

	if _, err := conn.Write([]byte(cmdPush)); err != nil {
		return SyncResult{}, fmt.Errorf("write push command: %w", err)
	}
	if err := writeFramed(conn, local); err != nil {
		return SyncResult{}, fmt.Errorf("write push payload: %w", err)
	}

	ack := make([]byte, cmdLength)
	if _, err := io.ReadFull(conn, ack); err != nil {
		return SyncResult{}, fmt.Errorf("read push ack: %w", err)
	}
	if string(ack) != ackOK {
		return SyncResult{}, fmt.Errorf("push failed: peer responded %q", ack)
	}

	return SyncResult{BytesSent: len(local), Status: "Pushed successfully"}, nil
}

// PullFromPeer retrieves peerAddr's document without sending anything back.
func (s *Service) PullFromPeer(ctx context.Context, peerAddr string) ([]byte, SyncResult, error) {
	conn, err := s.dial(ctx, peerAddr)
	if err != nil {
		return nil, SyncResult{}, err
	}
	defer conn.Close()

	if _, err := conn.Write([]byte(cmdPull)); err != nil {
		return nil, SyncResult{}, fmt.Errorf("write pull command: %w", err)
	}

	data, err := readFramed(conn)
	if err != nil {
		return nil, SyncResult{}, fmt.Errorf("read pulled data: %w", err)
	}

	return data, SyncResult{BytesSent: cmdLength, BytesReceived: len(data), Status: "Pulled successfully"}, nil
}

// SyncWithPeer exchanges documents with peerAddr in both directions.
// Merging the returned bytes into the local CRDT store is the caller's
// responsibility — this only moves bytes over the wire.
func (s *Service) SyncWithPeer(ctx context.Context, peerAddr string) ([]byte, SyncResult, error) {
	conn, err := s.dial(ctx, peerAddr)
	if err != nil {
		return nil, SyncResult{}, err
	}
	defer conn.Close()

	local, err := readLocalDocument(s.syncFilePath())
	if err != nil {
		return nil, SyncResult{}, err
	}

	if _, err := conn.Write([]byte(cmdSync)); err != nil {
		return nil, SyncResult{}, fmt.Errorf("write sync command: %w", err)
	}
	if err := writeFramed(conn, local); err != nil {
		return nil, SyncResult{}, fmt.Errorf("write sync payload: %w", err)
	}

	remote, err := readFramed(conn)
	if err != nil {
		return nil, SyncResult{}, fmt.Errorf("read remote document: %w", err)
	}

	return remote, SyncResult{
		BytesSent:     len(local),
		BytesReceived: len(remote),
		Status:        "Synced successfully",
	}, nil
}
