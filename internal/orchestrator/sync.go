package orchestrator

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"strings"
)

// cmdSyncExport serializes the local CRDT memory document, base64-encoded
// so it survives round-tripping through a text-only protocol channel.
func (o *Orchestrator) cmdSyncExport() (string, error) {
	data, err := o.crdt.Export()
	if err != nil {
		return "", fmt.Errorf("export sync document: %w", err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// cmdSyncImport reads a previously exported document from a file path and
// merges it into the local CRDT store.
func (o *Orchestrator) cmdSyncImport(args string) (string, error) {
	path := strings.TrimSpace(args)
	if path == "" {
		return "", fmt.Errorf("usage: /sync-import <file>")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	if err := o.crdt.Merge(data); err != nil {
		return "", fmt.Errorf("merge %s: %w", path, err)
	}
	return fmt.Sprintf("imported sync document from %s", path), nil
}

// cmdSyncStatus reports this replica's version vector and the local P2P
// listener's connection info (host, port, whether it has data to share).
func (o *Orchestrator) cmdSyncStatus() (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Replica: %s\n", o.crdt.ReplicaID())

	heads := o.crdt.Heads()
	if len(heads) == 0 {
		b.WriteString("Heads: (none)\n")
	} else {
		b.WriteString("Heads:\n")
		for replica, seq := range heads {
			fmt.Fprintf(&b, "  %s: %d\n", replica, seq)
		}
	}

	b.WriteString(o.sync.ConnectionInfo().String())
	return strings.TrimRight(b.String(), "\n"), nil
}

// cmdSyncPull retrieves a peer's document and merges it into the local
// store without sending anything back.
func (o *Orchestrator) cmdSyncPull(ctx context.Context, args string) (string, error) {
	peer := strings.TrimSpace(args)
	if peer == "" {
		return "", fmt.Errorf("usage: /sync-pull <host:port>")
	}

	data, result, err := o.sync.PullFromPeer(ctx, peer)
	if err != nil {
		return "", fmt.Errorf("pull from %s: %w", peer, err)
	}
	if len(data) > 0 {
		if err := o.crdt.Merge(data); err != nil {
			return "", fmt.Errorf("merge pulled document: %w", err)
		}
	}
	return result.String(), nil
}

// cmdSyncPush sends the local document to a peer. The peer stores it as a
// sidecar rather than merging it immediately (see internal/p2psync).
func (o *Orchestrator) cmdSyncPush(ctx context.Context, args string) (string, error) {
	peer := strings.TrimSpace(args)
	if peer == "" {
		return "", fmt.Errorf("usage: /sync-push <host:port>")
	}

	result, err := o.sync.PushToPeer(ctx, peer)
	if err != nil {
		return "", fmt.Errorf("push to %s: %w", peer, err)
	}
	return result.String(), nil
}

// cmdSyncLive exchanges documents with a peer in both directions and merges
// whatever came back into the local store.
func (o *Orchestrator) cmdSyncLive(ctx context.Context, args string) (string, error) {
	peer := strings.TrimSpace(args)
	if peer == "" {
		return "", fmt.Errorf("usage: /sync-live <host:port>")
	}

	remote, result, err := o.sync.SyncWithPeer(ctx, peer)
	if err != nil {
		return "", fmt.Errorf("sync with %s: %w", peer, err)
	}
	if len(remote) > 0 {
		if err := o.crdt.Merge(remote); err != nil {
			return "", fmt.Errorf("merge synced document: %w", err)
		}
	}
	return result.String(), nil
}
