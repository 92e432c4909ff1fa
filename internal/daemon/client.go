package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"
)

// ClientConfig configures a Client's transport.
type ClientConfig struct {
	// Network is "unix" or "tcp".
	Network string
	// Addr is the socket path (for "unix") or host:port (for "tcp").
	Addr    string
	Timeout time.Duration
}

// DefaultClientConfig targets the Unix domain socket with a sensible
// per-request timeout.
func DefaultClientConfig(socketPath string) ClientConfig {
	return ClientConfig{Network: "unix", Addr: socketPath, Timeout: 10 * time.Second}
}

// Client speaks the line-delimited JSON protocol against a running daemon.
type Client struct {
	cfg ClientConfig
}

// NewClient creates a client for the given configuration.
func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{cfg: cfg}
}

func (c *Client) connect() (net.Conn, error) {
	conn, err := net.DialTimeout(c.cfg.Network, c.cfg.Addr, c.cfg.Timeout)
	if err != nil {
		return nil, fmt.Errorf("connect to daemon: %w", err)
	}
	return conn, nil
}

// IsRunning reports whether the daemon is accepting connections.
func (c *Client) IsRunning() bool {
	conn, err := c.connect()
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// Send issues one command and waits for its response. args is appended to
// the request verbatim as the "args" field; pass "" to omit it.
func (c *Client) Send(ctx context.Context, command, args string) (Response, error) {
	conn, err := c.connect()
	if err != nil {
		return Response{}, err
	}
	defer conn.Close()

	deadline := time.Now().Add(c.cfg.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return Response{}, fmt.Errorf("set deadline: %w", err)
	}

	req := Request{Command: command}
	if args != "" {
		req.Args = &args
	}
	if err := json.NewEncoder(conn).Encode(req); err != nil {
		return Response{}, fmt.Errorf("send request: %w", err)
	}

	var resp Response
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return Response{}, fmt.Errorf("receive response: %w", err)
	}
	return resp, nil
}
