// Command sovereignd runs the sovereign daemon: it loads configuration,
// opens the local stores, and serves the Unix, TCP, and WebSocket
// listeners until signaled to stop. The command-line surface here is
// intentionally minimal — flags only, no subcommands — since a richer CLI
// is explicitly out of this daemon's scope.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/sovereign/internal/codeindex"
	"github.com/Aman-CERP/sovereign/internal/config"
	"github.com/Aman-CERP/sovereign/internal/crdtmemory"
	"github.com/Aman-CERP/sovereign/internal/daemon"
	"github.com/Aman-CERP/sovereign/internal/embed"
	"github.com/Aman-CERP/sovereign/internal/logging"
	"github.com/Aman-CERP/sovereign/internal/memory"
	"github.com/Aman-CERP/sovereign/internal/orchestrator"
	"github.com/Aman-CERP/sovereign/internal/p2psync"
	"github.com/Aman-CERP/sovereign/internal/retrieval"
	"github.com/Aman-CERP/sovereign/internal/store"
	"github.com/Aman-CERP/sovereign/internal/watcher"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "sovereignd:", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath = flag.String("config", "", "path to a .sovereign.yaml config file")
		dataDir    = flag.String("data-dir", "", "override the data directory")
		root       = flag.String("root", "", "project root to index and watch on startup")
		tcpAddr    = flag.String("tcp-addr", "", "override the TCP listener address")
		wsAddr     = flag.String("ws-addr", "", "override the WebSocket listener address")
		p2pAddr    = flag.String("p2p-addr", "", "override the P2P sync listener address")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if *dataDir != "" {
		cfg.Paths.DataDir = *dataDir
	}
	if *tcpAddr != "" {
		cfg.Listeners.TCPAddr = *tcpAddr
	}
	if *wsAddr != "" {
		cfg.Listeners.WSAddr = *wsAddr
	}
	if *p2pAddr != "" {
		cfg.P2P.ListenAddr = *p2pAddr
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if err := cfg.EnsureDataDir(); err != nil {
		return fmt.Errorf("creating data dir: %w", err)
	}

	logger, cleanupLog, err := logging.Setup(logging.Config{
		Level:         cfg.Logging.Level,
		FilePath:      cfg.Logging.FilePath,
		MaxSizeMB:     cfg.Logging.MaxSizeMB,
		MaxFiles:      cfg.Logging.MaxFiles,
		WriteToStderr: cfg.Logging.WriteToStderr,
	})
	if err != nil {
		return fmt.Errorf("setting up logging: %w", err)
	}
	defer cleanupLog()
	slog.SetDefault(logger)

	// A stale socket left behind by a prior unclean shutdown must not block
	// the bind below.
	if err := os.Remove(cfg.Listeners.UnixSocketPath); err != nil && !os.IsNotExist(err) {
		logger.Warn("could not remove stale unix socket", slog.String("error", err.Error()))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	orch, sync, closeStores, err := buildOrchestrator(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("building orchestrator: %w", err)
	}
	defer closeStores()

	owner := daemon.NewOwner(orch, logger)
	unixSrv := daemon.NewUnixServer(cfg.Listeners.UnixSocketPath, owner, logger)
	tcpSrv := daemon.NewTCPServer(cfg.Listeners.TCPAddr, owner, logger)
	wsSrv := daemon.NewWSServer(cfg.Listeners.WSAddr, owner, logger)

	watcherOpts := watcher.DefaultOptions()
	watcherOpts.DebounceWindow = cfg.Watcher.DebounceInterval
	fsWatcher, err := watcher.NewFSWatcher(watcherOpts.WithDefaults())
	if err != nil {
		return fmt.Errorf("creating file watcher: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		owner.Run(gctx)
		return nil
	})
	g.Go(func() error { return unixSrv.ListenAndServe(gctx) })
	g.Go(func() error { return tcpSrv.ListenAndServe(gctx) })
	g.Go(func() error { return wsSrv.ListenAndServe(gctx) })
	g.Go(func() error { return sync.Start(gctx) })

	if *root != "" {
		g.Go(func() error { return fsWatcher.Start(gctx, *root) })
		g.Go(func() error { return pumpIndexCommands(gctx, fsWatcher, owner, logger) })

		if _, err := owner.Submit(gctx, "/index "+*root); err != nil {
			logger.Warn("initial index failed", slog.String("error", err.Error()))
		}
	}

	logger.Info("sovereignd started",
		slog.String("unix_socket", cfg.Listeners.UnixSocketPath),
		slog.String("tcp_addr", cfg.Listeners.TCPAddr),
		slog.String("ws_addr", cfg.Listeners.WSAddr),
		slog.String("p2p_addr", cfg.P2P.ListenAddr))

	<-gctx.Done()
	_ = unixSrv.Close()
	_ = tcpSrv.Close()
	_ = wsSrv.Close()
	_ = fsWatcher.Stop()

	if err := g.Wait(); err != nil && gctx.Err() == nil {
		return err
	}
	logger.Info("sovereignd stopped")
	return nil
}

// pumpIndexCommands forwards the watcher's settled re-index roots onto the
// owner, one at a time, until the watcher's channel closes.
func pumpIndexCommands(ctx context.Context, w watcher.Watcher, owner *daemon.Owner, logger *slog.Logger) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case root, ok := <-w.IndexCommands():
			if !ok {
				return nil
			}
			if _, err := owner.Submit(ctx, "/index "+root); err != nil {
				logger.Warn("watcher-triggered index failed",
					slog.String("root", root), slog.String("error", err.Error()))
			}
		}
	}
}

// buildOrchestrator opens every store the orchestrator wires together and
// returns a cleanup closing them all, in reverse order of acquisition.
func buildOrchestrator(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*orchestrator.Orchestrator, *p2psync.Service, func(), error) {
	s, err := store.Open(cfg.Paths.DataDir, logger)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("opening codebase store: %w", err)
	}

	mem, err := memory.Open(cfg.Paths.DataDir, logger)
	if err != nil {
		_ = s.Close()
		return nil, nil, nil, fmt.Errorf("opening memory store: %w", err)
	}

	crdt, err := crdtmemory.New(cfg.Paths.DataDir)
	if err != nil {
		_ = s.Close()
		_ = mem.Close()
		return nil, nil, nil, fmt.Errorf("opening CRDT memory store: %w", err)
	}

	ix := codeindex.New(s, logger)
	embedder := embed.NewCachedEmbedder(embed.NewStaticEmbedder(), cfg.Embedding.CacheSize)
	sync := p2psync.New(cfg.Paths.DataDir, cfg.P2P.ListenAddr, logger)

	retrievalCfg := retrieval.Config{
		TopK:           cfg.Retrieval.MaxResults,
		MinSimilarity:  0.3,
		ChunkSize:      cfg.Retrieval.ChunkSize,
		ChunkOverlap:   cfg.Retrieval.ChunkOverlap,
		SemanticWeight: float32(cfg.Retrieval.SemanticWeight),
		EnableRerank:   true,
	}

	orch, err := orchestrator.New(ctx, orchestrator.Deps{
		Index:        ix,
		Embedder:     embedder,
		Memories:     mem,
		CRDT:         crdt,
		Sync:         sync,
		RetrievalCfg: retrievalCfg,
		Log:          logger,
	})
	if err != nil {
		_ = s.Close()
		_ = mem.Close()
		_ = embedder.Close()
		return nil, nil, nil, fmt.Errorf("constructing orchestrator: %w", err)
	}

	cleanup := func() {
		_ = embedder.Close()
		_ = mem.Close()
		_ = s.Close()
	}
	return orch, sync, cleanup, nil
}
