// Package orchestrator implements the daemon's Orchestrator: the single
// mutable object threaded through the owner task, dispatching each
// textual command to the codebase index, retrieval engine, memory stores,
// and P2P sync service it owns.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Aman-CERP/sovereign/internal/codeindex"
	"github.com/Aman-CERP/sovereign/internal/crdtmemory"
	"github.com/Aman-CERP/sovereign/internal/embed"
	sovereignerr "github.com/Aman-CERP/sovereign/internal/errors"
	"github.com/Aman-CERP/sovereign/internal/memory"
	"github.com/Aman-CERP/sovereign/internal/p2psync"
	"github.com/Aman-CERP/sovereign/internal/retrieval"
	"github.com/Aman-CERP/sovereign/internal/store"
)

// DefaultSearchLimit bounds results returned by /search and /symbol when
// the caller does not specify one.
const DefaultSearchLimit = 10

// Orchestrator holds every piece of mutable core state (C2/C4/C5/C6/C7) and
// executes one command at a time. It is never accessed concurrently —
// daemon.Owner is the only caller of Execute, serializing every request
// onto one goroutine, so nothing here needs its own locking.
type Orchestrator struct {
	index    *codeindex.Index
	embedder embed.Embedder
	engine   *retrieval.Engine
	memories *memory.Store
	crdt     *crdtmemory.Store
	sync     *p2psync.Service
	chat     ChatBackend
	log      *slog.Logger

	retrievalCfg retrieval.Config
	vectorCfg    store.VectorIndexConfig
}

// Deps bundles every already-open collaborator the orchestrator wires
// together. Every field is required except Chat and Log, which default to
// NoopChatBackend and slog.Default() when nil.
type Deps struct {
	Index        *codeindex.Index
	Embedder     embed.Embedder
	Memories     *memory.Store
	CRDT         *crdtmemory.Store
	Sync         *p2psync.Service
	Chat         ChatBackend
	RetrievalCfg retrieval.Config
	Log          *slog.Logger
}

// New builds an Orchestrator, constructing an initial (possibly empty)
// semantic vector index from whatever embeddings are already persisted.
func New(ctx context.Context, deps Deps) (*Orchestrator, error) {
	log := deps.Log
	if log == nil {
		log = slog.Default()
	}
	chat := deps.Chat
	if chat == nil {
		chat = NoopChatBackend{}
	}

	vectorCfg := store.DefaultVectorIndexConfig(deps.Embedder.Dimensions())
	vecIdx, err := rebuildVectorIndex(ctx, deps.Index, vectorCfg)
	if err != nil {
		return nil, fmt.Errorf("building initial vector index: %w", err)
	}

	o := &Orchestrator{
		index:        deps.Index,
		embedder:     deps.Embedder,
		memories:     deps.Memories,
		crdt:         deps.CRDT,
		sync:         deps.Sync,
		chat:         chat,
		log:          log,
		retrievalCfg: deps.RetrievalCfg,
		vectorCfg:    vectorCfg,
	}
	o.engine = retrieval.New(o.index, o.embedder, vecIdx, o.retrievalCfg)
	return o, nil
}

func rebuildVectorIndex(ctx context.Context, ix *codeindex.Index, cfg store.VectorIndexConfig) (*store.VectorIndex, error) {
	embeddings, err := ix.GetAllEmbeddings(ctx)
	if err != nil {
		return nil, err
	}
	return store.BuildVectorIndex(cfg, embeddings)
}

// refreshEngine rebuilds the semantic candidate index from whatever
// embeddings are now persisted, replacing the engine wholesale — cheaper
// than exposing a mutator on retrieval.Engine for what is already a rare,
// explicit operation (after /index or /embed).
func (o *Orchestrator) refreshEngine(ctx context.Context) error {
	vecIdx, err := rebuildVectorIndex(ctx, o.index, o.vectorCfg)
	if err != nil {
		return err
	}
	o.engine = retrieval.New(o.index, o.embedder, vecIdx, o.retrievalCfg)
	return nil
}

// Execute parses and runs a single command line. Bare text (no leading
// "/") is forwarded to the chat backend; everything else is dispatched by
// its leading "/word".
func (o *Orchestrator) Execute(ctx context.Context, input string) (string, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return "", sovereignerr.ProtocolError("empty command", nil)
	}

	if !strings.HasPrefix(trimmed, "/") {
		return o.chat.Ask(ctx, trimmed)
	}

	fields := strings.SplitN(trimmed, " ", 2)
	cmd := fields[0]
	var args string
	if len(fields) > 1 {
		args = strings.TrimSpace(fields[1])
	}

	switch cmd {
	case "/search":
		return o.cmdSearch(ctx, args)
	case "/symbol":
		return o.cmdSymbol(ctx, args)
	case "/ask":
		return o.chat.Ask(ctx, args)
	case "/read":
		return o.cmdRead(ctx, args)
	case "/summarize":
		return o.cmdSummarize(ctx, args)
	case "/embed":
		return o.cmdEmbed(ctx, args)
	case "/stats":
		return o.cmdStats(ctx)
	case "/memory":
		return o.cmdMemory(ctx, args)
	case "/index":
		return o.cmdIndex(ctx, args)
	case "/sync-export":
		return o.cmdSyncExport()
	case "/sync-import":
		return o.cmdSyncImport(args)
	case "/sync-status":
		return o.cmdSyncStatus()
	case "/sync-pull":
		return o.cmdSyncPull(ctx, args)
	case "/sync-push":
		return o.cmdSyncPush(ctx, args)
	case "/sync-live":
		return o.cmdSyncLive(ctx, args)
	case "/clear":
		return "context cleared", nil
	case "/help":
		return helpText, nil
	default:
		return "", sovereignerr.New(sovereignerr.ErrCodeUnknownCommand, fmt.Sprintf("unknown command: %s", cmd), nil)
	}
}

const helpText = `Commands:
  /search <query>           hybrid search over the indexed codebase
  /symbol <name>            find a declaration by symbol name
  /ask <question>           ask the chat collaborator
  /read <path>              print a file's indexed content
  /summarize <path>         summarize a file's language/size/symbols
  /embed <path>             (re)compute and store an embedding for a file
  /stats                    codebase statistics
  /memory <subcommand>      remember/recent/type/project
  /index <path>             index a directory
  /sync-export              export the CRDT memory document (base64)
  /sync-import <file>       merge a CRDT document from a file path
  /sync-status              local sync heads and peer connection info
  /sync-pull <host:port>    pull and merge a peer's document
  /sync-push <host:port>    push the local document to a peer
  /sync-live <host:port>    bidirectional sync with a peer
  /clear                    clear session context
  /help                     this message`
