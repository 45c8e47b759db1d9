// Package depbuilder implements the JSON-RPC handlers of the query service.
package depbuilder

import (
	"context"
	"fmt"
	"sync"

	"github.com/gofrs/uuid"
	tally "github.com/uber-go/tally/v4"
	"github.com/uber/depbuilder/src/depbuilder/controller/dependency"
	"github.com/uber/depbuilder/src/depbuilder/internal/jsonrpcfx"
	"go.lsp.dev/jsonrpc2"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Handler tracks every pipeline client connected over JSON-RPC.
type Handler interface {
	jsonrpcfx.ConnectionManager

	// Connections is the number of clients currently connected.
	Connections() int
}

// Params are inbound parameters to initialize a new Handler.
type Params struct {
	fx.In

	Service    dependency.Service
	JSONRPC    jsonrpcfx.JSONRPCModule
	Stats      tally.Scope
	Logger     *zap.SugaredLogger
	Shutdowner fx.Shutdowner `optional:"true"`
}

type handler struct {
	service    dependency.Service
	shutdowner fx.Shutdowner
	stats      tally.Scope
	logger     *zap.SugaredLogger

	mu      sync.Mutex
	routers map[uuid.UUID]*jsonRPCRouter
}

// New constructs a Handler and registers it as the JSON-RPC connection manager.
func New(p Params) (Handler, error) {
	h := newHandler(p.Service, p.Shutdowner, p.Stats, p.Logger)
	if err := p.JSONRPC.RegisterConnectionManager(h); err != nil {
		return nil, err
	}
	return h, nil
}

func newHandler(svc dependency.Service, shutdowner fx.Shutdowner, stats tally.Scope, logger *zap.SugaredLogger) *handler {
	if stats == nil {
		stats = tally.NoopScope
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &handler{
		service:    svc,
		shutdowner: shutdowner,
		stats:      stats.SubScope("json_rpc"),
		logger:     logger,
		routers:    make(map[uuid.UUID]*jsonRPCRouter),
	}
}

// NewConnection will store a new connection and return a router that includes its UUID.
func (h *handler) NewConnection(ctx context.Context, conn jsonrpc2.Conn) (jsonrpcfx.Router, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return nil, fmt.Errorf("error while creating new connection: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	r := &jsonRPCRouter{
		service:    h.service,
		shutdowner: h.shutdowner,
		uuid:       id,
		stats:      h.stats,
		logger:     h.logger.With("connection", id.String()),
		ctx:        ctx,
		cancel:     cancel,
	}

	h.mu.Lock()
	h.routers[id] = r
	n := len(h.routers)
	h.mu.Unlock()

	h.stats.Gauge("connections").Update(float64(n))
	return r, nil
}

// RemoveConnection cancels the queries still running for a closed connection and waits for them.
func (h *handler) RemoveConnection(ctx context.Context, id uuid.UUID) {
	h.mu.Lock()
	r, ok := h.routers[id]
	delete(h.routers, id)
	n := len(h.routers)
	h.mu.Unlock()

	if !ok {
		return
	}
	r.close()
	h.stats.Gauge("connections").Update(float64(n))
}

func (h *handler) Connections() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.routers)
}
