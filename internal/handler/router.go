package handler

import (
	"net/http"

	"go.uber.org/zap"

	"virtnet/internal/metrics"
	"virtnet/internal/service"
)

// Options collects what the router serves besides the network API
type Options struct {
	Logger      *zap.Logger
	Metrics     *metrics.Registry
	Events      http.Handler
	CORSOrigins []string
}

// NewRouter registers every route on a new mux and wraps it in the
// middleware chain.
func NewRouter(svc *service.NetworkService, opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	h := NewNetworkHandler(svc, logger)
	mux := http.NewServeMux()

	// Virtual network
	mux.HandleFunc("GET /api/virtualNetwork", h.GetVirtualNetwork)
	mux.HandleFunc("GET /api/fetch-initial-data", h.FetchInitialData)
	mux.HandleFunc("GET /api/fetch-data", h.FetchInitialData)
	mux.HandleFunc("GET /api/fetch-cdir-data", h.FetchInitialData)
	mux.HandleFunc("GET /api/expand/{nodeId}/{nodeType}", h.Expand)
	mux.HandleFunc("POST /api/collapse", h.Collapse)
	mux.HandleFunc("GET /api/expansions", h.ListExpansions)

	// Treemap
	mux.HandleFunc("POST /api/build-cidr-treemap", h.BuildTreemap)

	// Export
	mux.HandleFunc("GET /api/export/{format}", h.Export)

	if opts.Events != nil {
		mux.Handle("GET /events", opts.Events)
	}
	mux.HandleFunc("GET /healthz", h.Health)

	var recorder MetricsRecorder
	if opts.Metrics != nil {
		mux.Handle("GET /metrics", opts.Metrics.Handler())
		recorder = opts.Metrics
	}

	return Chain(mux,
		Recover(logger),
		RequestID(),
		Logger(logger.Named("http")),
		CORS(opts.CORSOrigins),
		Metrics(recorder),
	)
}
