package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"virtnet/internal/codec"
	"virtnet/internal/domain"
	"virtnet/internal/service"
	"virtnet/internal/treemap"
)

// maxBodyBytes bounds request bodies. Treemap dictionaries are the largest.
const maxBodyBytes = 16 << 20

var validate = validator.New()

// NetworkHandler serves the virtual network API
type NetworkHandler struct {
	svc    *service.NetworkService
	logger *zap.Logger
}

// NewNetworkHandler creates a new network handler
func NewNetworkHandler(svc *service.NetworkService, logger *zap.Logger) *NetworkHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NetworkHandler{svc: svc, logger: logger.Named("handler")}
}

// GetVirtualNetwork returns every element of the mirror
func (h *NetworkHandler) GetVirtualNetwork(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.svc.Elements(), http.StatusOK)
}

// FetchInitialData populates the mirror from the neighbor source
func (h *NetworkHandler) FetchInitialData(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Populate(r.Context())
	if err != nil {
		h.fail(w, r, "Failed to fetch initial data", err)
		return
	}
	writeJSON(w, MessageResponse{
		Message: fmt.Sprintf("Initial data fetched: %d nodes and %d edges added", res.Nodes, res.Edges),
		Result:  res,
	}, http.StatusOK)
}

// Expand adds the neighborhood of a node
func (h *NetworkHandler) Expand(w http.ResponseWriter, r *http.Request) {
	kind, err := domain.ParseNodeKind(r.PathValue("nodeType"))
	if err != nil {
		h.fail(w, r, "Invalid node type", err)
		return
	}
	res, err := h.svc.Expand(r.Context(), r.PathValue("nodeId"), kind)
	if err != nil {
		h.fail(w, r, "Failed to expand node", err)
		return
	}
	writeJSON(w, MessageResponse{Message: res.Message(), Result: res}, http.StatusOK)
}

// collapseRequest names the seed to collapse
type collapseRequest struct {
	NodeID domain.FlexID `json:"nodeId" validate:"required"`
}

// CollapseResponse is the body of a successful collapse
type CollapseResponse struct {
	Message   string           `json:"message"`
	Collapsed []string         `json:"collapsed"`
	Removed   []domain.Element `json:"removed"`
}

// Collapse removes an expansion. The body is either {"nodeId": ...} or the
// array of element descriptors the client removed from its view.
func (h *NetworkHandler) Collapse(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, "Invalid request body", err.Error(), http.StatusBadRequest)
		return
	}
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		writeError(w, "Invalid request body", "body is empty", http.StatusBadRequest)
		return
	}

	var res *service.CollapseResult
	if body[0] == '[' {
		var elems []domain.Element
		if err := json.Unmarshal(body, &elems); err != nil {
			h.fail(w, r, "Invalid collapse descriptors", badRequest(err))
			return
		}
		res, err = h.svc.CollapseElements(r.Context(), elems)
	} else {
		var req collapseRequest
		if err := json.Unmarshal(body, &req); err != nil {
			h.fail(w, r, "Invalid request body", badRequest(err))
			return
		}
		if err := validate.Struct(req); err != nil {
			h.fail(w, r, "Invalid request body", err)
			return
		}
		res, err = h.svc.Collapse(r.Context(), string(req.NodeID))
	}
	if err != nil {
		h.fail(w, r, "Failed to collapse", err)
		return
	}

	resp := CollapseResponse{Message: res.Message(), Collapsed: res.Collapsed, Removed: res.Removed}
	if resp.Collapsed == nil {
		resp.Collapsed = []string{}
	}
	if resp.Removed == nil {
		resp.Removed = []domain.Element{}
	}
	writeJSON(w, resp, http.StatusOK)
}

// BuildTreemap runs the treemap builder on the posted dictionary
func (h *NetworkHandler) BuildTreemap(w http.ResponseWriter, r *http.Request) {
	var req treemap.Request
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		writeError(w, "Invalid request body", err.Error(), http.StatusBadRequest)
		return
	}
	res, err := req.Build()
	if err != nil {
		h.fail(w, r, "Failed to build treemap", err)
		return
	}
	writeJSON(w, res, http.StatusOK)
}

// ListExpansions returns the outstanding expansions, oldest first
func (h *NetworkHandler) ListExpansions(w http.ResponseWriter, r *http.Request) {
	records := h.svc.Expansions()
	if records == nil {
		records = []domain.ExpansionRecord{}
	}
	writeJSON(w, records, http.StatusOK)
}

// Export downloads the snapshot in the format named by the path
func (h *NetworkHandler) Export(w http.ResponseWriter, r *http.Request) {
	c, err := codec.ForFormat(r.PathValue("format"))
	if err != nil {
		writeError(w, "Unsupported export format", err.Error(), http.StatusBadRequest)
		return
	}

	snap := h.svc.Snapshot()
	var buf bytes.Buffer
	if err := c.Export(&snap, &buf); err != nil {
		h.fail(w, r, "Failed to export", err)
		return
	}

	w.Header().Set("Content-Type", c.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=virtualNetwork.%s", c.Format()))
	if _, err := buf.WriteTo(w); err != nil {
		h.logger.Warn("failed to write export", zap.Error(err))
	}
}

// Health reports liveness and the mirror size
func (h *NetworkHandler) Health(w http.ResponseWriter, r *http.Request) {
	nodes, edges, seeds := h.svc.Stats()
	writeJSON(w, map[string]any{
		"status":     "ok",
		"nodes":      nodes,
		"edges":      edges,
		"expansions": seeds,
	}, http.StatusOK)
}

func (h *NetworkHandler) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(msg,
			zap.String("path", r.URL.Path),
			zap.String("request_id", RequestIDFromContext(r.Context())),
			zap.Error(err))
	} else {
		h.logger.Debug(msg, zap.String("path", r.URL.Path), zap.Error(err))
	}
	writeError(w, msg, err.Error(), status)
}
