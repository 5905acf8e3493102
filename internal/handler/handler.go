// Package handler exposes the purchase service over HTTP.
package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/clinic-purchase/internal/domain/purchase"
	"github.com/xenking/clinic-purchase/internal/wire"
)

// maxBodySize bounds request bodies.
const maxBodySize = 1 << 20

// PurchaseService is the subset of *purchase.Service used by the handler.
type PurchaseService interface {
	Create(ctx context.Context, order *purchase.OrderInput, items []purchase.ItemInput) (string, error)
	Read(ctx context.Context, id string) (*purchase.Detail, error)
	Update(ctx context.Context, id string, patch purchase.Patch) (*purchase.Detail, error)
	ListSummaries(ctx context.Context) ([]purchase.Summary, error)
	ListDetailed(ctx context.Context) ([]purchase.DetailSummary, error)
}

var _ PurchaseService = (*purchase.Service)(nil)

// Handler serves the /purchase routes.
type Handler struct {
	purchases PurchaseService
}

// NewHandler constructs a Handler backed by the purchase service.
func NewHandler(purchases PurchaseService) *Handler {
	return &Handler{purchases: purchases}
}

// Register attaches the purchase routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /purchase", h.Create)
	mux.HandleFunc("GET /purchase", h.List)
	mux.HandleFunc("GET /purchase/{uuid}", h.Read)
	mux.HandleFunc("PUT /purchase/{uuid}", h.Update)
}

// Create handles POST /purchase.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	req, err := wire.DecodeCreateRequest(body)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	id, err := h.purchases.Create(r.Context(), req.Order, req.Items)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	wire.EncodeCreated(e, id)
	writeJSON(w, r, http.StatusCreated, e)
}

// List handles GET /purchase. The complete query parameter selects the
// projection.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	projection, err := purchase.ParseProjection(r.URL.Query().Get("complete"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	e := jx.GetEncoder()
	defer jx.PutEncoder(e)

	switch projection {
	case purchase.ProjectionComplete:
		rows, err := h.purchases.ListDetailed(r.Context())
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		wire.EncodeDetailSummaries(e, rows)
	default:
		rows, err := h.purchases.ListSummaries(r.Context())
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		wire.EncodeSummaries(e, rows)
	}
	writeJSON(w, r, http.StatusOK, e)
}

// Read handles GET /purchase/{uuid}.
func (h *Handler) Read(w http.ResponseWriter, r *http.Request) {
	detail, err := h.purchases.Read(r.Context(), r.PathValue("uuid"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeDetail(w, r, detail)
}

// Update handles PUT /purchase/{uuid}.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	patch, err := wire.DecodePatch(body)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	detail, err := h.purchases.Update(r.Context(), r.PathValue("uuid"), patch)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeDetail(w, r, detail)
}

func (h *Handler) writeDetail(w http.ResponseWriter, r *http.Request, d *purchase.Detail) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	wire.EncodeDetail(e, d)
	writeJSON(w, r, http.StatusOK, e)
}

// writeError maps domain errors to API error bodies. Anything that is not a
// validation or lookup failure is logged and reported as an internal error.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, reason := http.StatusInternalServerError, wire.CodeInternal, "internal server error"

	var (
		vErr  *purchase.ValidationError
		nfErr *purchase.NotFoundError
		mbErr *http.MaxBytesError
	)
	switch {
	case errors.As(err, &vErr):
		status, code, reason = http.StatusBadRequest, wire.CodeMissingInfo, vErr.Error()
	case errors.As(err, &nfErr):
		status, code, reason = http.StatusNotFound, wire.CodeNotFound, nfErr.Error()
	case errors.As(err, &mbErr):
		status, code, reason = http.StatusRequestEntityTooLarge, wire.CodeMissingInfo, "request body too large"
	default:
		zctx.From(r.Context()).Error("Request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}

	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	wire.EncodeError(e, code, reason)
	writeJSON(w, r, status, e)
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		return nil, errors.Wrap(err, "read body")
	}
	return body, nil
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, e *jx.Encoder) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(e.Bytes()); err != nil {
		zctx.From(r.Context()).Debug("Write response", zap.Error(err))
	}
}
