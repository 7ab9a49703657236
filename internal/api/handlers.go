// Package api provides the HTTP boundary for the auction engine: request
// decoding, error-kind to status-code mapping, and the WebSocket hub pushing
// engine events to connected listeners. The engine itself never sees HTTP.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/lvr-auction-hook/auction-engine/internal/auction"
	"github.com/lvr-auction-hook/auction-engine/internal/model"
	"github.com/lvr-auction-hook/auction-engine/internal/store"
)

// Handlers exposes the engine's commands and queries over HTTP.
type Handlers struct {
	svc *auction.Service
}

// NewHandlers creates the HTTP handler set over the engine.
func NewHandlers(svc *auction.Service) *Handlers {
	return &Handlers{svc: svc}
}

// Routes mounts the auction API onto r. Callers mount this under their
// version prefix, e.g. /api/v1.
func (h *Handlers) Routes(r chi.Router) {
	r.Route("/auctions", func(r chi.Router) {
		r.Get("/", h.ListAuctions)
		r.Post("/", h.CreateAuction)
		r.Get("/active", h.ListActiveAuctions)
		r.Get("/stats/summary", h.GetStats)
		r.Get("/pool/{poolID}", h.ListPoolAuctions)
		r.Get("/{auctionID}", h.GetAuction)
		r.Post("/{auctionID}/bids", h.SubmitBid)
		r.Get("/{auctionID}/bids", h.ListBids)
		r.Post("/{auctionID}/reveal", h.RevealBid)
		r.Post("/{auctionID}/complete", h.CompleteAuction)
		r.Post("/{auctionID}/cancel", h.CancelAuction)
	})
}

// --- Request types ---

// CreateAuctionRequest is the JSON body for auction creation. Duration and
// min_bid are pointers so an absent field falls back to the defaults
// (12 minute window, 0.001 floor bid) while an explicit zero reaches the
// engine's validation and is rejected.
type CreateAuctionRequest struct {
	PoolID      string           `json:"pool_id"`
	Duration    *int             `json:"duration"`
	MinBid      *decimal.Decimal `json:"min_bid"`
	BlockNumber uint64           `json:"block_number"`
}

// BidRequest is the JSON body for sealed bid submission. Amount is part of
// the wire schema for client symmetry but is never trusted or stored; only
// the commitment binds the bidder.
type BidRequest struct {
	Bidder     string          `json:"bidder"`
	Amount     decimal.Decimal `json:"amount"`
	Commitment string          `json:"commitment"`
}

// RevealRequest is the JSON body opening a commitment.
type RevealRequest struct {
	Bidder string          `json:"bidder"`
	Amount decimal.Decimal `json:"amount"`
	Nonce  string          `json:"nonce"`
}

// CompleteRequest is the JSON body for explicit settlement. The claimed
// winner is advisory; the engine recomputes and cross-validates.
type CompleteRequest struct {
	Winner     string          `json:"winner"`
	WinningBid decimal.Decimal `json:"winning_bid"`
}

// --- Handlers ---

// CreateAuction handles POST /auctions
func (h *Handlers) CreateAuction(w http.ResponseWriter, r *http.Request) {
	var req CreateAuctionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	duration := auction.DefaultDuration
	if req.Duration != nil {
		duration = *req.Duration
	}
	minBid := decimal.NewFromFloat(0.001)
	if req.MinBid != nil {
		minBid = *req.MinBid
	}

	a, err := h.svc.CreateAuction(r.Context(), req.PoolID, duration, minBid, req.BlockNumber)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

// ListAuctions handles GET /auctions?status=&limit=&offset=
func (h *Handlers) ListAuctions(w http.ResponseWriter, r *http.Request) {
	var status *model.AuctionStatus
	if s := r.URL.Query().Get("status"); s != "" {
		st := model.AuctionStatus(s)
		status = &st
	}
	limit := queryInt(r, "limit", 0)
	offset := queryInt(r, "offset", 0)

	auctions, err := h.svc.GetAuctions(r.Context(), status, limit, offset)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, auctions)
}

// ListActiveAuctions handles GET /auctions/active
func (h *Handlers) ListActiveAuctions(w http.ResponseWriter, r *http.Request) {
	auctions, err := h.svc.GetActiveAuctions(r.Context())
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, auctions)
}

// GetAuction handles GET /auctions/{auctionID}
func (h *Handlers) GetAuction(w http.ResponseWriter, r *http.Request) {
	a, err := h.svc.GetAuction(r.Context(), chi.URLParam(r, "auctionID"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// ListPoolAuctions handles GET /auctions/pool/{poolID}?limit=
func (h *Handlers) ListPoolAuctions(w http.ResponseWriter, r *http.Request) {
	auctions, err := h.svc.GetPoolAuctions(r.Context(), chi.URLParam(r, "poolID"), queryInt(r, "limit", 0))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, auctions)
}

// SubmitBid handles POST /auctions/{auctionID}/bids
func (h *Handlers) SubmitBid(w http.ResponseWriter, r *http.Request) {
	var req BidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	bid, err := h.svc.SubmitBid(r.Context(), chi.URLParam(r, "auctionID"), req.Bidder, req.Commitment)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, bid)
}

// ListBids handles GET /auctions/{auctionID}/bids
func (h *Handlers) ListBids(w http.ResponseWriter, r *http.Request) {
	bids, err := h.svc.GetAuctionBids(r.Context(), chi.URLParam(r, "auctionID"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bids)
}

// RevealBid handles POST /auctions/{auctionID}/reveal
func (h *Handlers) RevealBid(w http.ResponseWriter, r *http.Request) {
	var req RevealRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	ok, err := h.svc.RevealBid(r.Context(), chi.URLParam(r, "auctionID"), req.Bidder, req.Amount, req.Nonce)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"revealed": ok})
}

// CompleteAuction handles POST /auctions/{auctionID}/complete
func (h *Handlers) CompleteAuction(w http.ResponseWriter, r *http.Request) {
	var req CompleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	ok, err := h.svc.CompleteAuction(r.Context(), chi.URLParam(r, "auctionID"), req.Winner, req.WinningBid)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"completed": ok})
}

// CancelAuction handles POST /auctions/{auctionID}/cancel
func (h *Handlers) CancelAuction(w http.ResponseWriter, r *http.Request) {
	a, err := h.svc.CancelAuction(r.Context(), chi.URLParam(r, "auctionID"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// GetStats handles GET /auctions/stats/summary
func (h *Handlers) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Stats(r.Context())
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// --- Error mapping ---

// writeEngineError maps the engine's error kinds to HTTP status codes.
// The engine never depends on these representations.
func writeEngineError(w http.ResponseWriter, err error) {
	writeError(w, err.Error(), statusForError(err))
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, auction.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, auction.ErrWinnerMismatch),
		errors.Is(err, store.ErrInvalidState),
		errors.Is(err, store.ErrConflict):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
