package api_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/lvr-auction-hook/auction-engine/internal/api"
	"github.com/lvr-auction-hook/auction-engine/internal/auction"
	"github.com/lvr-auction-hook/auction-engine/internal/commitment"
	"github.com/lvr-auction-hook/auction-engine/internal/model"
	"github.com/lvr-auction-hook/auction-engine/internal/store"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	svc := auction.NewService(store.NewMemoryStore(), auction.DefaultConfig(), nil)
	r := chi.NewRouter()
	r.Route("/api/v1", api.NewHandlers(svc).Routes)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url string, body interface{}, out interface{}) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode response from %s %s: %v", method, url, err)
		}
	}
	return resp.StatusCode
}

func createAuction(t *testing.T, srv *httptest.Server, body api.CreateAuctionRequest) model.Auction {
	t.Helper()
	var a model.Auction
	if code := doJSON(t, http.MethodPost, srv.URL+"/api/v1/auctions", body, &a); code != http.StatusCreated {
		t.Fatalf("create auction: status %d", code)
	}
	return a
}

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func intPtr(n int) *int { return &n }

func decPtr(f float64) *decimal.Decimal {
	v := d(f)
	return &v
}

func TestCreateAuction_AppliesDefaults(t *testing.T) {
	srv := newTestServer(t)

	a := createAuction(t, srv, api.CreateAuctionRequest{PoolID: "pool-1"})

	if a.Duration != 12 {
		t.Errorf("expected default 12 minute window, got %d", a.Duration)
	}
	if !a.MinBid.Equal(d(0.001)) {
		t.Errorf("expected default floor 0.001, got %s", a.MinBid)
	}
	if a.Status != model.StatusActive {
		t.Errorf("expected active, got %s", a.Status)
	}
}

func TestCreateAuction_BadRequests(t *testing.T) {
	srv := newTestServer(t)

	code := doJSON(t, http.MethodPost, srv.URL+"/api/v1/auctions",
		api.CreateAuctionRequest{PoolID: "pool-1", Duration: intPtr(99)}, nil)
	if code != http.StatusBadRequest {
		t.Errorf("out-of-range duration: expected 400, got %d", code)
	}

	// Explicit zeros are validation errors, not triggers for the defaults.
	code = doJSON(t, http.MethodPost, srv.URL+"/api/v1/auctions",
		api.CreateAuctionRequest{PoolID: "pool-1", Duration: intPtr(0)}, nil)
	if code != http.StatusBadRequest {
		t.Errorf("explicit zero duration: expected 400, got %d", code)
	}
	code = doJSON(t, http.MethodPost, srv.URL+"/api/v1/auctions",
		api.CreateAuctionRequest{PoolID: "pool-1", MinBid: decPtr(0)}, nil)
	if code != http.StatusBadRequest {
		t.Errorf("explicit zero min_bid: expected 400, got %d", code)
	}

	resp, err := http.Post(srv.URL+"/api/v1/auctions", "application/json", bytes.NewBufferString("{not json"))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("malformed body: expected 400, got %d", resp.StatusCode)
	}
}

func TestGetAuction_NotFound(t *testing.T) {
	srv := newTestServer(t)

	code := doJSON(t, http.MethodGet, srv.URL+"/api/v1/auctions/missing", nil, nil)
	if code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", code)
	}
}

func TestBidRevealCompleteFlow(t *testing.T) {
	srv := newTestServer(t)
	a := createAuction(t, srv, api.CreateAuctionRequest{PoolID: "pool-1"})
	base := fmt.Sprintf("%s/api/v1/auctions/%s", srv.URL, a.ID)

	// Sealed bids carry only the commitment.
	for _, b := range []struct {
		bidder string
		amount float64
		nonce  string
	}{
		{"alice", 0.5, "n1"},
		{"bob", 0.9, "n2"},
	} {
		var bid model.Bid
		code := doJSON(t, http.MethodPost, base+"/bids", api.BidRequest{
			Bidder:     b.bidder,
			Commitment: commitment.Compute(d(b.amount), b.nonce),
		}, &bid)
		if code != http.StatusCreated {
			t.Fatalf("submit bid for %s: status %d", b.bidder, code)
		}
		if bid.Revealed || !bid.Amount.IsZero() {
			t.Errorf("bid must stay sealed on submission: %+v", bid)
		}
	}

	var bids []model.Bid
	if code := doJSON(t, http.MethodGet, base+"/bids", nil, &bids); code != http.StatusOK {
		t.Fatalf("list bids: status %d", code)
	}
	if len(bids) != 2 {
		t.Fatalf("expected 2 bids, got %d", len(bids))
	}

	var revealResp map[string]bool
	code := doJSON(t, http.MethodPost, base+"/reveal",
		api.RevealRequest{Bidder: "alice", Amount: d(0.5), Nonce: "n1"}, &revealResp)
	if code != http.StatusOK || !revealResp["revealed"] {
		t.Fatalf("alice reveal: status %d, body %v", code, revealResp)
	}
	code = doJSON(t, http.MethodPost, base+"/reveal",
		api.RevealRequest{Bidder: "bob", Amount: d(0.9), Nonce: "n2"}, &revealResp)
	if code != http.StatusOK || !revealResp["revealed"] {
		t.Fatalf("bob reveal: status %d, body %v", code, revealResp)
	}

	var completeResp map[string]bool
	code = doJSON(t, http.MethodPost, base+"/complete",
		api.CompleteRequest{Winner: "bob", WinningBid: d(0.9)}, &completeResp)
	if code != http.StatusOK || !completeResp["completed"] {
		t.Fatalf("complete: status %d, body %v", code, completeResp)
	}

	var settled model.Auction
	if code := doJSON(t, http.MethodGet, base, nil, &settled); code != http.StatusOK {
		t.Fatalf("get auction: status %d", code)
	}
	if settled.Status != model.StatusCompleted || settled.Winner != "bob" || !settled.WinningBid.Equal(d(0.9)) {
		t.Errorf("unexpected settlement: %+v", settled)
	}
}

func TestRevealMismatchIsBadRequest(t *testing.T) {
	srv := newTestServer(t)
	a := createAuction(t, srv, api.CreateAuctionRequest{PoolID: "pool-1"})
	base := fmt.Sprintf("%s/api/v1/auctions/%s", srv.URL, a.ID)

	doJSON(t, http.MethodPost, base+"/bids", api.BidRequest{
		Bidder:     "alice",
		Commitment: commitment.Compute(d(0.5), "n1"),
	}, nil)

	code := doJSON(t, http.MethodPost, base+"/reveal",
		api.RevealRequest{Bidder: "alice", Amount: d(0.5), Nonce: "wrong"}, nil)
	if code != http.StatusBadRequest {
		t.Errorf("mismatched opening: expected 400, got %d", code)
	}
}

func TestCompleteMismatchConflicts(t *testing.T) {
	srv := newTestServer(t)
	a := createAuction(t, srv, api.CreateAuctionRequest{PoolID: "pool-1"})
	base := fmt.Sprintf("%s/api/v1/auctions/%s", srv.URL, a.ID)

	doJSON(t, http.MethodPost, base+"/bids", api.BidRequest{
		Bidder:     "alice",
		Commitment: commitment.Compute(d(0.5), "n1"),
	}, nil)
	doJSON(t, http.MethodPost, base+"/reveal",
		api.RevealRequest{Bidder: "alice", Amount: d(0.5), Nonce: "n1"}, nil)

	code := doJSON(t, http.MethodPost, base+"/complete",
		api.CompleteRequest{Winner: "mallory", WinningBid: d(0.5)}, nil)
	if code != http.StatusConflict {
		t.Errorf("forged claim: expected 409, got %d", code)
	}
}

func TestCancelAuction(t *testing.T) {
	srv := newTestServer(t)
	a := createAuction(t, srv, api.CreateAuctionRequest{PoolID: "pool-1"})
	base := fmt.Sprintf("%s/api/v1/auctions/%s", srv.URL, a.ID)

	var cancelled model.Auction
	if code := doJSON(t, http.MethodPost, base+"/cancel", nil, &cancelled); code != http.StatusOK {
		t.Fatalf("cancel: status %d", code)
	}
	if cancelled.Status != model.StatusCancelled {
		t.Errorf("expected cancelled, got %s", cancelled.Status)
	}

	code := doJSON(t, http.MethodPost, base+"/bids", api.BidRequest{
		Bidder:     "alice",
		Commitment: commitment.Compute(d(0.5), "n1"),
	}, nil)
	if code != http.StatusConflict {
		t.Errorf("bid on cancelled auction: expected 409, got %d", code)
	}
}

func TestListEndpoints(t *testing.T) {
	srv := newTestServer(t)
	createAuction(t, srv, api.CreateAuctionRequest{PoolID: "pool-1"})
	createAuction(t, srv, api.CreateAuctionRequest{PoolID: "pool-2"})
	createAuction(t, srv, api.CreateAuctionRequest{PoolID: "pool-1"})

	var active []model.Auction
	if code := doJSON(t, http.MethodGet, srv.URL+"/api/v1/auctions/active", nil, &active); code != http.StatusOK {
		t.Fatalf("active: status %d", code)
	}
	if len(active) != 3 {
		t.Errorf("expected 3 active auctions, got %d", len(active))
	}

	var pool []model.Auction
	if code := doJSON(t, http.MethodGet, srv.URL+"/api/v1/auctions/pool/pool-1", nil, &pool); code != http.StatusOK {
		t.Fatalf("pool: status %d", code)
	}
	if len(pool) != 2 {
		t.Errorf("expected 2 pool-1 auctions, got %d", len(pool))
	}

	var filtered []model.Auction
	if code := doJSON(t, http.MethodGet, srv.URL+"/api/v1/auctions?status=active&limit=2", nil, &filtered); code != http.StatusOK {
		t.Fatalf("filtered list: status %d", code)
	}
	if len(filtered) != 2 {
		t.Errorf("limit not honored, got %d auctions", len(filtered))
	}

	if code := doJSON(t, http.MethodGet, srv.URL+"/api/v1/auctions?status=bogus", nil, nil); code != http.StatusBadRequest {
		t.Errorf("unknown status filter: expected 400, got %d", code)
	}

	var stats model.AuctionStats
	if code := doJSON(t, http.MethodGet, srv.URL+"/api/v1/auctions/stats/summary", nil, &stats); code != http.StatusOK {
		t.Fatalf("stats: status %d", code)
	}
	if stats.TotalAuctions != 3 || stats.CountByStatus[model.StatusActive] != 3 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}
