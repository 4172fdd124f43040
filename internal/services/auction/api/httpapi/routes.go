// Package httpapi exposes the auction engine as a JSON HTTP API.
//
// Mutating routes authenticate the caller with an ed25519-signed bearer
// grant; reads are anonymous. Errors are returned as
// {"error": {"code", "message"}} with the code's HTTP status.
package httpapi

import (
	"net/http"

	"github.com/gavelworks/auctionhouse/internal/services/auction/engine"
)

// NewHandler builds the route table for the auction API.
func NewHandler(e *engine.Engine, grants GrantConfig) http.Handler {
	mux := http.NewServeMux()
	registerRoutes(mux, handlers{engine: e, grants: grants})
	return mux
}

func registerRoutes(mux *http.ServeMux, h handlers) {
	if mux == nil {
		return
	}
	mux.HandleFunc(http.MethodPost+" /v1/auctions", h.handleCreateAuction)
	mux.HandleFunc(http.MethodGet+" /v1/auctions", h.handleListAuctions)
	mux.HandleFunc(http.MethodGet+" /v1/auctions/{auctionID}", h.handleGetAuction)
	mux.HandleFunc(http.MethodPost+" /v1/auctions/{auctionID}/bids", h.handlePlaceBid)
	mux.HandleFunc(http.MethodPost+" /v1/auctions/{auctionID}/end", h.handleEndAuction)
	mux.HandleFunc(http.MethodPost+" /v1/auctions/{auctionID}/cancel", h.handleCancelAuction)
	mux.HandleFunc(http.MethodPost+" /v1/withdrawals", h.handleWithdraw)
	mux.HandleFunc(http.MethodGet+" /v1/pending-returns/{identity}", h.handlePendingReturns)
}
