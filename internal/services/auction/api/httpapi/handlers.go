package httpapi

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/gavelworks/auctionhouse/internal/platform/errors"
	"github.com/gavelworks/auctionhouse/internal/services/auction/engine"
)

type handlers struct {
	engine *engine.Engine
	grants GrantConfig
}

type createAuctionRequest struct {
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	AssetRef     string    `json:"asset_ref"`
	Category     string    `json:"category"`
	StartTime    time.Time `json:"start_time"`
	EndTime      time.Time `json:"end_time"`
	MinIncrement int64     `json:"min_increment"`
}

type placeBidRequest struct {
	Amount int64 `json:"amount"`
}

type auctionResponse struct {
	ID                string        `json:"id"`
	Seq               int64         `json:"seq"`
	Owner             string        `json:"owner"`
	Title             string        `json:"title"`
	Description       string        `json:"description,omitempty"`
	AssetRef          string        `json:"asset_ref,omitempty"`
	Category          string        `json:"category,omitempty"`
	StartTime         time.Time     `json:"start_time"`
	EndTime           time.Time     `json:"end_time"`
	MinIncrement      int64         `json:"min_increment"`
	HighestBid        int64         `json:"highest_bid"`
	HighestBidder     string        `json:"highest_bidder,omitempty"`
	HighestPayableBid int64         `json:"highest_payable_bid"`
	Status            string        `json:"status"`
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`
	Bids              []bidResponse `json:"bids,omitempty"`
}

type bidResponse struct {
	ID        string    `json:"id"`
	Bidder    string    `json:"bidder"`
	Amount    int64     `json:"amount"`
	Payable   int64     `json:"payable"`
	CreatedAt time.Time `json:"created_at"`
}

type bidReceiptResponse struct {
	AuctionID         string `json:"auction_id"`
	HighestBid        int64  `json:"highest_bid"`
	HighestPayableBid int64  `json:"highest_payable_bid"`
}

type withdrawalResponse struct {
	Identity string `json:"identity"`
	Amount   int64  `json:"amount"`
}

type pendingReturnResponse struct {
	Identity string `json:"identity"`
	Amount   int64  `json:"amount"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func toAuctionResponse(view engine.AuctionView) auctionResponse {
	resp := auctionResponse{
		ID:                view.ID,
		Seq:               view.Seq,
		Owner:             view.Owner,
		Title:             view.Title,
		Description:       view.Description,
		AssetRef:          view.AssetRef,
		Category:          view.Category,
		StartTime:         view.StartTime,
		EndTime:           view.EndTime,
		MinIncrement:      view.MinIncrement,
		HighestBid:        view.HighestBid,
		HighestBidder:     view.HighestBidder,
		HighestPayableBid: view.HighestPayableBid,
		Status:            string(view.Status),
		CreatedAt:         view.CreatedAt,
		UpdatedAt:         view.UpdatedAt,
	}
	for _, bid := range view.Bids {
		resp.Bids = append(resp.Bids, bidResponse{
			ID:        bid.ID,
			Bidder:    bid.Bidder,
			Amount:    bid.Amount,
			Payable:   bid.Payable,
			CreatedAt: bid.CreatedAt,
		})
	}
	return resp
}

func (h handlers) handleCreateAuction(w http.ResponseWriter, r *http.Request) {
	owner, err := bearerIdentity(r, h.grants)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req createAuctionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	view, err := h.engine.CreateAuction(r.Context(), engine.CreateParams{
		Owner:        owner,
		Title:        req.Title,
		Description:  req.Description,
		AssetRef:     req.AssetRef,
		Category:     req.Category,
		StartTime:    req.StartTime,
		EndTime:      req.EndTime,
		MinIncrement: req.MinIncrement,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAuctionResponse(view))
}

func (h handlers) handleListAuctions(w http.ResponseWriter, r *http.Request) {
	offset, err := queryInt(r, "offset")
	if err != nil {
		writeError(w, r, err)
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, r, err)
		return
	}
	views, err := h.engine.ListAuctions(r.Context(), offset, limit, r.URL.Query().Get("filter"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	items := make([]auctionResponse, 0, len(views))
	for _, view := range views {
		items = append(items, toAuctionResponse(view))
	}
	writeJSON(w, http.StatusOK, map[string]any{"auctions": items})
}

func (h handlers) handleGetAuction(w http.ResponseWriter, r *http.Request) {
	view, err := h.engine.GetAuction(r.Context(), r.PathValue("auctionID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAuctionResponse(view))
}

func (h handlers) handlePlaceBid(w http.ResponseWriter, r *http.Request) {
	bidder, err := bearerIdentity(r, h.grants)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req placeBidRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	auctionID := r.PathValue("auctionID")
	receipt, err := h.engine.PlaceBid(r.Context(), auctionID, bidder, req.Amount)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, bidReceiptResponse{
		AuctionID:         auctionID,
		HighestBid:        receipt.HighestBid,
		HighestPayableBid: receipt.HighestPayableBid,
	})
}

func (h handlers) handleEndAuction(w http.ResponseWriter, r *http.Request) {
	caller, err := bearerIdentity(r, h.grants)
	if err != nil {
		writeError(w, r, err)
		return
	}
	auctionID := r.PathValue("auctionID")
	if err := h.engine.EndAuction(r.Context(), auctionID, caller); err != nil {
		writeError(w, r, err)
		return
	}
	view, err := h.engine.GetAuction(r.Context(), auctionID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAuctionResponse(view))
}

func (h handlers) handleCancelAuction(w http.ResponseWriter, r *http.Request) {
	caller, err := bearerIdentity(r, h.grants)
	if err != nil {
		writeError(w, r, err)
		return
	}
	auctionID := r.PathValue("auctionID")
	if err := h.engine.CancelAuction(r.Context(), auctionID, caller); err != nil {
		writeError(w, r, err)
		return
	}
	view, err := h.engine.GetAuction(r.Context(), auctionID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAuctionResponse(view))
}

func (h handlers) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	caller, err := bearerIdentity(r, h.grants)
	if err != nil {
		writeError(w, r, err)
		return
	}
	amount, err := h.engine.Withdraw(r.Context(), caller)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, withdrawalResponse{Identity: caller, Amount: amount})
}

func (h handlers) handlePendingReturns(w http.ResponseWriter, r *http.Request) {
	identity := r.PathValue("identity")
	amount, err := h.engine.PendingReturns(r.Context(), identity)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pendingReturnResponse{Identity: identity, Amount: amount})
}

func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return apperrors.Wrap(apperrors.CodeInvalidRequest, "invalid request body", err)
	}
	return nil
}

func queryInt(r *http.Request, name string) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return 0, apperrors.New(apperrors.CodeInvalidRequest, "invalid "+name+" parameter")
	}
	return value, nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := apperrors.GetCode(err)
	status := code.HTTPStatus()
	if status >= http.StatusInternalServerError {
		log.Printf("%s %s failed: %v", r.Method, r.URL.Path, err)
	}
	writeJSON(w, status, errorResponse{Error: errorBody{
		Code:    string(code),
		Message: publicMessage(err, code),
	}})
}

// publicMessage hides wrapped internals for unexpected failures.
func publicMessage(err error, code apperrors.Code) string {
	switch code {
	case apperrors.CodeUnknown, apperrors.CodeStorageUnavailable:
		return "internal error"
	}
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "internal error"
}
