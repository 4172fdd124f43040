// Package engine implements the auction state machine over the ledger store.
//
// Every transition reads the clock once, serializes against other transitions
// on the same auction, computes its effect with pure domain deciders, and
// commits through a single atomic storage call. The engine never pushes funds
// outward; settlements and withdrawals are rows in the payout journal.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/gavelworks/auctionhouse/internal/platform/errors"
	"github.com/gavelworks/auctionhouse/internal/platform/id"
	"github.com/gavelworks/auctionhouse/internal/platform/pagination"
	"github.com/gavelworks/auctionhouse/internal/services/auction/domain"
	"github.com/gavelworks/auctionhouse/internal/services/auction/storage"
	"github.com/gavelworks/auctionhouse/internal/services/auction/storage/filter"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultListLimit = 10
	maxListLimit     = 50
)

// Policy configures transition authorization choices left open by the ledger
// rules.
type Policy struct {
	// OwnerOnlyEnd restricts EndAuction to the auction owner. When false,
	// any caller may finalize an auction once its end time has passed.
	OwnerOnlyEnd bool
}

// Engine runs auction transitions against a ledger store.
type Engine struct {
	store  storage.Ledger
	clock  func() time.Time
	policy Policy
	tracer trace.Tracer

	auctions   *lockTable
	identities *lockTable
}

// New creates an engine backed by the given ledger store.
func New(store storage.Ledger, policy Policy) *Engine {
	return &Engine{
		store:      store,
		clock:      time.Now,
		policy:     policy,
		tracer:     otel.Tracer("auctionhouse/engine"),
		auctions:   newLockTable(),
		identities: newLockTable(),
	}
}

// WithClock overrides the engine clock, for tests.
func (e *Engine) WithClock(clock func() time.Time) *Engine {
	if clock != nil {
		e.clock = clock
	}
	return e
}

// CreateParams carries the caller-provided fields of a new listing.
type CreateParams struct {
	Owner        string
	Title        string
	Description  string
	AssetRef     string
	Category     string
	StartTime    time.Time
	EndTime      time.Time
	MinIncrement int64
}

// AuctionView is an auction record plus its derived status.
type AuctionView struct {
	domain.Auction
	Status domain.Status
	Bids   []domain.Bid
}

// BidReceipt reports the leader state after an accepted bid.
type BidReceipt struct {
	HighestBid        int64
	HighestPayableBid int64
}

// CreateAuction validates and stores a new listing, returning its view.
func (e *Engine) CreateAuction(ctx context.Context, params CreateParams) (AuctionView, error) {
	ctx, span := e.tracer.Start(ctx, "engine.CreateAuction")
	defer span.End()

	owner := strings.TrimSpace(params.Owner)
	title := strings.TrimSpace(params.Title)
	if owner == "" {
		return AuctionView{}, apperrors.New(apperrors.CodeUnauthenticated, "auction owner is required")
	}
	if title == "" {
		return AuctionView{}, apperrors.New(apperrors.CodeAuctionTitleEmpty, "auction title is required")
	}
	if err := domain.ValidateCreate(params.StartTime, params.EndTime, params.MinIncrement); err != nil {
		return AuctionView{}, err
	}

	auctionID, err := id.NewID()
	if err != nil {
		return AuctionView{}, fmt.Errorf("assign auction id: %w", err)
	}
	now := e.clock().UTC()
	auction := domain.Auction{
		ID:           auctionID,
		Owner:        owner,
		Title:        title,
		Description:  strings.TrimSpace(params.Description),
		AssetRef:     strings.TrimSpace(params.AssetRef),
		Category:     strings.TrimSpace(params.Category),
		StartTime:    params.StartTime.UTC(),
		EndTime:      params.EndTime.UTC(),
		MinIncrement: params.MinIncrement,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	span.SetAttributes(attribute.String("auction.id", auctionID))

	if err := e.store.CreateAuction(ctx, auction); err != nil {
		return AuctionView{}, mapStorageError(err, "create auction")
	}
	return AuctionView{Auction: auction, Status: auction.StatusAt(now)}, nil
}

// PlaceBid locks the bidder's amount as the new leading escrow.
func (e *Engine) PlaceBid(ctx context.Context, auctionID, bidder string, amount int64) (BidReceipt, error) {
	ctx, span := e.tracer.Start(ctx, "engine.PlaceBid",
		trace.WithAttributes(
			attribute.String("auction.id", auctionID),
			attribute.Int64("bid.amount", amount),
		))
	defer span.End()

	bidder = strings.TrimSpace(bidder)
	if bidder == "" {
		return BidReceipt{}, apperrors.New(apperrors.CodeUnauthenticated, "bidder identity is required")
	}
	if amount <= 0 {
		return BidReceipt{}, domain.ErrBidTooLow
	}

	unlock := e.auctions.lock(auctionID)
	defer unlock()

	now := e.clock().UTC()
	auction, err := e.store.GetAuction(ctx, auctionID)
	if err != nil {
		return BidReceipt{}, mapStorageError(err, "load auction")
	}

	outcome, err := domain.DecideBid(auction, now, bidder, amount)
	if err != nil {
		return BidReceipt{}, err
	}

	bidID, err := id.NewID()
	if err != nil {
		return BidReceipt{}, fmt.Errorf("assign bid id: %w", err)
	}
	commit := storage.BidCommit{
		PrevHighestBid: auction.HighestBid,
		Outcome:        outcome,
		Bid: domain.Bid{
			ID:        bidID,
			AuctionID: auction.ID,
			Bidder:    bidder,
			Amount:    outcome.HighestBid,
			Payable:   outcome.HighestPayableBid,
			CreatedAt: now,
		},
		UpdatedAt: now,
	}
	if err := e.store.CommitBid(ctx, auction.ID, commit); err != nil {
		return BidReceipt{}, mapStorageError(err, "commit bid")
	}
	return BidReceipt{
		HighestBid:        outcome.HighestBid,
		HighestPayableBid: outcome.HighestPayableBid,
	}, nil
}

// EndAuction settles an auction whose bidding window has elapsed.
func (e *Engine) EndAuction(ctx context.Context, auctionID, caller string) error {
	ctx, span := e.tracer.Start(ctx, "engine.EndAuction",
		trace.WithAttributes(attribute.String("auction.id", auctionID)))
	defer span.End()

	caller = strings.TrimSpace(caller)
	if caller == "" {
		return apperrors.New(apperrors.CodeUnauthenticated, "caller identity is required")
	}

	unlock := e.auctions.lock(auctionID)
	defer unlock()

	now := e.clock().UTC()
	auction, err := e.store.GetAuction(ctx, auctionID)
	if err != nil {
		return mapStorageError(err, "load auction")
	}
	if e.policy.OwnerOnlyEnd && caller != auction.Owner {
		return domain.ErrForbidden
	}

	settlement, err := domain.DecideEnd(auction, now)
	if err != nil {
		return err
	}

	commit := storage.EndCommit{Refund: settlement.Refund, UpdatedAt: now}
	if settlement.OwnerPayout > 0 {
		payoutID, err := id.NewID()
		if err != nil {
			return fmt.Errorf("assign payout id: %w", err)
		}
		commit.Payout = storage.Payout{
			ID:        payoutID,
			Kind:      storage.PayoutOwnerSettlement,
			Recipient: auction.Owner,
			AuctionID: auction.ID,
			Amount:    settlement.OwnerPayout,
			CreatedAt: now,
		}
	}
	if err := e.store.CommitEnd(ctx, auction.ID, commit); err != nil {
		return mapStorageError(err, "commit end")
	}
	return nil
}

// CancelAuction withdraws a listing; only the owner may do so.
func (e *Engine) CancelAuction(ctx context.Context, auctionID, caller string) error {
	ctx, span := e.tracer.Start(ctx, "engine.CancelAuction",
		trace.WithAttributes(attribute.String("auction.id", auctionID)))
	defer span.End()

	caller = strings.TrimSpace(caller)
	if caller == "" {
		return apperrors.New(apperrors.CodeUnauthenticated, "caller identity is required")
	}

	unlock := e.auctions.lock(auctionID)
	defer unlock()

	now := e.clock().UTC()
	auction, err := e.store.GetAuction(ctx, auctionID)
	if err != nil {
		return mapStorageError(err, "load auction")
	}

	cancellation, err := domain.DecideCancel(auction, caller)
	if err != nil {
		return err
	}

	commit := storage.CancelCommit{Refund: cancellation.Refund, UpdatedAt: now}
	if err := e.store.CommitCancel(ctx, auction.ID, commit); err != nil {
		return mapStorageError(err, "commit cancel")
	}
	return nil
}

// Withdraw zeros the caller's pending returns and pays out the balance.
func (e *Engine) Withdraw(ctx context.Context, caller string) (int64, error) {
	ctx, span := e.tracer.Start(ctx, "engine.Withdraw")
	defer span.End()

	caller = strings.TrimSpace(caller)
	if caller == "" {
		return 0, apperrors.New(apperrors.CodeUnauthenticated, "caller identity is required")
	}

	unlock := e.identities.lock(caller)
	defer unlock()

	payoutID, err := id.NewID()
	if err != nil {
		return 0, fmt.Errorf("assign payout id: %w", err)
	}
	amount, err := e.store.WithdrawPendingReturn(ctx, storage.Payout{
		ID:        payoutID,
		Kind:      storage.PayoutWithdrawal,
		Recipient: caller,
		CreatedAt: e.clock().UTC(),
	})
	if err != nil {
		return 0, mapStorageError(err, "withdraw pending return")
	}
	if amount == 0 {
		return 0, domain.ErrNothingToWithdraw
	}
	span.SetAttributes(attribute.Int64("withdrawal.amount", amount))
	return amount, nil
}

// GetAuction returns one auction with derived status and bid history.
func (e *Engine) GetAuction(ctx context.Context, auctionID string) (AuctionView, error) {
	ctx, span := e.tracer.Start(ctx, "engine.GetAuction",
		trace.WithAttributes(attribute.String("auction.id", auctionID)))
	defer span.End()

	now := e.clock().UTC()
	auction, err := e.store.GetAuction(ctx, auctionID)
	if err != nil {
		return AuctionView{}, mapStorageError(err, "load auction")
	}
	bids, err := e.store.ListBids(ctx, auctionID)
	if err != nil {
		return AuctionView{}, mapStorageError(err, "load bid history")
	}
	return AuctionView{Auction: auction, Status: auction.StatusAt(now), Bids: bids}, nil
}

// ListAuctions returns a creation-ordered page of auction views.
//
// filterStr is an AIP-160 expression over owner, category, ended, cancelled.
func (e *Engine) ListAuctions(ctx context.Context, offset, limit int, filterStr string) ([]AuctionView, error) {
	ctx, span := e.tracer.Start(ctx, "engine.ListAuctions")
	defer span.End()

	cond, err := filter.ParseAuctionFilter(filterStr)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInvalidRequest, "invalid list filter", err)
	}
	query := storage.ListQuery{
		Offset: pagination.ClampOffset(offset),
		Limit:  pagination.ClampLimit(limit, pagination.LimitConfig{Default: defaultListLimit, Max: maxListLimit}),
		Filter: cond,
	}

	now := e.clock().UTC()
	auctions, err := e.store.ListAuctions(ctx, query)
	if err != nil {
		return nil, mapStorageError(err, "list auctions")
	}
	views := make([]AuctionView, 0, len(auctions))
	for _, auction := range auctions {
		views = append(views, AuctionView{Auction: auction, Status: auction.StatusAt(now)})
	}
	return views, nil
}

// PendingReturns reports the refund balance owed to an identity.
func (e *Engine) PendingReturns(ctx context.Context, identity string) (int64, error) {
	ctx, span := e.tracer.Start(ctx, "engine.PendingReturns")
	defer span.End()

	identity = strings.TrimSpace(identity)
	if identity == "" {
		return 0, apperrors.New(apperrors.CodeUnauthenticated, "identity is required")
	}
	amount, err := e.store.PendingReturn(ctx, identity)
	if err != nil {
		return 0, mapStorageError(err, "load pending return")
	}
	return amount, nil
}

// Totals reports ledger-wide value totals for conservation auditing.
func (e *Engine) Totals(ctx context.Context) (storage.Totals, error) {
	ctx, span := e.tracer.Start(ctx, "engine.Totals")
	defer span.End()

	totals, err := e.store.Totals(ctx)
	if err != nil {
		return storage.Totals{}, mapStorageError(err, "ledger totals")
	}
	return totals, nil
}

func mapStorageError(err error, op string) error {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return apperrors.Wrap(apperrors.CodeAuctionNotFound, "auction not found", err)
	default:
		return apperrors.Wrap(apperrors.CodeStorageUnavailable, op+" failed", err)
	}
}
