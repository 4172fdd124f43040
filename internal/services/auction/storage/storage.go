// Package storage defines persistence contracts for the auction ledger.
//
// The store owns durable state only: auction records, bid history, the
// pending-returns balances, and the payout journal. Business policy lives in
// the engine; every transition arrives here as a precomputed effect that must
// commit atomically or not at all.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/gavelworks/auctionhouse/internal/services/auction/domain"
	"github.com/gavelworks/auctionhouse/internal/services/auction/storage/filter"
)

var (
	// ErrNotFound indicates a requested auction record is missing.
	ErrNotFound = errors.New("record not found")
	// ErrAlreadyExists indicates a uniqueness-constrained record already exists.
	ErrAlreadyExists = errors.New("record already exists")
	// ErrStaleRecord indicates a guarded update found the record changed.
	ErrStaleRecord = errors.New("record changed concurrently")
)

// PayoutKind distinguishes journal entries for the settlement rail.
type PayoutKind string

const (
	// PayoutOwnerSettlement pays the binding price to an auction owner.
	PayoutOwnerSettlement PayoutKind = "owner_settlement"
	// PayoutWithdrawal pays out a zeroed pending-returns balance.
	PayoutWithdrawal PayoutKind = "withdrawal"
)

// Payout is one append-only journal entry of value leaving the ledger.
type Payout struct {
	ID        string
	Kind      PayoutKind
	Recipient string
	AuctionID string
	Amount    int64
	CreatedAt time.Time
}

// ListQuery bounds one auction list read.
type ListQuery struct {
	Offset int
	Limit  int
	Filter filter.Condition
}

// BidCommit is the atomic effect of an accepted bid.
type BidCommit struct {
	// PrevHighestBid guards against a lost update; the commit fails with
	// ErrStaleRecord if the stored leader amount no longer matches.
	PrevHighestBid int64
	Outcome        domain.BidOutcome
	Bid            domain.Bid
	UpdatedAt      time.Time
}

// EndCommit is the atomic effect of a settlement.
type EndCommit struct {
	Payout    Payout
	Refund    domain.Refund
	UpdatedAt time.Time
}

// CancelCommit is the atomic effect of a cancellation.
type CancelCommit struct {
	Refund    domain.Refund
	UpdatedAt time.Time
}

// Totals summarizes value held by and released from the ledger, for
// conservation auditing: Deposited = Escrowed + PendingReturns + PaidOut.
type Totals struct {
	// Deposited is the sum of every amount ever locked by an accepted bid.
	Deposited int64
	// Escrowed is the sum of leader amounts on non-terminal auctions.
	Escrowed int64
	// PendingReturns is the sum of all refund balances awaiting withdrawal.
	PendingReturns int64
	// PaidOut is the sum of the payout journal.
	PaidOut int64
}

// Ledger persists auction records and refund balances.
type Ledger interface {
	CreateAuction(ctx context.Context, auction domain.Auction) error
	GetAuction(ctx context.Context, id string) (domain.Auction, error)
	ListAuctions(ctx context.Context, query ListQuery) ([]domain.Auction, error)
	ListBids(ctx context.Context, auctionID string) ([]domain.Bid, error)

	CommitBid(ctx context.Context, auctionID string, commit BidCommit) error
	CommitEnd(ctx context.Context, auctionID string, commit EndCommit) error
	CommitCancel(ctx context.Context, auctionID string, commit CancelCommit) error

	PendingReturn(ctx context.Context, identity string) (int64, error)
	// WithdrawPendingReturn zeros the identity's balance and records the
	// payout in one transaction, returning the amount paid. A zero return
	// with nil error means there was nothing to withdraw.
	WithdrawPendingReturn(ctx context.Context, payout Payout) (int64, error)

	Totals(ctx context.Context) (Totals, error)
}
