// Package domain holds the pure auction state machine: record types, derived
// status, and transition deciders. No storage or transport concerns live here.
package domain

import "time"

// Status is the derived lifecycle state of an auction. It is computed from
// stored flags and wall-clock time, never persisted.
type Status string

const (
	// StatusScheduled means bidding has not opened yet.
	StatusScheduled Status = "SCHEDULED"
	// StatusOpen means the auction accepts bids.
	StatusOpen Status = "OPEN"
	// StatusEnded means the auction settled or its window elapsed.
	StatusEnded Status = "ENDED"
	// StatusCancelled means the owner withdrew the listing.
	StatusCancelled Status = "CANCELLED"
)

// Auction stores one listed item and its bidding state.
//
// Monetary amounts are integers in the smallest indivisible unit of the
// settlement currency. HighestPayableBid is the price the current leader is
// charged if the auction ends now; it never exceeds HighestBid.
type Auction struct {
	ID           string
	Seq          int64
	Owner        string
	Title        string
	Description  string
	AssetRef     string
	Category     string
	StartTime    time.Time
	EndTime      time.Time
	MinIncrement int64

	HighestBid        int64
	HighestBidder     string
	HighestPayableBid int64

	Ended     bool
	Cancelled bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// StatusAt derives the auction status at the given instant.
func (a Auction) StatusAt(now time.Time) Status {
	switch {
	case a.Cancelled:
		return StatusCancelled
	case a.Ended || !now.Before(a.EndTime):
		return StatusEnded
	case !now.Before(a.StartTime):
		return StatusOpen
	default:
		return StatusScheduled
	}
}

// HasBid reports whether any bid has ever been placed.
func (a Auction) HasBid() bool {
	return a.HighestBidder != ""
}

// Bid records one accepted bid for an auction's history.
type Bid struct {
	ID        string
	AuctionID string
	Bidder    string
	Amount    int64
	Payable   int64
	CreatedAt time.Time
}

// Refund is a pending-returns credit owed to an identity.
type Refund struct {
	Identity string
	Amount   int64
}

// BidOutcome is the effect of an accepted bid.
type BidOutcome struct {
	HighestBid        int64
	HighestBidder     string
	HighestPayableBid int64
	// Refund releases the previous leader's escrow. Zero-valued when the
	// accepted bid is the first one.
	Refund Refund
}

// Settlement is the effect of ending an auction.
type Settlement struct {
	// OwnerPayout is the binding price transferred to the owner. Zero when no
	// bid was ever placed.
	OwnerPayout int64
	// Refund returns the leader's locked amount above the binding price.
	// Zero-valued when there is no leader or no overpayment.
	Refund Refund
}

// Cancellation is the effect of cancelling an auction.
type Cancellation struct {
	// Refund returns the leader's full escrow. Zero-valued without bids.
	Refund Refund
}
