package domain

import "time"

// ValidateCreate checks the structural invariants of a new listing.
func ValidateCreate(startTime, endTime time.Time, minIncrement int64) error {
	if !startTime.Before(endTime) {
		return ErrInvalidTimeRange
	}
	if minIncrement <= 0 {
		return ErrInvalidIncrement
	}
	return nil
}

// DecideBid evaluates a bid against the auction at the given instant.
//
// The accepted amount is the bidder's locked maximum; the payable price only
// tracks one increment above the previous leader, capped by the bid itself.
// The previous leader, if any, is fully refunded.
func DecideBid(a Auction, now time.Time, bidder string, amount int64) (BidOutcome, error) {
	if a.StatusAt(now) != StatusOpen {
		return BidOutcome{}, ErrNotOpen
	}
	if a.HasBid() && a.HighestBidder == bidder {
		return BidOutcome{}, ErrAlreadyLeading
	}
	floor := a.HighestBid + a.MinIncrement
	if amount < floor {
		return BidOutcome{}, ErrBidTooLow
	}

	outcome := BidOutcome{
		HighestBid:        amount,
		HighestBidder:     bidder,
		HighestPayableBid: min(amount, floor),
	}
	if a.HasBid() {
		outcome.Refund = Refund{Identity: a.HighestBidder, Amount: a.HighestBid}
	}
	return outcome, nil
}

// DecideEnd evaluates settlement of an auction at the given instant.
//
// The owner receives the binding price directly; the leader's overpayment
// above it goes back through pending returns.
func DecideEnd(a Auction, now time.Time) (Settlement, error) {
	if a.Ended || a.Cancelled {
		return Settlement{}, ErrAlreadyFinalized
	}
	if now.Before(a.EndTime) {
		return Settlement{}, ErrNotYetEndable
	}
	if !a.HasBid() {
		return Settlement{}, nil
	}

	settlement := Settlement{OwnerPayout: a.HighestPayableBid}
	if overpaid := a.HighestBid - a.HighestPayableBid; overpaid > 0 {
		settlement.Refund = Refund{Identity: a.HighestBidder, Amount: overpaid}
	}
	return settlement, nil
}

// DecideCancel evaluates cancellation by the given caller.
//
// No sale occurs, so the leader's full escrow is released and the owner
// receives nothing.
func DecideCancel(a Auction, caller string) (Cancellation, error) {
	if caller != a.Owner {
		return Cancellation{}, ErrForbidden
	}
	if a.Ended || a.Cancelled {
		return Cancellation{}, ErrAlreadyFinalized
	}
	if !a.HasBid() {
		return Cancellation{}, nil
	}
	return Cancellation{Refund: Refund{Identity: a.HighestBidder, Amount: a.HighestBid}}, nil
}
