package domain

import apperrors "github.com/gavelworks/auctionhouse/internal/platform/errors"

var (
	// ErrInvalidTimeRange indicates startTime is not strictly before endTime.
	ErrInvalidTimeRange = apperrors.New(apperrors.CodeAuctionInvalidTimeRange, "start time must be before end time")
	// ErrInvalidIncrement indicates a non-positive minimum bid increment.
	ErrInvalidIncrement = apperrors.New(apperrors.CodeAuctionInvalidIncrement, "minimum increment must be greater than zero")
	// ErrNotOpen indicates the auction is not accepting bids.
	ErrNotOpen = apperrors.New(apperrors.CodeAuctionNotOpen, "auction is not open for bidding")
	// ErrBidTooLow indicates the bid does not clear the increment floor.
	ErrBidTooLow = apperrors.New(apperrors.CodeAuctionBidTooLow, "bid does not clear the increment floor")
	// ErrAlreadyLeading indicates the current leader tried to outbid themselves.
	ErrAlreadyLeading = apperrors.New(apperrors.CodeAuctionAlreadyLeading, "bidder already holds the highest bid")
	// ErrNotYetEndable indicates the bidding window has not elapsed.
	ErrNotYetEndable = apperrors.New(apperrors.CodeAuctionNotYetEndable, "auction end time has not passed")
	// ErrAlreadyFinalized indicates the auction reached a terminal state.
	ErrAlreadyFinalized = apperrors.New(apperrors.CodeAuctionAlreadyFinalized, "auction is already ended or cancelled")
	// ErrForbidden indicates the caller is not allowed to run the transition.
	ErrForbidden = apperrors.New(apperrors.CodeAuctionForbidden, "caller is not authorized for this auction")
	// ErrNothingToWithdraw indicates an empty pending-returns balance.
	ErrNothingToWithdraw = apperrors.New(apperrors.CodeNothingToWithdraw, "no pending returns to withdraw")
)
