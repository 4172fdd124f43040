package errors

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// CodeInvalidRequest marks a malformed or unparseable request.
	CodeInvalidRequest Code = "INVALID_REQUEST"

	// Auction creation errors
	CodeAuctionTitleEmpty       Code = "AUCTION_TITLE_EMPTY"
	CodeAuctionInvalidTimeRange Code = "AUCTION_INVALID_TIME_RANGE"
	CodeAuctionInvalidIncrement Code = "AUCTION_INVALID_INCREMENT"

	// Auction transition errors
	CodeAuctionNotFound         Code = "AUCTION_NOT_FOUND"
	CodeAuctionNotOpen          Code = "AUCTION_NOT_OPEN"
	CodeAuctionNotYetEndable    Code = "AUCTION_NOT_YET_ENDABLE"
	CodeAuctionAlreadyFinalized Code = "AUCTION_ALREADY_FINALIZED"

	// Bid errors
	CodeAuctionBidTooLow      Code = "AUCTION_BID_TOO_LOW"
	CodeAuctionAlreadyLeading Code = "AUCTION_ALREADY_LEADING"

	// Authorization errors
	CodeAuctionForbidden Code = "AUCTION_FORBIDDEN"
	CodeUnauthenticated  Code = "UNAUTHENTICATED"

	// Refund ledger errors
	CodeNothingToWithdraw Code = "NOTHING_TO_WITHDRAW"

	// Storage errors
	CodeStorageUnavailable Code = "STORAGE_UNAVAILABLE"
)

// HTTPStatus maps domain codes to HTTP status codes for the JSON API.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeInvalidRequest, CodeAuctionTitleEmpty, CodeAuctionInvalidTimeRange, CodeAuctionInvalidIncrement:
		return http.StatusBadRequest
	case CodeAuctionNotFound:
		return http.StatusNotFound
	case CodeAuctionNotOpen, CodeAuctionNotYetEndable, CodeAuctionAlreadyFinalized,
		CodeAuctionBidTooLow, CodeAuctionAlreadyLeading, CodeNothingToWithdraw:
		return http.StatusConflict
	case CodeAuctionForbidden:
		return http.StatusForbidden
	case CodeUnauthenticated:
		return http.StatusUnauthorized
	case CodeStorageUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
