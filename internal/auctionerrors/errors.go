package auctionerrors

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Business-rule errors returned synchronously to callers.
var (
	ErrNotFound           = errors.New("auction not found")
	ErrNotAuthorized      = errors.New("not authorized")
	ErrValidation         = errors.New("invalid input")
	ErrAuctionNotBiddable = errors.New("auction is not open for bidding")
	ErrConflict           = errors.New("auction window conflicts with an existing auction")
	ErrAlreadyFinalized   = errors.New("auction already finalized")
	ErrHasBids            = errors.New("auction with bids cannot be cancelled")
	ErrAlreadyPaid        = errors.New("auction already paid")
)

// ErrTransient marks storage or lock-contention failures that are safe to
// retry without any state having been written.
var ErrTransient = errors.New("transient storage error")

// BidTooLowError reports the live minimum so the caller can retry with a
// corrected amount.
type BidTooLowError struct {
	Minimum decimal.Decimal
}

func (e *BidTooLowError) Error() string {
	return fmt.Sprintf("bid too low: minimum acceptable amount is %s", e.Minimum.StringFixed(2))
}

// AsBidTooLow unwraps err into a BidTooLowError if it is one.
func AsBidTooLow(err error) (*BidTooLowError, bool) {
	var btl *BidTooLowError
	if errors.As(err, &btl) {
		return btl, true
	}
	return nil, false
}
