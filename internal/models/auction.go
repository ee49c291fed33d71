package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type AuctionStatus string

const (
	AuctionStatusScheduled AuctionStatus = "scheduled"
	AuctionStatusActive    AuctionStatus = "active"
	AuctionStatusFinalized AuctionStatus = "finalized"
	AuctionStatusCancelled AuctionStatus = "cancelled"
)

type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
)

// Auction represents a timed auction over a single artwork.
type Auction struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	ArtworkID     uuid.UUID       `gorm:"type:uuid;not null;index" json:"artwork_id"`
	StartingPrice decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"starting_price"`
	CurrentPrice  decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"current_price"`
	MinIncrement  decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"min_increment"`
	StartsAt      time.Time       `gorm:"not null" json:"starts_at"`
	EndsAt        time.Time       `gorm:"not null;index" json:"ends_at"`
	Status        AuctionStatus   `gorm:"size:20;not null;default:scheduled;index" json:"status"`
	Extensions    int             `gorm:"not null;default:0" json:"extensions"`
	WinnerID      *uuid.UUID      `gorm:"type:uuid" json:"winner_id"`
	PaymentStatus PaymentStatus   `gorm:"size:20;not null;default:pending" json:"payment_status"`
	TransactionID *string         `gorm:"size:255" json:"transaction_id,omitempty"`
	PaidAt        *time.Time      `json:"paid_at,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

func (Auction) TableName() string {
	return "auctions"
}

// IsTerminal reports whether the auction can no longer change state.
func (a *Auction) IsTerminal() bool {
	return a.Status == AuctionStatusFinalized || a.Status == AuctionStatusCancelled
}

// IsBiddableAt checks the stored status AND the time window. A stale active
// status past its window must not be trusted.
func (a *Auction) IsBiddableAt(now time.Time) bool {
	return a.Status == AuctionStatusActive &&
		!now.Before(a.StartsAt) &&
		now.Before(a.EndsAt)
}

// RemainingAt returns the seconds until EndsAt, or 0 when the auction is not
// currently biddable.
func (a *Auction) RemainingAt(now time.Time) int64 {
	if !a.IsBiddableAt(now) {
		return 0
	}
	return int64(a.EndsAt.Sub(now).Seconds())
}

// CreateAuctionRequest is the payload for creating an auction.
type CreateAuctionRequest struct {
	ArtworkID     uuid.UUID       `json:"artwork_id" binding:"required"`
	StartingPrice decimal.Decimal `json:"starting_price" binding:"required"`
	MinIncrement  decimal.Decimal `json:"min_increment" binding:"required"`
	StartsAt      time.Time       `json:"starts_at" binding:"required"`
	EndsAt        time.Time       `json:"ends_at" binding:"required"`
}

// UpdateAuctionRequest edits a scheduled auction. Nil fields keep their
// current values.
type UpdateAuctionRequest struct {
	StartingPrice *decimal.Decimal `json:"starting_price"`
	MinIncrement  *decimal.Decimal `json:"min_increment"`
	StartsAt      *time.Time       `json:"starts_at"`
	EndsAt        *time.Time       `json:"ends_at"`
}

// UpdateDeadlineRequest moves the end time of a non-terminal auction.
type UpdateDeadlineRequest struct {
	EndsAt time.Time `json:"ends_at" binding:"required"`
}

// PaymentReport is what the external payment collaborator sends once the
// winner has paid.
type PaymentReport struct {
	TransactionID string    `json:"transaction_id" binding:"required"`
	PaidAt        time.Time `json:"paid_at" binding:"required"`
}

// AuctionView is an auction together with the caller-facing derived fields.
type AuctionView struct {
	Auction
	RemainingSeconds int64 `json:"remaining_seconds"`
	Biddable         bool  `json:"biddable"`
	TotalBids        int64 `json:"total_bids"`
}

// AdminReport aggregates sales figures for the admin dashboard.
type AdminReport struct {
	TotalSales      decimal.Decimal `json:"total_sales"`
	PendingPayments int64           `json:"pending_payments"`
	ActiveAuctions  int64           `json:"active_auctions"`
}
