package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Bid is a single accepted bid. Bids are immutable once created and belong
// exclusively to their auction.
type Bid struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	AuctionID uuid.UUID       `gorm:"type:uuid;not null;index:idx_bids_auction_amount" json:"auction_id"`
	BidderID  uuid.UUID       `gorm:"type:uuid;not null;index" json:"bidder_id"`
	Amount    decimal.Decimal `gorm:"type:decimal(10,2);not null;index:idx_bids_auction_amount" json:"amount"`
	PlacedAt  time.Time       `gorm:"not null" json:"placed_at"`
	CreatedAt time.Time       `json:"created_at"`
}

func (Bid) TableName() string {
	return "bids"
}

// PlaceBidRequest is the payload for placing a bid.
type PlaceBidRequest struct {
	Amount decimal.Decimal `json:"amount" binding:"required"`
}

// BidReceipt is returned on acceptance so a caller can update a live
// countdown: the new price, whether the deadline moved, and the deadline now
// in force.
type BidReceipt struct {
	Bid      Bid             `json:"bid"`
	NewPrice decimal.Decimal `json:"new_price"`
	Extended bool            `json:"extended"`
	EndsAt   time.Time       `json:"ends_at"`
}

// UserBid is a bid enriched with the state of its auction, for the
// "my bids" listing.
type UserBid struct {
	Bid
	AuctionStatus    AuctionStatus `json:"auction_status"`
	AuctionFinalized bool          `json:"auction_finalized"`
	IsWinning        bool          `json:"is_winning"`
}
