package models

import (
	"time"

	"github.com/google/uuid"
)

// Artwork is the external item an auction sells. Upload and moderation are
// handled elsewhere; this core only reads eligibility and ownership.
type Artwork struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	OwnerID     uuid.UUID `gorm:"type:uuid;not null;index" json:"owner_id"`
	Title       string    `gorm:"size:255;not null" json:"title"`
	Accepted    bool      `gorm:"not null;default:false" json:"accepted"`
	Auctionable bool      `gorm:"not null;default:false" json:"auctionable"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (Artwork) TableName() string {
	return "artworks"
}

// Eligible reports whether an auction may be created for this artwork.
func (a *Artwork) Eligible() bool {
	return a.Accepted && a.Auctionable
}
