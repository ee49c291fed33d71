package repository

import (
	"context"
	"errors"
	"sync"
	"time"

	"auction-house/internal/auctionerrors"
	"auction-house/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository is the persistence layer for auctions and bids. It guarantees
// exclusive access to a single auction row for the duration of a mutation:
// callers go through WithAuctionLock, which serializes per-auction work on an
// in-process mutex and additionally takes a row lock inside the transaction.
type Repository struct {
	db *gorm.DB

	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		db:    db,
		locks: make(map[uuid.UUID]*sync.Mutex),
	}
}

// DB exposes the underlying handle for read-only composition.
func (r *Repository) DB() *gorm.DB {
	return r.db
}

func (r *Repository) auctionLock(id uuid.UUID) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.locks[id]
	if !ok {
		l = &sync.Mutex{}
		r.locks[id] = l
	}
	return l
}

// WithAuctionLock runs fn with exclusive access to one auction. The auction
// is re-read under the lock, so fn never sees values observed before
// acquisition. The whole mutation commits or rolls back as a unit.
func (r *Repository) WithAuctionLock(ctx context.Context, id uuid.UUID, fn func(tx *gorm.DB, auction *models.Auction) error) error {
	l := r.auctionLock(id)
	l.Lock()
	defer l.Unlock()

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		query := tx.Where("id = ?", id)
		// Row lock where the dialect supports it; sqlite relies on the
		// in-process mutex alone.
		if tx.Dialector.Name() == "postgres" {
			query = query.Clauses(clause.Locking{Strength: "UPDATE"})
		}

		var auction models.Auction
		err := query.First(&auction).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return auctionerrors.ErrNotFound
		}
		if err != nil {
			return err
		}
		return fn(tx, &auction)
	})
}

// CreateAuction inserts a new auction
func (r *Repository) CreateAuction(ctx context.Context, auction *models.Auction) error {
	return r.db.WithContext(ctx).Create(auction).Error
}

// GetAuction retrieves an auction by ID
func (r *Repository) GetAuction(ctx context.Context, id uuid.UUID) (*models.Auction, error) {
	var auction models.Auction
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&auction).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, auctionerrors.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &auction, nil
}

// HasWindowConflict reports whether another scheduled or active auction for
// the same artwork overlaps [startsAt, endsAt). Two windows [s1,e1) and
// [s2,e2) conflict iff s1 < e2 && s2 < e1.
func (r *Repository) HasWindowConflict(db *gorm.DB, artworkID uuid.UUID, startsAt, endsAt time.Time, excludeID *uuid.UUID) (bool, error) {
	query := db.Model(&models.Auction{}).
		Where("artwork_id = ?", artworkID).
		Where("status IN ?", []models.AuctionStatus{models.AuctionStatusScheduled, models.AuctionStatusActive}).
		Where("starts_at < ? AND ? < ends_at", endsAt, startsAt)
	if excludeID != nil {
		query = query.Where("id <> ?", *excludeID)
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// ListActiveAuctions returns active auctions still inside their window,
// soonest deadline first.
func (r *Repository) ListActiveAuctions(ctx context.Context, now time.Time, limit, offset int) ([]*models.Auction, int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&models.Auction{}).
		Where("status = ?", models.AuctionStatusActive).
		Where("ends_at > ?", now).
		Count(&total).Error
	if err != nil {
		return nil, 0, err
	}

	var auctions []*models.Auction
	err = r.db.WithContext(ctx).
		Where("status = ?", models.AuctionStatusActive).
		Where("ends_at > ?", now).
		Order("ends_at ASC").
		Limit(limit).
		Offset(offset).
		Find(&auctions).Error
	if err != nil {
		return nil, 0, err
	}
	return auctions, total, nil
}

// DueForClose returns the IDs of scheduled or active auctions whose window
// has elapsed. The sweep locks and finalizes each one independently.
func (r *Repository) DueForClose(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).Model(&models.Auction{}).
		Where("status IN ?", []models.AuctionStatus{models.AuctionStatusScheduled, models.AuctionStatusActive}).
		Where("ends_at <= ?", now).
		Order("ends_at ASC").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// DueForOpen returns the IDs of scheduled auctions whose window has begun
// but not yet elapsed.
func (r *Repository) DueForOpen(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).Model(&models.Auction{}).
		Where("status = ?", models.AuctionStatusScheduled).
		Where("starts_at <= ? AND ends_at > ?", now, now).
		Order("starts_at ASC").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// CountBids counts bids for an auction inside the given transaction.
func (r *Repository) CountBids(tx *gorm.DB, auctionID uuid.UUID) (int64, error) {
	var count int64
	err := tx.Model(&models.Bid{}).Where("auction_id = ?", auctionID).Count(&count).Error
	return count, err
}

// HighestBid returns the top bid for an auction or nil when it has none.
// The (auction_id, amount) index serves this query.
func (r *Repository) HighestBid(tx *gorm.DB, auctionID uuid.UUID) (*models.Bid, error) {
	var bid models.Bid
	err := tx.Where("auction_id = ?", auctionID).
		Order("amount DESC").
		First(&bid).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &bid, nil
}

// ListBidsForAuction returns all bids for an auction, highest first.
func (r *Repository) ListBidsForAuction(ctx context.Context, auctionID uuid.UUID) ([]*models.Bid, error) {
	var bids []*models.Bid
	err := r.db.WithContext(ctx).
		Where("auction_id = ?", auctionID).
		Order("amount DESC").
		Find(&bids).Error
	if err != nil {
		return nil, err
	}
	return bids, nil
}

// ListBidsForUser returns a user's bids, most recent first.
func (r *Repository) ListBidsForUser(ctx context.Context, bidderID uuid.UUID) ([]*models.Bid, error) {
	var bids []*models.Bid
	err := r.db.WithContext(ctx).
		Where("bidder_id = ?", bidderID).
		Order("placed_at DESC").
		Find(&bids).Error
	if err != nil {
		return nil, err
	}
	return bids, nil
}

// ListWonAuctions returns finalized auctions won by the user, most recently
// finalized first.
func (r *Repository) ListWonAuctions(ctx context.Context, userID uuid.UUID) ([]*models.Auction, error) {
	var auctions []*models.Auction
	err := r.db.WithContext(ctx).
		Where("winner_id = ?", userID).
		Where("status = ?", models.AuctionStatusFinalized).
		Order("updated_at DESC").
		Find(&auctions).Error
	if err != nil {
		return nil, err
	}
	return auctions, nil
}

// GetArtwork retrieves an artwork by ID
func (r *Repository) GetArtwork(ctx context.Context, id uuid.UUID) (*models.Artwork, error) {
	var artwork models.Artwork
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&artwork).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, auctionerrors.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &artwork, nil
}

// GetUser retrieves a user by ID
func (r *Repository) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, auctionerrors.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// AdminReport aggregates the sales figures shown on the admin dashboard.
func (r *Repository) AdminReport(ctx context.Context) (*models.AdminReport, error) {
	report := &models.AdminReport{TotalSales: decimal.Zero}

	var totalSales decimal.NullDecimal
	err := r.db.WithContext(ctx).Model(&models.Auction{}).
		Where("payment_status = ?", models.PaymentStatusPaid).
		Select("SUM(current_price)").
		Scan(&totalSales).Error
	if err != nil {
		return nil, err
	}
	if totalSales.Valid {
		report.TotalSales = totalSales.Decimal
	}

	err = r.db.WithContext(ctx).Model(&models.Auction{}).
		Where("status = ? AND winner_id IS NOT NULL AND payment_status <> ?", models.AuctionStatusFinalized, models.PaymentStatusPaid).
		Count(&report.PendingPayments).Error
	if err != nil {
		return nil, err
	}

	err = r.db.WithContext(ctx).Model(&models.Auction{}).
		Where("status = ?", models.AuctionStatusActive).
		Count(&report.ActiveAuctions).Error
	if err != nil {
		return nil, err
	}

	return report, nil
}
