package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"auction-house/internal/auctionerrors"
	"auction-house/internal/clock"
	"auction-house/internal/models"
	"auction-house/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// AuctionService is the facade for auction lifecycle operations: creation,
// scheduled-only edits, manual finalize and cancel, listings, and the
// payment collaborator's report.
type AuctionService struct {
	repo *repository.Repository
	clk  clock.Clock
}

func NewAuctionService(repo *repository.Repository, clk clock.Clock) *AuctionService {
	return &AuctionService{
		repo: repo,
		clk:  clk,
	}
}

// CreateAuction creates an auction for an eligible artwork. The auction
// starts scheduled or active depending on whether StartsAt is in the future.
func (s *AuctionService) CreateAuction(ctx context.Context, actorID uuid.UUID, req *models.CreateAuctionRequest) (*models.Auction, error) {
	if err := s.requireAdmin(ctx, actorID); err != nil {
		return nil, err
	}

	if err := validatePricing(req.StartingPrice, req.MinIncrement); err != nil {
		return nil, err
	}
	if !req.EndsAt.After(req.StartsAt) {
		return nil, fmt.Errorf("%w: ends_at must be after starts_at", auctionerrors.ErrValidation)
	}

	now := s.clk.Now()
	if !req.EndsAt.After(now) {
		return nil, fmt.Errorf("%w: ends_at must be in the future", auctionerrors.ErrValidation)
	}

	artwork, err := s.repo.GetArtwork(ctx, req.ArtworkID)
	if err != nil {
		if errors.Is(err, auctionerrors.ErrNotFound) {
			return nil, fmt.Errorf("%w: artwork does not exist", auctionerrors.ErrValidation)
		}
		return nil, err
	}
	if !artwork.Eligible() {
		return nil, fmt.Errorf("%w: artwork is not accepted or not marked auctionable", auctionerrors.ErrValidation)
	}

	conflict, err := s.repo.HasWindowConflict(s.repo.DB().WithContext(ctx), req.ArtworkID, req.StartsAt, req.EndsAt, nil)
	if err != nil {
		return nil, err
	}
	if conflict {
		return nil, auctionerrors.ErrConflict
	}

	status := models.AuctionStatusScheduled
	if !req.StartsAt.After(now) {
		status = models.AuctionStatusActive
	}

	auction := &models.Auction{
		ID:            uuid.New(),
		ArtworkID:     req.ArtworkID,
		StartingPrice: req.StartingPrice,
		CurrentPrice:  req.StartingPrice,
		MinIncrement:  req.MinIncrement,
		StartsAt:      req.StartsAt,
		EndsAt:        req.EndsAt,
		Status:        status,
		PaymentStatus: models.PaymentStatusPending,
	}

	if err := s.repo.CreateAuction(ctx, auction); err != nil {
		return nil, fmt.Errorf("failed to create auction: %w", err)
	}

	log.WithFields(log.Fields{
		"auction_id": auction.ID,
		"artwork_id": auction.ArtworkID,
		"status":     auction.Status,
	}).Info("Auction created")

	return auction, nil
}

// UpdateScheduledAuction edits an auction that has not opened yet. Nil
// request fields keep their current values.
func (s *AuctionService) UpdateScheduledAuction(ctx context.Context, actorID, auctionID uuid.UUID, req *models.UpdateAuctionRequest) (*models.Auction, error) {
	if err := s.requireAdmin(ctx, actorID); err != nil {
		return nil, err
	}

	var updated *models.Auction
	err := s.repo.WithAuctionLock(ctx, auctionID, func(tx *gorm.DB, auction *models.Auction) error {
		if auction.Status != models.AuctionStatusScheduled {
			return fmt.Errorf("%w: only scheduled auctions can be edited", auctionerrors.ErrValidation)
		}

		if req.StartingPrice != nil {
			auction.StartingPrice = *req.StartingPrice
			auction.CurrentPrice = *req.StartingPrice
		}
		if req.MinIncrement != nil {
			auction.MinIncrement = *req.MinIncrement
		}
		if req.StartsAt != nil {
			auction.StartsAt = *req.StartsAt
		}
		if req.EndsAt != nil {
			auction.EndsAt = *req.EndsAt
		}

		if err := validatePricing(auction.StartingPrice, auction.MinIncrement); err != nil {
			return err
		}
		if !auction.EndsAt.After(auction.StartsAt) {
			return fmt.Errorf("%w: ends_at must be after starts_at", auctionerrors.ErrValidation)
		}

		conflict, err := s.repo.HasWindowConflict(tx, auction.ArtworkID, auction.StartsAt, auction.EndsAt, &auction.ID)
		if err != nil {
			return err
		}
		if conflict {
			return auctionerrors.ErrConflict
		}

		if err := tx.Save(auction).Error; err != nil {
			return err
		}
		updated = auction
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// UpdateDeadline moves the end time of any non-terminal auction.
func (s *AuctionService) UpdateDeadline(ctx context.Context, actorID, auctionID uuid.UUID, endsAt time.Time) (*models.Auction, error) {
	if err := s.requireAdmin(ctx, actorID); err != nil {
		return nil, err
	}
	if !endsAt.After(s.clk.Now()) {
		return nil, fmt.Errorf("%w: ends_at must be in the future", auctionerrors.ErrValidation)
	}

	var updated *models.Auction
	err := s.repo.WithAuctionLock(ctx, auctionID, func(tx *gorm.DB, auction *models.Auction) error {
		if auction.IsTerminal() {
			return fmt.Errorf("%w: cannot move the deadline of a finalized or cancelled auction", auctionerrors.ErrValidation)
		}
		auction.EndsAt = endsAt
		if err := tx.Save(auction).Error; err != nil {
			return err
		}
		updated = auction
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// FinalizeAuction closes an auction by explicit admin action, bypassing the
// time guard but not the winner-determination rule.
func (s *AuctionService) FinalizeAuction(ctx context.Context, actorID, auctionID uuid.UUID) (*models.Auction, error) {
	if err := s.requireAdmin(ctx, actorID); err != nil {
		return nil, err
	}

	var finalized *models.Auction
	err := s.repo.WithAuctionLock(ctx, auctionID, func(tx *gorm.DB, auction *models.Auction) error {
		if err := s.finalizeLocked(tx, auction); err != nil {
			return err
		}
		finalized = auction
		return nil
	})
	if err != nil {
		return nil, err
	}
	return finalized, nil
}

// Finalize drives a single auction to finalized under its exclusive lock.
// Used by the sweep; does not check authorization.
func (s *AuctionService) Finalize(ctx context.Context, auctionID uuid.UUID) error {
	return s.repo.WithAuctionLock(ctx, auctionID, func(tx *gorm.DB, auction *models.Auction) error {
		return s.finalizeLocked(tx, auction)
	})
}

// finalizeLocked assigns the winner and fixes the final price. The winner is
// the bidder of the highest bid, or nobody when the auction is unsold.
func (s *AuctionService) finalizeLocked(tx *gorm.DB, auction *models.Auction) error {
	if auction.Status == models.AuctionStatusFinalized {
		return auctionerrors.ErrAlreadyFinalized
	}
	if auction.Status == models.AuctionStatusCancelled {
		return fmt.Errorf("%w: cancelled auction cannot be finalized", auctionerrors.ErrValidation)
	}

	winning, err := s.repo.HighestBid(tx, auction.ID)
	if err != nil {
		return err
	}

	auction.Status = models.AuctionStatusFinalized
	if winning != nil {
		auction.WinnerID = &winning.BidderID
		auction.CurrentPrice = winning.Amount
	}

	if err := tx.Save(auction).Error; err != nil {
		return err
	}

	fields := log.Fields{"auction_id": auction.ID}
	if winning != nil {
		fields["winner_id"] = winning.BidderID
		fields["final_price"] = winning.Amount.StringFixed(2)
	} else {
		fields["unsold"] = true
	}
	log.WithFields(fields).Info("Auction finalized")

	return nil
}

// Open transitions a scheduled auction to active. Used by the sweep.
func (s *AuctionService) Open(ctx context.Context, auctionID uuid.UUID) error {
	now := s.clk.Now()
	return s.repo.WithAuctionLock(ctx, auctionID, func(tx *gorm.DB, auction *models.Auction) error {
		// Re-check under the lock: another sweep may have moved it already.
		if auction.Status != models.AuctionStatusScheduled {
			return nil
		}
		if now.Before(auction.StartsAt) || !now.Before(auction.EndsAt) {
			return nil
		}
		auction.Status = models.AuctionStatusActive
		if err := tx.Save(auction).Error; err != nil {
			return err
		}
		log.WithFields(log.Fields{"auction_id": auction.ID}).Info("Auction opened")
		return nil
	})
}

// CancelAuction cancels an auction that has no bids. Cancellation is a
// status, never a deletion.
func (s *AuctionService) CancelAuction(ctx context.Context, actorID, auctionID uuid.UUID) (*models.Auction, error) {
	if err := s.requireAdmin(ctx, actorID); err != nil {
		return nil, err
	}

	var cancelled *models.Auction
	err := s.repo.WithAuctionLock(ctx, auctionID, func(tx *gorm.DB, auction *models.Auction) error {
		if auction.IsTerminal() {
			return fmt.Errorf("%w: auction is already finalized or cancelled", auctionerrors.ErrValidation)
		}

		bidCount, err := s.repo.CountBids(tx, auction.ID)
		if err != nil {
			return err
		}
		if bidCount > 0 {
			return auctionerrors.ErrHasBids
		}

		auction.Status = models.AuctionStatusCancelled
		if err := tx.Save(auction).Error; err != nil {
			return err
		}
		cancelled = auction
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{"auction_id": auctionID}).Info("Auction cancelled")
	return cancelled, nil
}

// GetAuction returns an auction with its derived remaining-time and
// biddable fields. Values are as of last read; the display may lag a
// concurrent bid.
func (s *AuctionService) GetAuction(ctx context.Context, auctionID uuid.UUID) (*models.AuctionView, error) {
	auction, err := s.repo.GetAuction(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	var bidCount int64
	bidCount, err = s.repo.CountBids(s.repo.DB().WithContext(ctx), auctionID)
	if err != nil {
		return nil, err
	}
	return s.view(auction, bidCount), nil
}

// ListActiveAuctions returns active auctions ordered by soonest deadline.
func (s *AuctionService) ListActiveAuctions(ctx context.Context, limit, offset int) ([]*models.AuctionView, int64, error) {
	if limit <= 0 {
		limit = 15
	}
	now := s.clk.Now()
	auctions, total, err := s.repo.ListActiveAuctions(ctx, now, limit, offset)
	if err != nil {
		return nil, 0, err
	}

	views := make([]*models.AuctionView, 0, len(auctions))
	for _, auction := range auctions {
		bidCount, err := s.repo.CountBids(s.repo.DB().WithContext(ctx), auction.ID)
		if err != nil {
			return nil, 0, err
		}
		views = append(views, s.view(auction, bidCount))
	}
	return views, total, nil
}

// ListBidsForUser returns a user's bids, each flagged with whether it holds
// the top of its auction.
func (s *AuctionService) ListBidsForUser(ctx context.Context, userID uuid.UUID) ([]*models.UserBid, error) {
	bids, err := s.repo.ListBidsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := make([]*models.UserBid, 0, len(bids))
	for _, bid := range bids {
		auction, err := s.repo.GetAuction(ctx, bid.AuctionID)
		if err != nil {
			return nil, err
		}
		top, err := s.repo.HighestBid(s.repo.DB().WithContext(ctx), bid.AuctionID)
		if err != nil {
			return nil, err
		}
		out = append(out, &models.UserBid{
			Bid:              *bid,
			AuctionStatus:    auction.Status,
			AuctionFinalized: auction.Status == models.AuctionStatusFinalized,
			IsWinning:        top != nil && top.ID == bid.ID,
		})
	}
	return out, nil
}

// ListWonAuctionsForUser returns the finalized auctions the user won.
func (s *AuctionService) ListWonAuctionsForUser(ctx context.Context, userID uuid.UUID) ([]*models.Auction, error) {
	return s.repo.ListWonAuctions(ctx, userID)
}

// ListBidsForAuction returns an auction's bid history, highest first.
func (s *AuctionService) ListBidsForAuction(ctx context.Context, auctionID uuid.UUID) ([]*models.Bid, error) {
	if _, err := s.repo.GetAuction(ctx, auctionID); err != nil {
		return nil, err
	}
	return s.repo.ListBidsForAuction(ctx, auctionID)
}

// ReportPayment records the payment collaborator's success report for a won
// auction. Only the winner pays, and a second report is rejected.
func (s *AuctionService) ReportPayment(ctx context.Context, actorID, auctionID uuid.UUID, report *models.PaymentReport) (*models.Auction, error) {
	var paid *models.Auction
	err := s.repo.WithAuctionLock(ctx, auctionID, func(tx *gorm.DB, auction *models.Auction) error {
		if auction.WinnerID == nil || *auction.WinnerID != actorID {
			return fmt.Errorf("%w: only the winner can pay", auctionerrors.ErrNotAuthorized)
		}
		if auction.PaymentStatus == models.PaymentStatusPaid {
			return auctionerrors.ErrAlreadyPaid
		}

		auction.PaymentStatus = models.PaymentStatusPaid
		auction.TransactionID = &report.TransactionID
		paidAt := report.PaidAt
		auction.PaidAt = &paidAt

		if err := tx.Save(auction).Error; err != nil {
			return err
		}
		paid = auction
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"auction_id":     auctionID,
		"transaction_id": report.TransactionID,
	}).Info("Payment recorded")

	return paid, nil
}

// AdminReport returns the aggregated sales view for administrators.
func (s *AuctionService) AdminReport(ctx context.Context, actorID uuid.UUID) (*models.AdminReport, error) {
	if err := s.requireAdmin(ctx, actorID); err != nil {
		return nil, err
	}
	return s.repo.AdminReport(ctx)
}

func (s *AuctionService) view(auction *models.Auction, bidCount int64) *models.AuctionView {
	now := s.clk.Now()
	return &models.AuctionView{
		Auction:          *auction,
		RemainingSeconds: auction.RemainingAt(now),
		Biddable:         auction.IsBiddableAt(now),
		TotalBids:        bidCount,
	}
}

func (s *AuctionService) requireAdmin(ctx context.Context, actorID uuid.UUID) error {
	actor, err := s.repo.GetUser(ctx, actorID)
	if err != nil {
		if errors.Is(err, auctionerrors.ErrNotFound) {
			return auctionerrors.ErrNotAuthorized
		}
		return err
	}
	if actor.Role != models.RoleAdmin {
		return auctionerrors.ErrNotAuthorized
	}
	return nil
}

func validatePricing(startingPrice, minIncrement decimal.Decimal) error {
	if startingPrice.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("%w: starting_price must be positive", auctionerrors.ErrValidation)
	}
	if minIncrement.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("%w: min_increment must be positive", auctionerrors.ErrValidation)
	}
	return nil
}
