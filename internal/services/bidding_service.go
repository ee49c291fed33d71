package services

import (
	"context"
	"errors"
	"fmt"

	"auction-house/internal/auctionerrors"
	"auction-house/internal/clock"
	"auction-house/internal/config"
	"auction-house/internal/models"
	"auction-house/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// BiddingService accepts bids. All bid placements for one auction are
// serialized through the repository's per-auction lock; placements on
// different auctions run in parallel.
type BiddingService struct {
	repo *repository.Repository
	clk  clock.Clock
	cfg  config.AuctionConfig
}

func NewBiddingService(repo *repository.Repository, clk clock.Clock, cfg config.AuctionConfig) *BiddingService {
	return &BiddingService{
		repo: repo,
		clk:  clk,
		cfg:  cfg,
	}
}

// PlaceBid validates and records a bid, applying the anti-sniping extension.
// The auction state is re-read under the exclusive lock, so two bidders who
// both observed the same minimum cannot both clear it.
func (s *BiddingService) PlaceBid(ctx context.Context, auctionID, bidderID uuid.UUID, amount decimal.Decimal) (*models.BidReceipt, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("%w: bid amount must be positive", auctionerrors.ErrValidation)
	}

	if err := s.authorizeBidder(ctx, auctionID, bidderID); err != nil {
		return nil, err
	}

	var receipt *models.BidReceipt
	err := s.repo.WithAuctionLock(ctx, auctionID, func(tx *gorm.DB, auction *models.Auction) error {
		now := s.clk.Now()

		if !auction.IsBiddableAt(now) {
			return auctionerrors.ErrAuctionNotBiddable
		}

		bidCount, err := s.repo.CountBids(tx, auction.ID)
		if err != nil {
			return err
		}

		minimum := MinimumAcceptableBid(auction.StartingPrice, auction.CurrentPrice, auction.MinIncrement, bidCount)
		if amount.LessThan(minimum) {
			return &auctionerrors.BidTooLowError{Minimum: minimum}
		}

		bid := models.Bid{
			ID:        uuid.New(),
			AuctionID: auction.ID,
			BidderID:  bidderID,
			Amount:    amount,
			PlacedAt:  now,
		}
		if err := tx.Create(&bid).Error; err != nil {
			return err
		}

		extended := false
		remaining := auction.EndsAt.Sub(now)
		if remaining >= 0 && remaining <= s.cfg.AntiSnipeWindow && s.extensionAllowed(auction) {
			auction.EndsAt = now.Add(s.cfg.AntiSnipeExtension)
			auction.Extensions++
			extended = true
		}

		auction.CurrentPrice = amount
		if err := tx.Save(auction).Error; err != nil {
			return err
		}

		receipt = &models.BidReceipt{
			Bid:      bid,
			NewPrice: auction.CurrentPrice,
			Extended: extended,
			EndsAt:   auction.EndsAt,
		}
		return nil
	})
	if err != nil {
		return nil, s.mapError(auctionID, err)
	}

	log.WithFields(log.Fields{
		"auction_id": auctionID,
		"bidder_id":  bidderID,
		"amount":     amount.StringFixed(2),
		"extended":   receipt.Extended,
	}).Info("Bid accepted")

	return receipt, nil
}

// authorizeBidder enforces the bidding policy: admins do not bid, and the
// artwork's owner cannot bid on their own auction.
func (s *BiddingService) authorizeBidder(ctx context.Context, auctionID, bidderID uuid.UUID) error {
	bidder, err := s.repo.GetUser(ctx, bidderID)
	if err != nil {
		if errors.Is(err, auctionerrors.ErrNotFound) {
			return auctionerrors.ErrNotAuthorized
		}
		return fmt.Errorf("%w: %v", auctionerrors.ErrTransient, err)
	}
	if bidder.Role == models.RoleAdmin {
		return auctionerrors.ErrNotAuthorized
	}

	auction, err := s.repo.GetAuction(ctx, auctionID)
	if err != nil {
		if errors.Is(err, auctionerrors.ErrNotFound) {
			return auctionerrors.ErrNotFound
		}
		return fmt.Errorf("%w: %v", auctionerrors.ErrTransient, err)
	}

	artwork, err := s.repo.GetArtwork(ctx, auction.ArtworkID)
	if err != nil {
		if errors.Is(err, auctionerrors.ErrNotFound) {
			return auctionerrors.ErrNotAuthorized
		}
		return fmt.Errorf("%w: %v", auctionerrors.ErrTransient, err)
	}
	if artwork.OwnerID == bidderID {
		return auctionerrors.ErrNotAuthorized
	}

	return nil
}

func (s *BiddingService) extensionAllowed(auction *models.Auction) bool {
	return s.cfg.MaxExtensions == 0 || auction.Extensions < s.cfg.MaxExtensions
}

// mapError keeps business rejections as-is and marks everything else as a
// retryable storage failure. Nothing was written in that case: the
// transaction rolled back as a unit.
func (s *BiddingService) mapError(auctionID uuid.UUID, err error) error {
	if errors.Is(err, auctionerrors.ErrNotFound) ||
		errors.Is(err, auctionerrors.ErrAuctionNotBiddable) ||
		errors.Is(err, auctionerrors.ErrNotAuthorized) ||
		errors.Is(err, auctionerrors.ErrValidation) {
		return err
	}
	if _, ok := auctionerrors.AsBidTooLow(err); ok {
		return err
	}

	log.WithFields(log.Fields{
		"auction_id": auctionID,
		"error":      err.Error(),
	}).Error("Bid placement failed")
	return fmt.Errorf("%w: %v", auctionerrors.ErrTransient, err)
}
