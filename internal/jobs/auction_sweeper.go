package jobs

import (
	"context"
	"errors"
	"time"

	"auction-house/internal/auctionerrors"
	"auction-house/internal/clock"
	"auction-house/internal/repository"
	"auction-house/internal/services"

	log "github.com/sirupsen/logrus"
)

// AuctionSweeper reconciles every auction's status against the clock on a
// fixed interval: it finalizes elapsed auctions and opens scheduled ones
// whose window has begun.
type AuctionSweeper struct {
	repo     *repository.Repository
	auctions *services.AuctionService
	clk      clock.Clock
	interval time.Duration
	stopChan chan struct{}
}

func NewAuctionSweeper(repo *repository.Repository, auctions *services.AuctionService, clk clock.Clock, interval time.Duration) *AuctionSweeper {
	return &AuctionSweeper{
		repo:     repo,
		auctions: auctions,
		clk:      clk,
		interval: interval,
		stopChan: make(chan struct{}),
	}
}

// Start begins the sweep loop. Call from its own goroutine.
func (s *AuctionSweeper) Start() {
	log.WithFields(log.Fields{"interval": s.interval.String()}).Info("Auction sweeper started")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Sweep(context.Background())
		case <-s.stopChan:
			log.Info("Auction sweeper stopped")
			return
		}
	}
}

// Stop stops the sweep loop.
func (s *AuctionSweeper) Stop() {
	close(s.stopChan)
}

// Sweep runs one reconciliation pass. Closing runs before opening so an
// auction whose entire window elapsed before its first sweep is finalized
// directly instead of spuriously opened. Each transition is its own atomic
// unit: one broken auction is logged and retried next pass, never stalling
// the rest. Running the sweep twice with no elapsed time produces no
// additional transitions.
func (s *AuctionSweeper) Sweep(ctx context.Context) (closed, opened int) {
	now := s.clk.Now()

	toClose, err := s.repo.DueForClose(ctx, now)
	if err != nil {
		log.WithFields(log.Fields{"error": err.Error()}).Error("Sweep: failed to list elapsed auctions")
	} else {
		for _, id := range toClose {
			if err := s.auctions.Finalize(ctx, id); err != nil {
				// A concurrent sweep may have closed it between the
				// listing and the lock.
				if errors.Is(err, auctionerrors.ErrAlreadyFinalized) {
					continue
				}
				log.WithFields(log.Fields{
					"auction_id": id,
					"error":      err.Error(),
				}).Error("Sweep: failed to finalize auction")
				continue
			}
			closed++
		}
	}

	toOpen, err := s.repo.DueForOpen(ctx, now)
	if err != nil {
		log.WithFields(log.Fields{"error": err.Error()}).Error("Sweep: failed to list pending auctions")
	} else {
		for _, id := range toOpen {
			if err := s.auctions.Open(ctx, id); err != nil {
				log.WithFields(log.Fields{
					"auction_id": id,
					"error":      err.Error(),
				}).Error("Sweep: failed to open auction")
				continue
			}
			opened++
		}
	}

	if closed > 0 || opened > 0 {
		log.WithFields(log.Fields{"closed": closed, "opened": opened}).Info("Sweep completed")
	}
	return closed, opened
}
