package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"auction-house/internal/auctionerrors"
	"auction-house/internal/models"

	"github.com/google/uuid"
)

func TestCreateAuction(t *testing.T) {
	f := newFixture(t)
	admin := f.createUser(t, models.RoleAdmin)
	buyer := f.createUser(t, models.RoleBuyer)
	artist := f.createUser(t, models.RoleArtist)
	artwork := f.createArtwork(t, artist.ID)
	ctx := context.Background()

	req := &models.CreateAuctionRequest{
		ArtworkID:     artwork.ID,
		StartingPrice: money("1000"),
		MinIncrement:  money("100"),
		StartsAt:      testBase.Add(time.Hour),
		EndsAt:        testBase.Add(2 * time.Hour),
	}

	// Only admins create auctions.
	if _, err := f.auctions.CreateAuction(ctx, buyer.ID, req); !errors.Is(err, auctionerrors.ErrNotAuthorized) {
		t.Errorf("buyer creator: expected ErrNotAuthorized, got %v", err)
	}

	auction, err := f.auctions.CreateAuction(ctx, admin.ID, req)
	if err != nil {
		t.Fatalf("CreateAuction failed: %v", err)
	}
	if auction.Status != models.AuctionStatusScheduled {
		t.Errorf("future start: expected scheduled, got %s", auction.Status)
	}
	if !auction.CurrentPrice.Equal(money("1000")) {
		t.Errorf("expected current price seeded from starting price, got %s", auction.CurrentPrice.StringFixed(2))
	}
}

func TestCreateAuctionImmediateStart(t *testing.T) {
	f := newFixture(t)
	admin := f.createUser(t, models.RoleAdmin)
	artist := f.createUser(t, models.RoleArtist)
	artwork := f.createArtwork(t, artist.ID)

	auction, err := f.auctions.CreateAuction(context.Background(), admin.ID, &models.CreateAuctionRequest{
		ArtworkID:     artwork.ID,
		StartingPrice: money("1000"),
		MinIncrement:  money("100"),
		StartsAt:      testBase.Add(-time.Minute),
		EndsAt:        testBase.Add(2 * time.Hour),
	})
	if err != nil {
		t.Fatalf("CreateAuction failed: %v", err)
	}
	if auction.Status != models.AuctionStatusActive {
		t.Errorf("past start: expected active, got %s", auction.Status)
	}
}

func TestCreateAuctionValidation(t *testing.T) {
	f := newFixture(t)
	admin := f.createUser(t, models.RoleAdmin)
	artist := f.createUser(t, models.RoleArtist)
	artwork := f.createArtwork(t, artist.ID)
	ctx := context.Background()

	base := models.CreateAuctionRequest{
		ArtworkID:     artwork.ID,
		StartingPrice: money("1000"),
		MinIncrement:  money("100"),
		StartsAt:      testBase.Add(time.Hour),
		EndsAt:        testBase.Add(2 * time.Hour),
	}

	tests := []struct {
		name   string
		mutate func(r *models.CreateAuctionRequest)
	}{
		{"zero starting price", func(r *models.CreateAuctionRequest) { r.StartingPrice = money("0") }},
		{"negative increment", func(r *models.CreateAuctionRequest) { r.MinIncrement = money("-1") }},
		{"ends before starts", func(r *models.CreateAuctionRequest) { r.EndsAt = r.StartsAt.Add(-time.Minute) }},
		{"ends in the past", func(r *models.CreateAuctionRequest) {
			r.StartsAt = testBase.Add(-2 * time.Hour)
			r.EndsAt = testBase.Add(-time.Hour)
		}},
		{"unknown artwork", func(r *models.CreateAuctionRequest) { r.ArtworkID = uuid.New() }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := base
			tt.mutate(&req)
			if _, err := f.auctions.CreateAuction(ctx, admin.ID, &req); !errors.Is(err, auctionerrors.ErrValidation) {
				t.Errorf("expected ErrValidation, got %v", err)
			}
		})
	}
}

func TestCreateAuctionRequiresEligibleArtwork(t *testing.T) {
	f := newFixture(t)
	admin := f.createUser(t, models.RoleAdmin)
	artist := f.createUser(t, models.RoleArtist)

	pending := &models.Artwork{ID: uuid.New(), OwnerID: artist.ID, Title: "Pending", Accepted: false, Auctionable: true}
	if err := f.db.Create(pending).Error; err != nil {
		t.Fatalf("failed to create artwork: %v", err)
	}

	_, err := f.auctions.CreateAuction(context.Background(), admin.ID, &models.CreateAuctionRequest{
		ArtworkID:     pending.ID,
		StartingPrice: money("1000"),
		MinIncrement:  money("100"),
		StartsAt:      testBase.Add(time.Hour),
		EndsAt:        testBase.Add(2 * time.Hour),
	})
	if !errors.Is(err, auctionerrors.ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
}

func TestCreateAuctionWindowConflict(t *testing.T) {
	f := newFixture(t)
	admin := f.createUser(t, models.RoleAdmin)
	artist := f.createUser(t, models.RoleArtist)
	artwork := f.createArtwork(t, artist.ID)
	ctx := context.Background()

	f.createAuction(t, artwork.ID, models.AuctionStatusScheduled,
		testBase.Add(time.Hour), testBase.Add(3*time.Hour))

	// Overlapping window on the same artwork.
	_, err := f.auctions.CreateAuction(ctx, admin.ID, &models.CreateAuctionRequest{
		ArtworkID:     artwork.ID,
		StartingPrice: money("1000"),
		MinIncrement:  money("100"),
		StartsAt:      testBase.Add(2 * time.Hour),
		EndsAt:        testBase.Add(4 * time.Hour),
	})
	if !errors.Is(err, auctionerrors.ErrConflict) {
		t.Errorf("expected ErrConflict, got %v", err)
	}

	// Touching windows do not overlap: one ends exactly when the next starts.
	if _, err := f.auctions.CreateAuction(ctx, admin.ID, &models.CreateAuctionRequest{
		ArtworkID:     artwork.ID,
		StartingPrice: money("1000"),
		MinIncrement:  money("100"),
		StartsAt:      testBase.Add(3 * time.Hour),
		EndsAt:        testBase.Add(4 * time.Hour),
	}); err != nil {
		t.Errorf("adjacent window should be allowed, got %v", err)
	}

	// A cancelled auction does not block its old window.
	other := f.createArtwork(t, artist.ID)
	f.createAuction(t, other.ID, models.AuctionStatusCancelled,
		testBase.Add(time.Hour), testBase.Add(3*time.Hour))
	if _, err := f.auctions.CreateAuction(ctx, admin.ID, &models.CreateAuctionRequest{
		ArtworkID:     other.ID,
		StartingPrice: money("1000"),
		MinIncrement:  money("100"),
		StartsAt:      testBase.Add(time.Hour),
		EndsAt:        testBase.Add(3 * time.Hour),
	}); err != nil {
		t.Errorf("cancelled auction should not conflict, got %v", err)
	}
}

func TestUpdateScheduledAuction(t *testing.T) {
	f := newFixture(t)
	admin := f.createUser(t, models.RoleAdmin)
	artist := f.createUser(t, models.RoleArtist)
	artwork := f.createArtwork(t, artist.ID)
	ctx := context.Background()

	scheduled := f.createAuction(t, artwork.ID, models.AuctionStatusScheduled,
		testBase.Add(time.Hour), testBase.Add(2*time.Hour))

	price := money("2000")
	newEnd := testBase.Add(3 * time.Hour)
	updated, err := f.auctions.UpdateScheduledAuction(ctx, admin.ID, scheduled.ID, &models.UpdateAuctionRequest{
		StartingPrice: &price,
		EndsAt:        &newEnd,
	})
	if err != nil {
		t.Fatalf("UpdateScheduledAuction failed: %v", err)
	}
	if !updated.StartingPrice.Equal(price) || !updated.CurrentPrice.Equal(price) {
		t.Errorf("expected starting and current price moved to 2000.00, got %s / %s",
			updated.StartingPrice.StringFixed(2), updated.CurrentPrice.StringFixed(2))
	}
	if !updated.EndsAt.Equal(newEnd) {
		t.Errorf("expected ends_at %v, got %v", newEnd, updated.EndsAt)
	}
	// Untouched fields keep their values.
	if !updated.MinIncrement.Equal(money("100")) {
		t.Errorf("expected min increment unchanged, got %s", updated.MinIncrement.StringFixed(2))
	}
}

func TestUpdateRejectsNonScheduled(t *testing.T) {
	f := newFixture(t)
	admin := f.createUser(t, models.RoleAdmin)
	auction := f.activeAuction(t)

	price := money("2000")
	_, err := f.auctions.UpdateScheduledAuction(context.Background(), admin.ID, auction.ID, &models.UpdateAuctionRequest{
		StartingPrice: &price,
	})
	if !errors.Is(err, auctionerrors.ErrValidation) {
		t.Errorf("expected ErrValidation for active auction, got %v", err)
	}
}

func TestUpdateDeadline(t *testing.T) {
	f := newFixture(t)
	admin := f.createUser(t, models.RoleAdmin)
	auction := f.activeAuction(t)
	ctx := context.Background()

	newEnd := testBase.Add(4 * time.Hour)
	updated, err := f.auctions.UpdateDeadline(ctx, admin.ID, auction.ID, newEnd)
	if err != nil {
		t.Fatalf("UpdateDeadline failed: %v", err)
	}
	if !updated.EndsAt.Equal(newEnd) {
		t.Errorf("expected ends_at %v, got %v", newEnd, updated.EndsAt)
	}

	if _, err := f.auctions.UpdateDeadline(ctx, admin.ID, auction.ID, testBase.Add(-time.Minute)); !errors.Is(err, auctionerrors.ErrValidation) {
		t.Errorf("past deadline: expected ErrValidation, got %v", err)
	}

	if _, err := f.auctions.FinalizeAuction(ctx, admin.ID, auction.ID); err != nil {
		t.Fatalf("FinalizeAuction failed: %v", err)
	}
	if _, err := f.auctions.UpdateDeadline(ctx, admin.ID, auction.ID, testBase.Add(5*time.Hour)); !errors.Is(err, auctionerrors.ErrValidation) {
		t.Errorf("finalized auction: expected ErrValidation, got %v", err)
	}
}

func TestFinalizeAssignsHighestBidder(t *testing.T) {
	f := newFixture(t)
	admin := f.createUser(t, models.RoleAdmin)
	auction := f.activeAuction(t)
	alice := f.createUser(t, models.RoleBuyer)
	bob := f.createUser(t, models.RoleBuyer)
	ctx := context.Background()

	if _, err := f.bidding.PlaceBid(ctx, auction.ID, alice.ID, money("1000")); err != nil {
		t.Fatalf("bid failed: %v", err)
	}
	if _, err := f.bidding.PlaceBid(ctx, auction.ID, bob.ID, money("1200")); err != nil {
		t.Fatalf("bid failed: %v", err)
	}

	finalized, err := f.auctions.FinalizeAuction(ctx, admin.ID, auction.ID)
	if err != nil {
		t.Fatalf("FinalizeAuction failed: %v", err)
	}
	if finalized.Status != models.AuctionStatusFinalized {
		t.Errorf("expected finalized, got %s", finalized.Status)
	}
	if finalized.WinnerID == nil || *finalized.WinnerID != bob.ID {
		t.Errorf("expected winner %s, got %v", bob.ID, finalized.WinnerID)
	}
	if !finalized.CurrentPrice.Equal(money("1200")) {
		t.Errorf("expected final price 1200.00, got %s", finalized.CurrentPrice.StringFixed(2))
	}

	// A second finalize is refused.
	if _, err := f.auctions.FinalizeAuction(ctx, admin.ID, auction.ID); !errors.Is(err, auctionerrors.ErrAlreadyFinalized) {
		t.Errorf("expected ErrAlreadyFinalized, got %v", err)
	}
}

func TestFinalizeWithoutBids(t *testing.T) {
	f := newFixture(t)
	admin := f.createUser(t, models.RoleAdmin)
	auction := f.activeAuction(t)

	finalized, err := f.auctions.FinalizeAuction(context.Background(), admin.ID, auction.ID)
	if err != nil {
		t.Fatalf("FinalizeAuction failed: %v", err)
	}
	if finalized.WinnerID != nil {
		t.Errorf("expected no winner, got %v", finalized.WinnerID)
	}
	if !finalized.CurrentPrice.Equal(money("1000")) {
		t.Errorf("expected price untouched at 1000.00, got %s", finalized.CurrentPrice.StringFixed(2))
	}
}

func TestFinalizeCancelledAuction(t *testing.T) {
	f := newFixture(t)
	admin := f.createUser(t, models.RoleAdmin)
	artist := f.createUser(t, models.RoleArtist)
	artwork := f.createArtwork(t, artist.ID)

	cancelled := f.createAuction(t, artwork.ID, models.AuctionStatusCancelled,
		testBase.Add(-2*time.Hour), testBase.Add(-time.Hour))

	_, err := f.auctions.FinalizeAuction(context.Background(), admin.ID, cancelled.ID)
	if !errors.Is(err, auctionerrors.ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
}

func TestCancelAuction(t *testing.T) {
	f := newFixture(t)
	admin := f.createUser(t, models.RoleAdmin)
	buyer := f.createUser(t, models.RoleBuyer)
	ctx := context.Background()

	empty := f.activeAuction(t)
	cancelled, err := f.auctions.CancelAuction(ctx, admin.ID, empty.ID)
	if err != nil {
		t.Fatalf("CancelAuction failed: %v", err)
	}
	if cancelled.Status != models.AuctionStatusCancelled {
		t.Errorf("expected cancelled, got %s", cancelled.Status)
	}
	// Cancellation keeps the row.
	if f.reload(t, empty.ID).Status != models.AuctionStatusCancelled {
		t.Error("expected the cancelled auction to remain stored")
	}

	withBids := f.activeAuction(t)
	if _, err := f.bidding.PlaceBid(ctx, withBids.ID, buyer.ID, money("1000")); err != nil {
		t.Fatalf("bid failed: %v", err)
	}
	if _, err := f.auctions.CancelAuction(ctx, admin.ID, withBids.ID); !errors.Is(err, auctionerrors.ErrHasBids) {
		t.Errorf("expected ErrHasBids, got %v", err)
	}

	if _, err := f.auctions.CancelAuction(ctx, buyer.ID, empty.ID); !errors.Is(err, auctionerrors.ErrNotAuthorized) {
		t.Errorf("buyer cancel: expected ErrNotAuthorized, got %v", err)
	}
}

func TestReportPayment(t *testing.T) {
	f := newFixture(t)
	admin := f.createUser(t, models.RoleAdmin)
	auction := f.activeAuction(t)
	winner := f.createUser(t, models.RoleBuyer)
	loser := f.createUser(t, models.RoleBuyer)
	ctx := context.Background()

	if _, err := f.bidding.PlaceBid(ctx, auction.ID, winner.ID, money("1000")); err != nil {
		t.Fatalf("bid failed: %v", err)
	}
	if _, err := f.auctions.FinalizeAuction(ctx, admin.ID, auction.ID); err != nil {
		t.Fatalf("FinalizeAuction failed: %v", err)
	}

	report := &models.PaymentReport{TransactionID: "txn-123", PaidAt: testBase.Add(time.Hour)}

	// Only the winner pays.
	if _, err := f.auctions.ReportPayment(ctx, loser.ID, auction.ID, report); !errors.Is(err, auctionerrors.ErrNotAuthorized) {
		t.Errorf("non-winner: expected ErrNotAuthorized, got %v", err)
	}

	paid, err := f.auctions.ReportPayment(ctx, winner.ID, auction.ID, report)
	if err != nil {
		t.Fatalf("ReportPayment failed: %v", err)
	}
	if paid.PaymentStatus != models.PaymentStatusPaid {
		t.Errorf("expected paid, got %s", paid.PaymentStatus)
	}
	if paid.TransactionID == nil || *paid.TransactionID != "txn-123" {
		t.Errorf("expected transaction id recorded, got %v", paid.TransactionID)
	}
	if paid.PaidAt == nil || !paid.PaidAt.Equal(report.PaidAt) {
		t.Errorf("expected paid_at recorded, got %v", paid.PaidAt)
	}

	// A second report is refused.
	if _, err := f.auctions.ReportPayment(ctx, winner.ID, auction.ID, report); !errors.Is(err, auctionerrors.ErrAlreadyPaid) {
		t.Errorf("expected ErrAlreadyPaid, got %v", err)
	}
}

func TestListActiveAuctionsOrdering(t *testing.T) {
	f := newFixture(t)
	artist := f.createUser(t, models.RoleArtist)

	late := f.createAuction(t, f.createArtwork(t, artist.ID).ID, models.AuctionStatusActive,
		testBase.Add(-time.Hour), testBase.Add(3*time.Hour))
	soon := f.createAuction(t, f.createArtwork(t, artist.ID).ID, models.AuctionStatusActive,
		testBase.Add(-time.Hour), testBase.Add(time.Hour))
	// Expired active auctions are not listed, even before a sweep closes them.
	f.createAuction(t, f.createArtwork(t, artist.ID).ID, models.AuctionStatusActive,
		testBase.Add(-2*time.Hour), testBase.Add(-time.Minute))
	f.createAuction(t, f.createArtwork(t, artist.ID).ID, models.AuctionStatusScheduled,
		testBase.Add(time.Hour), testBase.Add(2*time.Hour))

	views, total, err := f.auctions.ListActiveAuctions(context.Background(), 10, 0)
	if err != nil {
		t.Fatalf("ListActiveAuctions failed: %v", err)
	}
	if total != 2 {
		t.Fatalf("expected 2 active auctions, got %d", total)
	}
	if views[0].ID != soon.ID || views[1].ID != late.ID {
		t.Errorf("expected soonest deadline first, got %v then %v", views[0].ID, views[1].ID)
	}
	if !views[0].Biddable {
		t.Error("expected listed auction to be biddable")
	}
	if views[0].RemainingSeconds != 3600 {
		t.Errorf("expected 3600 seconds remaining, got %d", views[0].RemainingSeconds)
	}
}

func TestListBidsForUserWinningFlag(t *testing.T) {
	f := newFixture(t)
	auction := f.activeAuction(t)
	alice := f.createUser(t, models.RoleBuyer)
	bob := f.createUser(t, models.RoleBuyer)
	ctx := context.Background()

	if _, err := f.bidding.PlaceBid(ctx, auction.ID, alice.ID, money("1000")); err != nil {
		t.Fatalf("bid failed: %v", err)
	}
	if _, err := f.bidding.PlaceBid(ctx, auction.ID, bob.ID, money("1100")); err != nil {
		t.Fatalf("bid failed: %v", err)
	}

	aliceBids, err := f.auctions.ListBidsForUser(ctx, alice.ID)
	if err != nil {
		t.Fatalf("ListBidsForUser failed: %v", err)
	}
	if len(aliceBids) != 1 || aliceBids[0].IsWinning {
		t.Errorf("expected alice outbid, got %+v", aliceBids)
	}

	bobBids, err := f.auctions.ListBidsForUser(ctx, bob.ID)
	if err != nil {
		t.Fatalf("ListBidsForUser failed: %v", err)
	}
	if len(bobBids) != 1 || !bobBids[0].IsWinning {
		t.Errorf("expected bob winning, got %+v", bobBids)
	}
}

func TestListWonAuctions(t *testing.T) {
	f := newFixture(t)
	admin := f.createUser(t, models.RoleAdmin)
	auction := f.activeAuction(t)
	winner := f.createUser(t, models.RoleBuyer)
	ctx := context.Background()

	if _, err := f.bidding.PlaceBid(ctx, auction.ID, winner.ID, money("1000")); err != nil {
		t.Fatalf("bid failed: %v", err)
	}
	if _, err := f.auctions.FinalizeAuction(ctx, admin.ID, auction.ID); err != nil {
		t.Fatalf("FinalizeAuction failed: %v", err)
	}

	won, err := f.auctions.ListWonAuctionsForUser(ctx, winner.ID)
	if err != nil {
		t.Fatalf("ListWonAuctionsForUser failed: %v", err)
	}
	if len(won) != 1 || won[0].ID != auction.ID {
		t.Errorf("expected the finalized auction, got %+v", won)
	}
}

func TestAdminReport(t *testing.T) {
	f := newFixture(t)
	admin := f.createUser(t, models.RoleAdmin)
	buyer := f.createUser(t, models.RoleBuyer)
	winner := f.createUser(t, models.RoleBuyer)
	ctx := context.Background()

	sold := f.activeAuction(t)
	if _, err := f.bidding.PlaceBid(ctx, sold.ID, winner.ID, money("1500")); err != nil {
		t.Fatalf("bid failed: %v", err)
	}
	if _, err := f.auctions.FinalizeAuction(ctx, admin.ID, sold.ID); err != nil {
		t.Fatalf("FinalizeAuction failed: %v", err)
	}
	if _, err := f.auctions.ReportPayment(ctx, winner.ID, sold.ID, &models.PaymentReport{
		TransactionID: "txn-1", PaidAt: testBase,
	}); err != nil {
		t.Fatalf("ReportPayment failed: %v", err)
	}

	pending := f.activeAuction(t)
	if _, err := f.bidding.PlaceBid(ctx, pending.ID, winner.ID, money("1000")); err != nil {
		t.Fatalf("bid failed: %v", err)
	}
	if _, err := f.auctions.FinalizeAuction(ctx, admin.ID, pending.ID); err != nil {
		t.Fatalf("FinalizeAuction failed: %v", err)
	}

	f.activeAuction(t)

	if _, err := f.auctions.AdminReport(ctx, buyer.ID); !errors.Is(err, auctionerrors.ErrNotAuthorized) {
		t.Errorf("buyer report: expected ErrNotAuthorized, got %v", err)
	}

	report, err := f.auctions.AdminReport(ctx, admin.ID)
	if err != nil {
		t.Fatalf("AdminReport failed: %v", err)
	}
	if !report.TotalSales.Equal(money("1500")) {
		t.Errorf("expected total sales 1500.00, got %s", report.TotalSales.StringFixed(2))
	}
	if report.PendingPayments != 1 {
		t.Errorf("expected 1 pending payment, got %d", report.PendingPayments)
	}
	if report.ActiveAuctions != 1 {
		t.Errorf("expected 1 active auction, got %d", report.ActiveAuctions)
	}
}
