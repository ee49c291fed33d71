package services

import (
	"fmt"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"auction-house/internal/clock"
	"auction-house/internal/config"
	"auction-house/internal/models"
	"auction-house/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// testBase is the fixed "now" the fake clock starts at.
var testBase = time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)

func setupTestDB(t *testing.T) *gorm.DB {
	// A named shared-cache memory DB so every connection in the pool sees
	// the same data. The name is unique per test to keep tests isolated.
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to connect database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	// sqlite handles one writer at a time; a single connection avoids
	// SQLITE_BUSY noise in concurrent tests.
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(
		&models.User{},
		&models.Artwork{},
		&models.Auction{},
		&models.Bid{},
	)
	if err != nil {
		t.Fatalf("failed to migrate database: %v", err)
	}

	return db
}

type fixture struct {
	db       *gorm.DB
	repo     *repository.Repository
	clk      *clock.Fake
	auctions *AuctionService
	bidding  *BiddingService
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWithConfig(t, config.AuctionConfig{
		SweepInterval:      time.Minute,
		AntiSnipeWindow:    5 * time.Minute,
		AntiSnipeExtension: 5 * time.Minute,
		MaxExtensions:      0,
	})
}

func newFixtureWithConfig(t *testing.T, cfg config.AuctionConfig) *fixture {
	db := setupTestDB(t)
	repo := repository.NewRepository(db)
	clk := clock.NewFake(testBase)
	return &fixture{
		db:       db,
		repo:     repo,
		clk:      clk,
		auctions: NewAuctionService(repo, clk),
		bidding:  NewBiddingService(repo, clk, cfg),
	}
}

func (f *fixture) createUser(t *testing.T, role models.Role) *models.User {
	user := &models.User{
		ID:       uuid.New(),
		Username: fmt.Sprintf("user-%s", uuid.NewString()[:8]),
		Role:     role,
	}
	if err := f.db.Create(user).Error; err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	return user
}

func (f *fixture) createArtwork(t *testing.T, ownerID uuid.UUID) *models.Artwork {
	artwork := &models.Artwork{
		ID:          uuid.New(),
		OwnerID:     ownerID,
		Title:       "Test Artwork",
		Accepted:    true,
		Auctionable: true,
	}
	if err := f.db.Create(artwork).Error; err != nil {
		t.Fatalf("failed to create artwork: %v", err)
	}
	return artwork
}

func (f *fixture) createAuction(t *testing.T, artworkID uuid.UUID, status models.AuctionStatus, startsAt, endsAt time.Time) *models.Auction {
	auction := &models.Auction{
		ID:            uuid.New(),
		ArtworkID:     artworkID,
		StartingPrice: money("1000"),
		CurrentPrice:  money("1000"),
		MinIncrement:  money("100"),
		StartsAt:      startsAt,
		EndsAt:        endsAt,
		Status:        status,
		PaymentStatus: models.PaymentStatusPending,
	}
	if err := f.db.Create(auction).Error; err != nil {
		t.Fatalf("failed to create auction: %v", err)
	}
	return auction
}

// activeAuction creates a running auction that started an hour ago and ends
// an hour from now, with starting price 1000 and increment 100.
func (f *fixture) activeAuction(t *testing.T) *models.Auction {
	artist := f.createUser(t, models.RoleArtist)
	artwork := f.createArtwork(t, artist.ID)
	return f.createAuction(t, artwork.ID, models.AuctionStatusActive,
		testBase.Add(-time.Hour), testBase.Add(time.Hour))
}

func (f *fixture) reload(t *testing.T, id uuid.UUID) *models.Auction {
	var auction models.Auction
	if err := f.db.Where("id = ?", id).First(&auction).Error; err != nil {
		t.Fatalf("failed to reload auction: %v", err)
	}
	return &auction
}

func (f *fixture) countBids(t *testing.T, auctionID uuid.UUID) int64 {
	var count int64
	if err := f.db.Model(&models.Bid{}).Where("auction_id = ?", auctionID).Count(&count).Error; err != nil {
		t.Fatalf("failed to count bids: %v", err)
	}
	return count
}

func money(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
