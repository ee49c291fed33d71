package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"auction-house/internal/auctionerrors"
	"auction-house/internal/auth"
	"auction-house/internal/models"
	"auction-house/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type AuctionHandler struct {
	auctionService *services.AuctionService
	biddingService *services.BiddingService
}

func NewAuctionHandler(auctionService *services.AuctionService, biddingService *services.BiddingService) *AuctionHandler {
	return &AuctionHandler{
		auctionService: auctionService,
		biddingService: biddingService,
	}
}

// CreateAuction creates a new auction
// POST /api/auctions
func (h *AuctionHandler) CreateAuction(c *gin.Context) {
	actorID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req models.CreateAuctionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	auction, err := h.auctionService.CreateAuction(c.Request.Context(), actorID, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, auction)
}

// UpdateAuction edits a scheduled auction
// PATCH /api/auctions/:id
func (h *AuctionHandler) UpdateAuction(c *gin.Context) {
	actorID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	auctionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid auction id"})
		return
	}

	var req models.UpdateAuctionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	auction, err := h.auctionService.UpdateScheduledAuction(c.Request.Context(), actorID, auctionID, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, auction)
}

// UpdateDeadline moves the end time of a non-terminal auction
// PUT /api/auctions/:id/deadline
func (h *AuctionHandler) UpdateDeadline(c *gin.Context) {
	actorID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	auctionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid auction id"})
		return
	}

	var req models.UpdateDeadlineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	auction, err := h.auctionService.UpdateDeadline(c.Request.Context(), actorID, auctionID, req.EndsAt)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"auction":     auction,
		"new_ends_at": auction.EndsAt,
	})
}

// ListActiveAuctions lists active auctions, soonest deadline first
// GET /api/auctions
func (h *AuctionHandler) ListActiveAuctions(c *gin.Context) {
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "15"))
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}

	auctions, total, err := h.auctionService.ListActiveAuctions(c.Request.Context(), perPage, (page-1)*perPage)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"auctions": auctions,
		"total":    total,
		"page":     page,
		"per_page": perPage,
	})
}

// GetAuction returns one auction with remaining time, biddable flag and bids
// GET /api/auctions/:id
func (h *AuctionHandler) GetAuction(c *gin.Context) {
	auctionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid auction id"})
		return
	}

	view, err := h.auctionService.GetAuction(c.Request.Context(), auctionID)
	if err != nil {
		respondError(c, err)
		return
	}

	bids, err := h.auctionService.ListBidsForAuction(c.Request.Context(), auctionID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"auction": view,
		"bids":    bids,
	})
}

// PlaceBid places a bid on an auction
// POST /api/auctions/:id/bids
func (h *AuctionHandler) PlaceBid(c *gin.Context) {
	bidderID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	auctionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid auction id"})
		return
	}

	var req models.PlaceBidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	receipt, err := h.biddingService.PlaceBid(c.Request.Context(), auctionID, bidderID, req.Amount)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, receipt)
}

// FinalizeAuction closes an auction by admin action
// POST /api/auctions/:id/finalize
func (h *AuctionHandler) FinalizeAuction(c *gin.Context) {
	actorID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	auctionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid auction id"})
		return
	}

	auction, err := h.auctionService.FinalizeAuction(c.Request.Context(), actorID, auctionID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"auction":     auction,
		"winner_id":   auction.WinnerID,
		"final_price": auction.CurrentPrice,
	})
}

// CancelAuction cancels an auction without bids
// POST /api/auctions/:id/cancel
func (h *AuctionHandler) CancelAuction(c *gin.Context) {
	actorID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	auctionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid auction id"})
		return
	}

	auction, err := h.auctionService.CancelAuction(c.Request.Context(), actorID, auctionID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, auction)
}

// GetMyBids lists the caller's bids with winning flags
// GET /api/my-bids
func (h *AuctionHandler) GetMyBids(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	bids, err := h.auctionService.ListBidsForUser(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, bids)
}

// GetMyWonAuctions lists finalized auctions the caller won
// GET /api/my-won-auctions
func (h *AuctionHandler) GetMyWonAuctions(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	auctions, err := h.auctionService.ListWonAuctionsForUser(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, auctions)
}

// ReportPayment records the payment collaborator's success report
// POST /api/auctions/:id/payment
func (h *AuctionHandler) ReportPayment(c *gin.Context) {
	actorID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	auctionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid auction id"})
		return
	}

	var report models.PaymentReport
	if err := c.ShouldBindJSON(&report); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	auction, err := h.auctionService.ReportPayment(c.Request.Context(), actorID, auctionID, &report)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, auction)
}

// GetAdminReport returns aggregated sales figures
// GET /api/admin/report
func (h *AuctionHandler) GetAdminReport(c *gin.Context) {
	actorID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	report, err := h.auctionService.AdminReport(c.Request.Context(), actorID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}

// respondError maps the error taxonomy to HTTP statuses. Bid rejections
// carry the live minimum so the client can retry with a corrected amount.
func respondError(c *gin.Context, err error) {
	if btl, ok := auctionerrors.AsBidTooLow(err); ok {
		c.JSON(http.StatusConflict, gin.H{
			"error":   btl.Error(),
			"minimum": btl.Minimum,
		})
		return
	}

	switch {
	case errors.Is(err, auctionerrors.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, auctionerrors.ErrNotAuthorized):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, auctionerrors.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, auctionerrors.ErrValidation),
		errors.Is(err, auctionerrors.ErrAuctionNotBiddable),
		errors.Is(err, auctionerrors.ErrAlreadyFinalized),
		errors.Is(err, auctionerrors.ErrHasBids),
		errors.Is(err, auctionerrors.ErrAlreadyPaid):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, auctionerrors.ErrTransient):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
