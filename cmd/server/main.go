package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"auction-house/internal/auth"
	"auction-house/internal/clock"
	"auction-house/internal/config"
	"auction-house/internal/database"
	"auction-house/internal/handlers"
	"auction-house/internal/jobs"
	"auction-house/internal/repository"
	"auction-house/internal/services"
)

func main() {
	log.SetFormatter(&log.JSONFormatter{
		TimestampFormat: "2006-01-02T15:04:05Z07:00",
	})
	log.SetOutput(os.Stdout)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	auth.InitJWT(cfg.App.JWTSecret)

	if err := database.Connect(cfg.GetDSN()); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := database.AutoMigrate(); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	clk := clock.NewReal()
	repo := repository.NewRepository(database.GetDB())

	auctionService := services.NewAuctionService(repo, clk)
	biddingService := services.NewBiddingService(repo, clk, cfg.Auction)

	sweeper := jobs.NewAuctionSweeper(repo, auctionService, clk, cfg.Auction.SweepInterval)
	go sweeper.Start()

	auctionHandler := handlers.NewAuctionHandler(auctionService, biddingService)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger())

	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:3000", "http://localhost:5173"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"time":   clk.Now().Format(time.RFC3339),
		})
	})

	// Public auction routes
	router.GET("/api/auctions", auctionHandler.ListActiveAuctions)
	router.GET("/api/auctions/:id", auctionHandler.GetAuction)

	// Protected routes
	api := router.Group("/api")
	api.Use(auth.AuthMiddleware())
	{
		api.POST("/auctions", auctionHandler.CreateAuction)
		api.PATCH("/auctions/:id", auctionHandler.UpdateAuction)
		api.PUT("/auctions/:id/deadline", auctionHandler.UpdateDeadline)
		api.POST("/auctions/:id/bids", auctionHandler.PlaceBid)
		api.POST("/auctions/:id/finalize", auctionHandler.FinalizeAuction)
		api.POST("/auctions/:id/cancel", auctionHandler.CancelAuction)
		api.POST("/auctions/:id/payment", auctionHandler.ReportPayment)

		api.GET("/my-bids", auctionHandler.GetMyBids)
		api.GET("/my-won-auctions", auctionHandler.GetMyWonAuctions)

		api.GET("/admin/report", auctionHandler.GetAdminReport)
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	go func() {
		log.WithFields(log.Fields{"port": cfg.Server.Port}).Info("Server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")
	sweeper.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Info("Server exited")
}

// requestLogger logs each request with method, path, status and latency.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.WithFields(log.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
		}).Info("HTTP request")
	}
}
