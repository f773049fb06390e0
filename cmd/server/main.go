package main

import (
	"context"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"schoolfees_app/internal/handlers"
	"schoolfees_app/internal/middleware"
	"schoolfees_app/internal/services"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment")
	}

	// Initialize Database
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		log.Fatal("DATABASE_URL not set")
	}

	db, err := services.InitDB(databaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := services.AutoMigrate(db); err != nil {
		log.Fatalf("Failed to run database migrations: %v", err)
	}

	// Redis cache is optional; schedules are read straight from the database
	// without it.
	var cache *services.RedisCache
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		cache, err = services.NewRedisCache(redisURL)
		if err != nil {
			log.Printf("Warning: Redis initialization failed: %v", err)
			cache = nil
		}
	}

	// FCM is optional; without credentials notifications only go to the log.
	var notifier services.Notifier = services.LogNotifier{}
	if credPath := os.Getenv("FIREBASE_CREDENTIALS_PATH"); credPath != "" {
		fcm, err := services.NewFCMNotifier(context.Background(), credPath)
		if err != nil {
			log.Printf("Warning: Firebase initialization failed: %v", err)
		} else {
			notifier = fcm
		}
	}

	// Initialize services
	receiptService := services.NewReceiptService(db)
	balanceService := services.NewBalanceService(db)
	scheduleService := services.NewScheduleService(db, cache, balanceService)
	paymentService := services.NewPaymentService(db, receiptService, balanceService, notifier)
	defaulterService := services.NewDefaulterService(db)
	analyticsService := services.NewAnalyticsService(db)

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true
	e.Validator = handlers.NewRequestValidator()
	e.HTTPErrorHandler = middleware.CustomErrorHandler

	e.Use(echomw.Logger())
	e.Use(echomw.Recover())

	// Initialize handlers
	feeHandler := handlers.NewFeeHandler(scheduleService, paymentService, balanceService)
	reportHandler := handlers.NewReportHandler(defaulterService, analyticsService, paymentService)

	api := e.Group("/api/fees")
	api.Use(middleware.ActorContext())

	// Fee schedule catalog
	api.POST("/structures", feeHandler.CreateSchedule)
	api.GET("/structures", feeHandler.ListSchedules)
	api.GET("/structures/:id", feeHandler.GetSchedule)
	api.POST("/structures/:id", feeHandler.UpdateSchedule)
	api.DELETE("/structures/:id", feeHandler.DeleteSchedule)

	// Payment ledger
	api.POST("/payments", feeHandler.RecordPayment)
	api.GET("/payments", feeHandler.ListPayments)
	api.GET("/payments/:id", feeHandler.GetPayment)
	api.POST("/payments/:id/refund", feeHandler.RefundPayment)

	// Status and reports
	api.GET("/students/:id/status", feeHandler.StudentStatus)
	api.GET("/defaulters", reportHandler.Defaulters)
	api.GET("/analytics", reportHandler.Analytics)
	api.GET("/analytics/trend", reportHandler.AnalyticsTrend)
	api.GET("/export/payments", reportHandler.ExportPayments)
	api.GET("/export/defaulters", reportHandler.ExportDefaulters)

	// Start server
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Printf("Server starting on port %s", port)
	e.Logger.Fatal(e.Start(":" + port))
}
