package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/reelhaus/listingreel/internal/api"
	"github.com/reelhaus/listingreel/internal/billing"
	"github.com/reelhaus/listingreel/internal/config"
	"github.com/reelhaus/listingreel/internal/db"
	"github.com/reelhaus/listingreel/internal/queue"
	"github.com/reelhaus/listingreel/internal/services"
	"github.com/reelhaus/listingreel/internal/storage"
	"github.com/reelhaus/listingreel/internal/worker"
)

func main() {
	log.Println("Starting ListingReel API...")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Connect to database
	database, err := db.New(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()
	log.Println("Connected to database")

	// Connect to Redis queue
	q, err := queue.New(cfg.RedisURL)
	if err != nil {
		log.Fatalf("Failed to connect to queue: %v", err)
	}
	defer q.Close()
	log.Println("Connected to Redis queue")

	// Initialize storage
	stor := storage.New(cfg.StorageURL, cfg.StorageServiceKey, cfg.StorageBucket)
	log.Printf("Initialized storage (bucket: %s)", cfg.StorageBucket)

	// Immutable lookup tables, built once and injected everywhere
	voiceTable := services.DefaultVoiceTable()
	trackTable := services.DefaultTrackTable()

	// Optional scraper — nil disables the endpoint
	var scraperSvc *services.ScraperService
	if cfg.ScraperAPIKey != "" {
		scraperSvc = services.NewScraperService(cfg.ScraperAPIKey)
		log.Println("Listing scraper enabled")
	}

	// Optional billing — nil disables checkout and webhooks
	var billingClient *billing.Client
	if cfg.PaymentSecretKey != "" {
		billingClient = billing.NewClient(cfg.PaymentSecretKey, cfg.PaymentWebhookSecret)
		log.Println("Billing enabled")
	}

	// Create API handler
	handler := api.NewHandler(database, q, stor, scraperSvc, voiceTable, trackTable, billingClient)
	router := api.NewRouter(handler, api.RouterConfig{
		BackendAPIKey:      cfg.BackendAPIKey,
		CorsAllowedOrigins: cfg.CorsAllowedOrigins,
	})

	if cfg.BackendAPIKey != "" {
		log.Println("API key authentication enabled")
	} else {
		log.Println("WARNING: No BACKEND_API_KEY set — API is unprotected (dev mode)")
	}

	// Start HTTP server
	server := &http.Server{
		Addr:    ":" + cfg.APIPort,
		Handler: router,
	}

	// Start worker if enabled
	var workerCtx context.Context
	var workerCancel context.CancelFunc
	if cfg.WorkerEnabled {
		log.Println("Worker enabled, starting background processing...")

		// Clip generation vendor for the ai flow
		var generator services.ClipGenerator
		switch cfg.ClipVendor {
		case "runway":
			generator = services.NewRunwayService(cfg.RunwayKey)
		case "veo":
			generator = services.NewVeoService(cfg.GeminiKey, cfg.VeoModel, stor)
		default:
			generator = services.NewLumaService(cfg.LumaKey)
		}
		log.Printf("Clip vendor: %s", generator.Name())

		ttsSvc := services.NewElevenLabsService(cfg.ElevenLabsKey, voiceTable)
		stitchSvc := services.NewShotstackService(cfg.ShotstackKey, cfg.ShotstackEnv)
		ffmpegSvc := services.NewFFmpegService("/tmp/listingreel")

		// Optional narration — nil skips the voiceover entirely
		var scriptSvc *services.ScriptService
		if cfg.OpenAIKey != "" {
			scriptSvc = services.NewScriptService(cfg.OpenAIKey)
			log.Println("Narration enabled")
		} else {
			log.Println("No OPENAI_API_KEY set — videos render without narration")
		}

		// Create worker
		w := worker.New(database, q, stor, generator, ttsSvc, scriptSvc, stitchSvc, ffmpegSvc, trackTable, cfg.StaleJobMaxAge)

		// Start worker in background
		workerCtx, workerCancel = context.WithCancel(context.Background())
		go w.Start(workerCtx, cfg.MaxConcurrentJobs)
	}

	// Start server in goroutine
	go func() {
		log.Printf("API server listening on :%s", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	// Shutdown worker
	if workerCancel != nil {
		workerCancel()
	}

	// Shutdown HTTP server
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}
