package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"booking-service/config"
	"booking-service/internal/api"
	"booking-service/internal/broker"
	"booking-service/internal/orchestrator"
	"booking-service/internal/pricing"
	"booking-service/internal/redisclient"
	"booking-service/internal/refgen"
	"booking-service/internal/service"
	"booking-service/internal/store"
	"booking-service/internal/token"
	"booking-service/internal/util"
	"booking-service/internal/worker"

	"github.com/gin-gonic/gin"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting booking service")

	tp, err := util.InitTracer("booking-service", cfg.Observ.JaegerEndpoint)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("Error shutting down tracer: %v", err)
		}
	}()

	db, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("Database connected")

	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()
	log.Println("Redis connected")

	producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicBooking)
	defer producer.Close()
	log.Println("Kafka producer initialized")

	eventPublisher := broker.NewEventPublisher(producer)

	codec := token.NewCodec(cfg.Booking.TokenSecret, cfg.Booking.QuoteTTL)
	refs := refgen.New()
	payments := service.NewPaymentGateway()
	payments.DeclineEvery = cfg.Booking.DeclineEvery

	quoteService := service.NewQuoteService(pricing.NewEngine(), codec, refs, redisClient, eventPublisher)
	ledger := service.NewLedger(db, codec, refs, payments, eventPublisher)

	bookingClient := orchestrator.NewHTTPBookingClient(cfg.Booking.APIBaseURL)
	trips := orchestrator.NewOrchestrator(bookingClient, db)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	var reconcileWorker *worker.ReconcileWorker
	if cfg.Booking.WorkerEnabled {
		consumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicBooking, cfg.Kafka.ConsumerGroup)
		reconcileWorker = worker.NewReconcileWorker(consumer, db)
		go func() {
			if err := reconcileWorker.Start(workerCtx); err != nil {
				log.Printf("Reconcile worker error: %v", err)
			}
		}()
	}

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()
	handler := api.NewHandler(quoteService, ledger, trips)
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Printf("Starting HTTP server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	workerCancel()
	if reconcileWorker != nil {
		reconcileWorker.Stop()
	}

	log.Println("Server exited")
}
