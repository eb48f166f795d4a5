package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/pharmaflow/pharmaflow-backend/internal/stock/consumers"
	"github.com/pharmaflow/pharmaflow-backend/internal/stock/handler"
	"github.com/pharmaflow/pharmaflow-backend/internal/stock/repository"
	"github.com/pharmaflow/pharmaflow-backend/internal/stock/service"
	"github.com/pharmaflow/pharmaflow-backend/pkg/config"
	"github.com/pharmaflow/pharmaflow-backend/pkg/database"
	"github.com/pharmaflow/pharmaflow-backend/pkg/httputil"
	"github.com/pharmaflow/pharmaflow-backend/pkg/identity"
	"github.com/pharmaflow/pharmaflow-backend/pkg/logger"
	"github.com/pharmaflow/pharmaflow-backend/pkg/messaging"
)

func main() {
	// Load configuration with validation (fails fast in production if required config is missing)
	cfg, err := config.LoadWithValidation("stock-service")
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	log := logger.New("stock-service", cfg.Server.Environment)
	log.Info().Msg("starting Stock Service")

	// Connect to database
	db, err := database.New(&cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	// Connect to RabbitMQ
	rmq, err := messaging.New(&cfg.RabbitMQ, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
	}
	defer rmq.Close()

	if err := rmq.DeclareDeadLetterQueue("stock-service"); err != nil {
		log.Fatal().Err(err).Msg("failed to declare dead letter queue")
	}

	publisher, err := messaging.NewPublisher(rmq, messaging.ExchangeStockEvents, "stock-service", log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create event publisher")
	}

	// Repositories
	batchRepo := repository.NewBatchRepository(db)
	medicineRepo := repository.NewMedicineRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	// Services
	notifier := service.NewNotifier(notificationRepo, publisher, log)
	ledger := service.NewLedger(db, batchRepo, medicineRepo, notifier, publisher, cfg.Ledger.LockTimeout, log)
	reports := service.NewReports(batchRepo)
	notifications := service.NewNotifications(notificationRepo)
	scanner := service.NewExpiryScanner(batchRepo, notifier, cfg.Scanner.WindowDays, log)
	scheduler := service.NewScanScheduler(scanner, cfg.Scanner.Interval, log)

	// Handlers
	inventoryHandler := handler.NewInventoryHandler(ledger, reports, log)
	notificationHandler := handler.NewNotificationHandler(notifications, log)
	medicineHandler := handler.NewMedicineHandler(medicineRepo, log)

	// Prescription event consumer
	prescriptionConsumer, err := consumers.NewPrescriptionEventConsumer(rmq, ledger, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create prescription event consumer")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := prescriptionConsumer.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start prescription event consumer")
	}

	scheduler.Start(ctx)
	defer scheduler.Stop()

	verifier := identity.NewVerifier(&cfg.JWT)

	// Router
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(httputil.RequestID)
	r.Use(httputil.Logger(log))
	r.Use(httputil.Recoverer(log))
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowOriginFunc: func(r *http.Request, origin string) bool {
			if origin == "http://localhost:3000" || origin == "http://localhost:5173" {
				return true
			}
			return strings.HasSuffix(origin, ".pharmaflow.app")
		},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]interface{}{
			"service":  "stock-service",
			"database": db.Health(r.Context()),
			"rabbitmq": rmq.Health(),
		})
	})

	// API routes (pharmacy identity from the auth service token)
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(identity.Middleware(verifier))

		r.Route("/inventory", func(r chi.Router) {
			r.Get("/", inventoryHandler.List)
			r.Post("/", inventoryHandler.Create)
			r.Get("/low-stock", inventoryHandler.LowStock)
			r.Get("/expiring-soon", inventoryHandler.ExpiringSoon)
			r.Post("/allocate", inventoryHandler.Allocate)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", inventoryHandler.Get)
				r.Put("/", inventoryHandler.Update)
				r.Delete("/", inventoryHandler.Delete)
				r.Post("/adjust", inventoryHandler.Adjust)
				r.Post("/reserve", inventoryHandler.Reserve)
				r.Post("/release", inventoryHandler.Release)
				r.Post("/consume", inventoryHandler.Consume)
			})
		})

		r.Route("/medicines", func(r chi.Router) {
			r.Get("/", medicineHandler.List)
			r.Get("/{id}", medicineHandler.Get)
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", notificationHandler.List)
			r.Get("/unread-count", notificationHandler.UnreadCount)
			r.Post("/read-all", notificationHandler.MarkAllRead)
			r.Post("/{id}/read", notificationHandler.MarkRead)
		})
	})

	// Server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Cancel context to stop consumer and scheduler
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
