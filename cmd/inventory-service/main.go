package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	authevents "github.com/botiquin/botiquin-backend/internal/auth/events"
	authhandler "github.com/botiquin/botiquin-backend/internal/auth/handler"
	"github.com/botiquin/botiquin-backend/internal/auth/jwt"
	authrepository "github.com/botiquin/botiquin-backend/internal/auth/repository"
	authservice "github.com/botiquin/botiquin-backend/internal/auth/service"
	"github.com/botiquin/botiquin-backend/internal/inventory/events"
	"github.com/botiquin/botiquin-backend/internal/inventory/handler"
	"github.com/botiquin/botiquin-backend/internal/inventory/repository"
	"github.com/botiquin/botiquin-backend/internal/inventory/service"
	"github.com/botiquin/botiquin-backend/pkg/config"
	"github.com/botiquin/botiquin-backend/pkg/database"
	"github.com/botiquin/botiquin-backend/pkg/dates"
	"github.com/botiquin/botiquin-backend/pkg/httputil"
	"github.com/botiquin/botiquin-backend/pkg/logger"
	"github.com/botiquin/botiquin-backend/pkg/messaging"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func main() {
	// Load configuration with validation (fails fast in production if required config is missing)
	cfg, err := config.LoadWithValidation("inventory-service")
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New("inventory-service", cfg.Server.Environment)
	log.Info().Msg("starting Inventory Service")

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

	// Initialize event publisher
	publisher, err := events.NewInventoryEventPublisher(rmq, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create event publisher")
	}

	// Initialize repositories
	itemRepo := repository.NewItemRepository(db)
	movementRepo := repository.NewMovementRepository(db)
	userRepo := authrepository.NewUserRepository(db)

	// Initialize services
	clock := dates.System
	ledgerService := service.NewLedgerService(db, itemRepo, movementRepo, publisher, clock, log)
	itemService := service.NewItemService(db, itemRepo, movementRepo, ledgerService, publisher, clock, log)
	alertService := service.NewAlertService(itemRepo, clock)

	userPublisher, err := authevents.NewUserEventPublisher(rmq, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create user event publisher")
	}

	jwtManager := jwt.NewManager(&cfg.JWT)
	authService := authservice.NewAuthService(userRepo, jwtManager, userPublisher, log)

	// Initialize handlers
	itemHandler := handler.NewItemHandler(itemService, log)
	alertHandler := handler.NewAlertHandler(alertService, log)
	movementHandler := handler.NewMovementHandler(ledgerService, log)
	authHandler := authhandler.NewAuthHandler(authService, log)

	// Create router
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RealIP)
	r.Use(httputil.RequestID)
	r.Use(httputil.Logger(log))
	r.Use(httputil.Recoverer(log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	authenticated := authhandler.Authenticator(jwtManager)
	adminOnly := authhandler.RequireRoles(authrepository.RoleAdmin)
	stockWriters := authhandler.RequireRoles(authrepository.RoleAdmin, authrepository.RolePharmacy)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, "", map[string]interface{}{
			"status":   "healthy",
			"service":  "inventory-service",
			"database": db.Health(r.Context()),
			"rabbitmq": rmq.Health(),
		})
	})

	// Auth routes
	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/login", authHandler.Login)
		r.Post("/refresh", authHandler.Refresh)

		r.Group(func(r chi.Router) {
			r.Use(authenticated)
			r.Get("/me", authHandler.Me)

			r.Group(func(r chi.Router) {
				r.Use(adminOnly)
				r.Post("/register", authHandler.Register)
				r.Get("/users", authHandler.ListUsers)
				r.Get("/users/{id}", authHandler.GetUser)
				r.Delete("/users/{id}", authHandler.DeleteUser)
				r.Put("/users/{id}/role", authHandler.UpdateRole)
			})
		})
	})

	// Item routes
	r.Route("/api/items", func(r chi.Router) {
		r.Use(authenticated)

		r.Get("/", itemHandler.List)
		r.Get("/alerts", alertHandler.Get)
		r.Get("/search", itemHandler.Search)
		r.Get("/{id}", itemHandler.Get)

		r.Group(func(r chi.Router) {
			r.Use(stockWriters)
			r.Post("/", itemHandler.Create)
			r.Put("/{id}", itemHandler.Update)
		})

		r.With(adminOnly).Delete("/{id}", itemHandler.Delete)
	})

	// Movement routes
	r.Route("/api/movements", func(r chi.Router) {
		r.Use(authenticated)

		r.Get("/", movementHandler.List)
		r.Get("/stats", movementHandler.Stats)
		r.Get("/item/{itemId}", movementHandler.ByItem)
		r.Get("/{id}", movementHandler.Get)
		r.Post("/", movementHandler.Create)
		r.With(adminOnly).Delete("/{id}", movementHandler.Delete)
	})

	// Create server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server
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

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
