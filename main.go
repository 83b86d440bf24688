package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stripe/stripe-go/v82/client"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"tickethub/internal/aichat"
	"tickethub/internal/auth"
	"tickethub/internal/checkout"
	checkoutapi "tickethub/internal/checkout/api"
	"tickethub/internal/config"
	"tickethub/internal/dashboard"
	dashboardapi "tickethub/internal/dashboard/api"
	dashdb "tickethub/internal/dashboard/db"
	"tickethub/internal/database/migrations"
	"tickethub/internal/discount"
	discountapi "tickethub/internal/discount/api"
	discountdb "tickethub/internal/discount/db"
	"tickethub/internal/email"
	"tickethub/internal/events"
	eventsapi "tickethub/internal/events/api"
	eventdb "tickethub/internal/events/db"
	"tickethub/internal/kafka"
	"tickethub/internal/logger"
	"tickethub/internal/purchase"
	"tickethub/internal/scanner"
	scannerapi "tickethub/internal/scanner/api"
	"tickethub/internal/tickets"
	ticketsapi "tickethub/internal/tickets/api"
	ticketdb "tickethub/internal/tickets/db"
	"tickethub/internal/tickets/pdf"
	"tickethub/internal/tickets/qr"
	"tickethub/internal/tickettypes"
	tickettypesapi "tickethub/internal/tickettypes/api"
	typedb "tickethub/internal/tickettypes/db"
	"tickethub/internal/users"
	usersapi "tickethub/internal/users/api"
	userdb "tickethub/internal/users/db"
	"tickethub/internal/waitinglist"
	waitinglistapi "tickethub/internal/waitinglist/api"
	wldb "tickethub/internal/waitinglist/db"
	wlredis "tickethub/internal/waitinglist/redis"
)

func verifyConnections(ctx context.Context, cfg *config.Config, log *logger.Logger) (*bun.DB, *redis.Client) {
	if cfg.Database.DSN == "" {
		log.Fatal("CONFIG", "POSTGRES_DSN not set")
	}

	var sqldb *sql.DB
	var err error
	maxRetries := 5

	for i := 0; i < maxRetries; i++ {
		log.Info("DATABASE", fmt.Sprintf("Attempting to connect to PostgreSQL (attempt %d/%d)", i+1, maxRetries))
		sqldb, err = sql.Open("postgres", cfg.Database.DSN)
		if err == nil {
			err = sqldb.Ping()
			if err == nil {
				break
			}
		}
		log.Error("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL: %v", err))
		if i < maxRetries-1 {
			time.Sleep(2 * time.Second)
		}
	}
	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL after %d attempts: %v", maxRetries, err))
	}

	sqldb.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.Database.MaxLifetime)
	log.Info("DATABASE", "PostgreSQL connection successful")

	bunDB := bun.NewDB(sqldb, pgdialect.New())

	redisClient := redis.NewClient(&redis.Options{
		Addr: cfg.Redis.Addr,
		DB:   cfg.Redis.DB,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Redis connection error: %v", err))
	}
	log.Info("DATABASE", fmt.Sprintf("Redis connection successful to %s (DB: %d)", cfg.Redis.Addr, cfg.Redis.DB))

	return bunDB, redisClient
}

func main() {
	log := logger.NewLogger()
	defer log.Close()

	log.Info("APP", "Starting TicketHub service initialization")

	if err := godotenv.Load(); err != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	} else {
		log.Info("CONFIG", "Loaded environment variables from .env file")
	}
	cfg := config.Load()

	ctx := context.Background()
	bunDB, redisClient := verifyConnections(ctx, cfg, log)
	defer bunDB.Close()
	defer redisClient.Close()

	if err := migrations.CreateTables(ctx, bunDB); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to create tables: %v", err))
	}
	log.Info("DATABASE", "Schema ensured")

	var publisher interface {
		PublishJSON(topic, key string, payload interface{}) error
	} = kafka.Nop{}
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka.Brokers)
		defer producer.Close()
		if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, kafka.RequiredTopics()); err != nil {
			log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
		} else {
			log.Info("KAFKA", "Required topics ensured successfully")
		}
		publisher = producer
	} else {
		log.Warn("KAFKA", "Kafka disabled, domain events will not be published")
	}

	stripeClient := &client.API{}
	stripeClient.Init(cfg.Stripe.SecretKey, nil)

	// Storage layers.
	eventsDB := &eventdb.DB{Bun: bunDB}
	typesDB := &typedb.DB{Bun: bunDB}
	ticketsDB := &ticketdb.DB{Bun: bunDB}
	waitingListDB := &wldb.DB{Bun: bunDB}
	discountsDB := &discountdb.DB{Bun: bunDB}
	usersDB := &userdb.DB{Bun: bunDB}
	dashboardDB := &dashdb.DB{Bun: bunDB}

	// Offer timers over Redis TTL keys.
	timers := wlredis.NewTimers(redisClient, log)
	if err := timers.EnableKeyspaceNotifications(ctx); err != nil {
		log.Warn("REDIS", fmt.Sprintf("Failed to enable keyspace notifications: %v", err))
	} else {
		log.Info("REDIS", "Keyspace notifications enabled for expired events")
	}

	// Services.
	waitingListService := waitinglist.NewService(waitingListDB, timers, eventsDB, publisher, log, cfg.Offers.Duration)
	eventService := events.NewService(eventsDB, waitingListService, publisher, log)
	typeService := tickettypes.NewService(typesDB, eventsDB, log)
	discountService := discount.NewService(discountsDB, log)
	userService := users.NewService(usersDB, usersDB, log)

	emailSender := email.NewSender(cfg.Email, log)
	qrGen := qr.NewGenerator(cfg.Tickets.QRSecret)
	pdfGen := pdf.NewTicketGenerator(cfg.Tickets.FontPath)

	purchaseService := &purchase.Service{
		Bun:         bunDB,
		Events:      eventsDB,
		Tickets:     ticketsDB,
		Types:       typesDB,
		WaitingList: waitingListDB,
		Discounts:   discountsDB,
		Users:       usersDB,
		Timers:      timers,
		Kafka:       publisher,
		Notifier:    emailSender,
		Logger:      log,
	}

	ticketService := tickets.NewService(ticketsDB, stripeClient.Refunds, waitingListService, publisher, qrGen, pdfGen, log)
	scannerService := scanner.NewService(ticketsDB, qrGen, log)
	dashboardService := dashboard.NewService(dashboardDB, eventsDB, cfg.Stripe.PlatformFeePercent, log)

	checkoutService := &checkout.Service{
		Sessions:    stripeClient.CheckoutSessions,
		Fulfill:     purchaseService,
		Events:      eventsDB,
		Types:       typesDB,
		WaitingList: waitingListDB,
		Discounts:   discountService,
		Users:       userService,
		Config:      cfg.Stripe,
		SuccessURL:  cfg.Server.BaseURL + "/checkout/success",
		CancelURL:   cfg.Server.BaseURL + "/checkout/cancelled",
		Logger:      log,
	}

	// Handlers.
	eventHandler := eventsapi.NewHandler(eventService, log)
	typeHandler := tickettypesapi.NewHandler(typeService, log)
	waitingListHandler := waitinglistapi.NewHandler(waitingListService, log)
	discountHandler := discountapi.NewHandler(discountService, log)
	checkoutHandler := checkoutapi.NewHandler(checkoutService, log)
	ticketHandler := ticketsapi.NewHandler(ticketService, log)
	scannerHandler := scannerapi.NewHandler(scannerService, log)
	dashboardHandler := dashboardapi.NewHandler(dashboardService, cfg.Tickets.FontPath, log)
	userHandler := usersapi.NewHandler(userService, log)
	aichatHandler := aichat.NewHandler(cfg.AIChat.CompletionURL, cfg.AIChat.APIKey, log)

	log.Info("HTTP", "Setting up router and middleware")
	r := chi.NewRouter()

	// --- Public routes ---
	r.Handle("/metrics", promhttp.Handler())
	eventHandler.RegisterPublicRoutes(r)
	typeHandler.RegisterPublicRoutes(r)
	discountHandler.RegisterPublicRoutes(r)
	scannerHandler.RegisterRoutes(r)
	checkoutHandler.RegisterWebhookRoutes(r)
	aichatHandler.RegisterRoutes(r)

	// --- Protected routes ---
	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(cfg.Auth.OIDCIssuer))
		log.Info("AUTH", "OIDC middleware applied to protected API routes")

		r.Route("/api", func(r chi.Router) {
			userHandler.RegisterRoutes(r)
			waitingListHandler.RegisterRoutes(r)
			checkoutHandler.RegisterRoutes(r)
			ticketHandler.RegisterRoutes(r)

			r.Route("/seller", func(r chi.Router) {
				eventHandler.RegisterSellerRoutes(r)
				typeHandler.RegisterSellerRoutes(r)
				discountHandler.RegisterSellerRoutes(r)
				dashboardHandler.RegisterSellerRoutes(r)
				ticketHandler.RegisterSellerRoutes(r)
			})
		})
	})
	log.Info("ROUTER", "Routes registered")

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Offer expiry pipeline: Redis drives the common case, the sweep
	// catches lost notifications.
	timers.Subscribe(ctx, func(entryID string) {
		if err := waitingListService.ExpireOffer(ctx, entryID); err != nil {
			log.Error("WAITLIST", fmt.Sprintf("Failed to expire offer %s: %v", entryID, err))
		}
	})
	go func() {
		ticker := time.NewTicker(cfg.Offers.SweepInterval)
		defer ticker.Stop()
		for range ticker.C {
			waitingListService.SweepExpired(ctx)
		}
	}()
	log.Info("WAITLIST", "Offer expiry subscription and sweep started")

	go func() {
		log.Info("HTTP", fmt.Sprintf("TicketHub service running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	log.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-stop

	log.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	ctxShutdown, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error("HTTP", fmt.Sprintf("Server shutdown failed: %v", err))
	} else {
		log.Info("HTTP", "TicketHub service shutdown complete")
	}
}
