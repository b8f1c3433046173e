package main

import (
	"context"
	"database/sql"
	"encoding/json"
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
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"ms-checkin/internal/accounts"
	accounts_db "ms-checkin/internal/accounts/db"
	"ms-checkin/internal/accounts/account_api"
	"ms-checkin/internal/attendees"
	attendees_db "ms-checkin/internal/attendees/db"
	"ms-checkin/internal/attendees/attendee_api"
	"ms-checkin/internal/auth"
	"ms-checkin/internal/checkin"
	checkin_db "ms-checkin/internal/checkin/db"
	"ms-checkin/internal/checkin/checkin_api"
	"ms-checkin/internal/config"
	"ms-checkin/internal/events"
	events_db "ms-checkin/internal/events/db"
	"ms-checkin/internal/events/event_api"
	"ms-checkin/internal/kafka"
	"ms-checkin/internal/logger"
	"ms-checkin/internal/notify"
	"ms-checkin/internal/sse"
)

func verifyConnections(ctx context.Context, cfg *config.Config, log *logger.Logger) (*bun.DB, *redis.Client) {
	var sqldb *sql.DB
	var err error
	maxRetries := 5

	for i := 0; i < maxRetries; i++ {
		log.Info("DATABASE", fmt.Sprintf("Attempting to connect to PostgreSQL (attempt %d/%d)", i+1, maxRetries))
		sqldb, err = sql.Open("postgres", cfg.Database.DSN)
		if err == nil {
			err = sqldb.Ping()
		}
		if err == nil {
			break
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

	if !cfg.Redis.Enabled {
		log.Warn("REDIS", "Redis disabled; live attendance updates stay instance-local")
		return bunDB, nil
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr: cfg.Redis.Addr,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Redis connection error: %v", err))
	}
	log.Info("DATABASE", fmt.Sprintf("Redis connection successful to %s", cfg.Redis.Addr))

	return bunDB, redisClient
}

// subscribeAttendanceUpdates feeds attendance updates published by any
// instance into the local SSE emitter.
func subscribeAttendanceUpdates(rdb *redis.Client, emitter *sse.AttendanceEmitter, log *logger.Logger) {
	ctx := context.Background()
	pubsub := rdb.Subscribe(ctx, notify.AttendanceChannel)
	log.Info("REDIS", fmt.Sprintf("Subscribed to %s", notify.AttendanceChannel))

	go func() {
		for msg := range pubsub.Channel() {
			var update sse.AttendanceUpdate
			if err := json.Unmarshal([]byte(msg.Payload), &update); err != nil {
				log.Error("REDIS", fmt.Sprintf("Failed to decode attendance update: %v", err))
				continue
			}
			emitter.Emit(update)
		}
	}()
}

func main() {
	log := logger.NewLogger()
	defer log.Close()

	log.Info("APP", "Starting Check-in Service initialization")

	if err := godotenv.Load(); err != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	}

	cfg := config.Load()
	if cfg.Auth.JWTSecret == "" {
		log.Fatal("CONFIG", "JWT_SECRET not set")
	}

	ctx := context.Background()
	bunDB, redisClient := verifyConnections(ctx, cfg, log)
	defer bunDB.Close()
	if redisClient != nil {
		defer redisClient.Close()
	}

	var kafkaProducer *kafka.Producer
	if cfg.Kafka.Enabled {
		if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, []string{cfg.Kafka.CheckinTopic}); err != nil {
			log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
		}
		kafkaProducer = kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.CheckinTopic)
		defer kafkaProducer.Close()
		log.Info("KAFKA", fmt.Sprintf("Producer initialized for topic %s", cfg.Kafka.CheckinTopic))
	} else {
		log.Warn("KAFKA", "Kafka disabled; check-in records are not streamed")
	}

	tokenManager := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenLifetime)

	accountDB := &accounts_db.DB{Bun: bunDB}
	accountService := accounts.NewService(accountDB, tokenManager, log)
	eventService := events.NewService(&events_db.DB{Bun: bunDB}, cfg.Tokens, log)
	attendeeService := attendees.NewService(&attendees_db.DB{Bun: bunDB}, eventService, cfg.Tokens, log)

	emitter := sse.NewAttendanceEmitter()
	notifier := &notify.Notifier{
		Producer: kafkaProducer,
		Redis:    redisClient,
		Emitter:  emitter,
		Stats:    eventService,
		Logger:   log,
	}
	checkinService := checkin.NewService(&checkin_db.DB{Bun: bunDB}, notifier, log)

	accountHandler := &account_api.Handler{AccountService: accountService, Logger: log}
	eventHandler := &event_api.Handler{EventService: eventService, Logger: log}
	liveHandler := event_api.NewLiveHandler(eventService, emitter, log)
	attendeeHandler := &attendee_api.Handler{AttendeeService: attendeeService, Logger: log}
	checkinHandler := &checkin_api.Handler{CheckinService: checkinService, Logger: log}

	if redisClient != nil {
		subscribeAttendanceUpdates(redisClient, emitter, log)
	}

	log.Info("HTTP", "Setting up router and middleware")
	r := chi.NewRouter()

	r.Route("/api/v1", func(r chi.Router) {
		// --- Public routes ---
		r.Post("/auth/register", accountHandler.Register)
		r.Post("/auth/login", accountHandler.Login)
		r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"status":"ok"}`))
		})

		// --- Check-in: organizer token optional, scanner key accepted ---
		r.Group(func(r chi.Router) {
			r.Use(auth.OptionalMiddleware(tokenManager, accountDB))
			r.Post("/checkin", checkinHandler.Checkin)
		})

		// --- Organizer-only routes ---
		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(tokenManager))

			r.Get("/me", accountHandler.Me)

			r.Route("/events", func(r chi.Router) {
				r.Post("/", eventHandler.CreateEvent)
				r.Get("/", eventHandler.ListEvents)

				r.Route("/{eventID}", func(r chi.Router) {
					r.Get("/", eventHandler.GetEvent)
					r.Get("/scanner-key", eventHandler.GetScannerKey)
					r.Post("/scanner-key/rotate", eventHandler.RotateScannerKey)
					r.Get("/stats", eventHandler.GetStats)
					r.Get("/attendance/live", liveHandler.HandleEventAttendance)

					r.Route("/attendees", func(r chi.Router) {
						r.Post("/", attendeeHandler.CreateAttendee)
						r.Post("/bulk", attendeeHandler.BulkCreateAttendees)
						r.Get("/", attendeeHandler.ListAttendees)
						r.Get("/{attendeeID}", attendeeHandler.GetAttendee)
						r.Get("/{attendeeID}/qr", attendeeHandler.GetQRPayload)
					})
				})
			})
		})
	})

	// No WriteTimeout: it would cut off long-lived SSE attendance streams.
	server := &http.Server{
		Addr:        cfg.Server.Port,
		Handler:     r,
		ReadTimeout: cfg.Server.ReadTimeout,
		IdleTimeout: cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP", fmt.Sprintf("Check-in Service running on %s", cfg.Server.Port))
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
		log.Info("HTTP", "Check-in Service shutdown complete")
	}
}
