package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/jcondina/sum-reservations/api"
	"github.com/jcondina/sum-reservations/auth"
	"github.com/jcondina/sum-reservations/booking"
	"github.com/jcondina/sum-reservations/datastore"
	rh "github.com/jcondina/sum-reservations/route-handlers"
)

const (
	defaultPort        = "8080"
	defaultDatabaseURL = "user=postgres password=password dbname=reservations host=localhost port=5432 sslmode=disable"
	defaultJWTSecret   = "dev-only-secret"
	dbPingTimeout      = 5 * time.Second
	shutdownTimeout    = 15 * time.Second
	dbMaxOpenConns     = 25
	dbMaxIdleConns     = 25
	dbConnMaxLifetime  = 5 * time.Minute
)

type config struct {
	port        string
	databaseURL string
	jwtSecret   string
	tokenTTL    time.Duration
}

func main() {
	cfg := loadConfig()

	db, err := setupDatabase(cfg.databaseURL)
	if err != nil {
		log.Fatalf("Database setup failed: %v", err)
	}
	defer db.Close()

	userRepo := datastore.NewUserRepository(db)
	reservationRepo := datastore.NewReservationRepository(db)

	bookingService := booking.NewService(reservationRepo)
	authenticator := auth.NewAuthenticator(userRepo)
	tokenIssuer := auth.NewTokenIssuer([]byte(cfg.jwtSecret), cfg.tokenTTL)

	reservationHandler := rh.NewReservationHandler(bookingService, userRepo)
	adminHandler := rh.NewAdminHandler(bookingService)
	authHandler := rh.NewAuthHandler(authenticator, tokenIssuer)

	router := api.SetupRoutes(
		reservationHandler,
		adminHandler,
		authHandler,
		tokenIssuer,
		userRepo,
	)

	startServer(cfg.port, router)
}

func loadConfig() config {
	port := os.Getenv("PORT")
	if port == "" {
		port = defaultPort
	}

	dbURL := os.Getenv("DB_CONNECTION_STRING")
	if dbURL == "" {
		dbURL = defaultDatabaseURL
		log.Println("WARNING: DB_CONNECTION_STRING not set, using default local connection string.")
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		jwtSecret = defaultJWTSecret
		log.Println("WARNING: JWT_SECRET not set, using an insecure development secret.")
	}

	tokenTTL := auth.DefaultTokenTTL
	if raw := os.Getenv("TOKEN_TTL"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil || parsed <= 0 {
			log.Printf("WARNING: invalid TOKEN_TTL %q, using default %s.", raw, tokenTTL)
		} else {
			tokenTTL = parsed
		}
	}

	return config{
		port:        port,
		databaseURL: dbURL,
		jwtSecret:   jwtSecret,
		tokenTTL:    tokenTTL,
	}
}

func setupDatabase(connStr string) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(dbMaxOpenConns)
	db.SetMaxIdleConns(dbMaxIdleConns)
	db.SetConnMaxLifetime(dbConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), dbPingTimeout)
	defer cancel()

	if err = db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	log.Println("Database connection successful")
	return db, nil
}

func startServer(port string, router http.Handler) {
	server := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	shutdownSignal := make(chan os.Signal, 1)
	signal.Notify(shutdownSignal, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("Server starting on port %s", port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-shutdownSignal
	log.Println("Shutdown signal received, initiating graceful shutdown...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Graceful shutdown failed: %v", err)
	}

	log.Println("Server gracefully stopped")
}
