package main

import (
	"context"                         // Lifetime of the server and its clients
	"errors"                          // Server closed check
	"fund_ledger/internal/api"        // HTTP handlers and router
	"fund_ledger/internal/config"     // Configuration
	"fund_ledger/internal/db"         // Database connection and migrations
	"fund_ledger/internal/events"     // RabbitMQ ledger events
	"fund_ledger/internal/ledger"     // Ledger operations
	"fund_ledger/internal/repository" // Fund and history store
	"net/http"                        // HTTP server
	"os"                              // Exit codes
	"os/signal"                       // Shutdown signals
	"syscall"                         // SIGTERM
	"time"                            // Timeouts

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
	"github.com/sirupsen/logrus"   // Logrus for structured logging
	"golang.org/x/sync/errgroup"   // Server and shutdown goroutines
)

const shutdownTimeout = 10 * time.Second

// Main function to set up and run the server
func main() {
	log := logrus.StandardLogger()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.LoadConfig() // Load configuration
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}
	if cfg.IsProd {
		log.SetFormatter(&logrus.JSONFormatter{}) // Machine readable logs in production
		gin.SetMode(gin.ReleaseMode)
	}

	conn, err := db.Open(cfg)
	if err != nil {
		log.Fatalf("failed to connect to DB: %v", err)
	}
	if err := db.Migrate(conn); err != nil {
		log.Fatalf("failed to migrate DB: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Redis is optional, reads go straight to the database without it
	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr, // Redis server address
			Password: cfg.RedisPass, // Redis password
			DB:       cfg.RedisDB,   // Redis database number
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Fatalf("failed to connect to Redis: %v", err)
		}
		defer redisClient.Close()
	}

	var notifier ledger.Notifier
	if cfg.AMQPURL != "" {
		publisher, err := events.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			log.Fatalf("failed to connect to RabbitMQ: %v", err)
		}
		defer publisher.Close()
		notifier = publisher
	}

	svc := ledger.NewService(repository.New(conn), notifier, log)
	router := api.NewRouter(conn, svc, api.ReadCache{Client: redisClient, TTL: cfg.CacheTTL}, cfg.JWTSecret, log)
	if err := router.SetTrustedProxies([]string{"127.0.0.1"}); err != nil {
		log.Fatalf("failed to set trusted proxies: %v", err)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.WithField("port", cfg.AppPort).Info("Server running")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		log.Errorf("server stopped: %v", err)
		os.Exit(1)
	}
}
