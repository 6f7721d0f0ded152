package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/redis/go-redis/v9"

	"github.com/ignite/campaign-ingest/internal/api"
	"github.com/ignite/campaign-ingest/internal/archive"
	"github.com/ignite/campaign-ingest/internal/config"
	"github.com/ignite/campaign-ingest/internal/events"
	"github.com/ignite/campaign-ingest/internal/pkg/distlock"
	"github.com/ignite/campaign-ingest/internal/pkg/logger"
	"github.com/ignite/campaign-ingest/internal/progress"
	"github.com/ignite/campaign-ingest/internal/repository/postgres"
	"github.com/ignite/campaign-ingest/internal/service/ingest"
)

// uploadLocks hands out per-campaign locks, Redis first and Postgres
// advisory locks when Redis is not configured.
type uploadLocks struct {
	redis *redis.Client
	db    *sql.DB
}

func (u uploadLocks) NewLock(key string, ttl time.Duration) ingest.Lock {
	return distlock.NewLock(u.redis, u.db, key, ttl)
}

func extractHost(dsn string) string {
	at := strings.Index(dsn, "@")
	if at < 0 {
		return "(unknown)"
	}
	rest := dsn[at+1:]
	if slash := strings.Index(rest, "/"); slash >= 0 {
		rest = rest[:slash]
	}
	return rest
}

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}
	cfg, err := config.LoadFromEnv(configPath)
	if err != nil {
		log.Fatalf("[server] Failed to load config: %v", err)
	}

	if lvl, ok := logger.ParseLevel(cfg.Log.Level); ok {
		logger.SetLevel(lvl)
	} else {
		log.Printf("[server] Unknown log level %q, using info", cfg.Log.Level)
	}
	logger.SetRedactPII(cfg.Log.Redact())

	if cfg.Database.URL == "" {
		log.Fatal("[server] DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("[server] Failed to open database: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime())

	pingCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := db.PingContext(pingCtx); err != nil {
		cancel()
		log.Fatalf("[server] Database unreachable at %s: %v", extractHost(cfg.Database.URL), err)
	}
	cancel()
	log.Printf("[server] Connected to PostgreSQL at %s", extractHost(cfg.Database.URL))

	var redisClient *redis.Client
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			log.Fatalf("[server] Invalid REDIS_URL: %v", err)
		}
		redisClient = redis.NewClient(opts)
		defer redisClient.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Printf("[server] WARNING: Redis ping failed, continuing: %v", err)
		} else {
			log.Println("[server] Connected to Redis")
		}
		cancel()
	} else {
		log.Println("[server] Redis not configured: progress tracking disabled, using Postgres advisory locks")
	}

	opts := ingest.Options{
		MaxUploadBytes: cfg.Upload.MaxBytes,
		BatchSize:      cfg.Upload.BatchSize,
		LockTTL:        cfg.Upload.LockTTL(),
		Locks:          uploadLocks{redis: redisClient, db: db},
	}
	switch cfg.Upload.IDStrategy {
	case "uuid":
		opts.IDs = ingest.UUIDGenerator{}
	default:
		opts.IDs = ingest.NewTimeIDGenerator()
	}

	var tracker *progress.Tracker
	var progressReader api.ProgressReader
	if redisClient != nil {
		tracker = progress.NewTracker(redisClient)
		opts.Progress = tracker
		progressReader = tracker
	}

	var bucket api.BucketPinger
	if cfg.Archive.Enabled && cfg.Archive.S3Bucket != "" {
		archiver, err := archive.NewS3Archiver(context.Background(), cfg.Archive.S3Bucket, cfg.Archive.S3Region, cfg.Archive.Prefix)
		if err != nil {
			log.Printf("[server] WARNING: S3 archiver disabled: %v", err)
		} else {
			opts.Archiver = archiver
			bucket = archiver
			log.Printf("[server] Archiving uploads to s3://%s/%s", cfg.Archive.S3Bucket, cfg.Archive.Prefix)
		}
	}

	if cfg.Events.Enabled && cfg.Events.QueueURL != "" {
		publisher, err := events.NewSQSPublisher(context.Background(), cfg.Events.QueueURL, cfg.Events.Region)
		if err != nil {
			log.Printf("[server] WARNING: SQS publisher disabled: %v", err)
		} else {
			opts.Notifier = publisher
			log.Println("[server] Publishing upload events to SQS")
		}
	}

	svc := ingest.NewService(postgres.NewCampaignReportRepo(db), opts)
	handlers := api.NewHandlers(svc, progressReader, cfg.Upload.MaxBytes)
	health := api.NewHealthChecker(db, redisClient, bucket)
	server := api.NewServer(cfg.Server, handlers, health, cfg.CORS.AllowedOrigins)

	addr := cfg.Server.Addr()
	go func() {
		log.Printf("[server] Listening on %s", addr)
		if err := server.ListenAndServe(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("[server] Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Printf("[server] Received %v, shutting down", sig)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout())
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("[server] Shutdown error: %v", err)
	}
	log.Println("[server] Stopped")
}
