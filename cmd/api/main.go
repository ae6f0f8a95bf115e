package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"sessionattendance/internal/attendance"
	"sessionattendance/internal/auth"
	"sessionattendance/internal/config"
	"sessionattendance/internal/directory"
	"sessionattendance/internal/handler"
	"sessionattendance/internal/httpmiddleware"
	"sessionattendance/internal/metrics"
	"sessionattendance/internal/queue"
	"sessionattendance/internal/report"
	"sessionattendance/internal/store"
)

func main() {
	cfg := config.Load()

	// Set Gin mode based on environment
	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}

type backends struct {
	records  attendance.Store
	students directory.Directory
	roster   attendance.Roster
	db       *store.DB
}

func openBackends(ctx context.Context, cfg config.App) (backends, error) {
	if cfg.StoreBackend == "memory" {
		log.Println("using in-memory attendance store; data is lost on restart")
		dir, err := memoryDirectory(cfg)
		if err != nil {
			return backends{}, err
		}
		return backends{records: attendance.NewMemoryStore(), students: dir, roster: dir}, nil
	}

	db, err := store.NewDB(cfg.DatabaseURL, 5*time.Second)
	if db == nil {
		return backends{}, err
	}
	if err != nil {
		log.Printf("warning: db not reachable: %v", err)
	}
	repo := attendance.NewRepository(db.Client)
	dir := directory.NewPostgres(db.Client)
	if cfg.AutoMigrate && err == nil {
		if err := repo.Migrate(ctx); err != nil {
			return backends{}, err
		}
		if _, err := db.Client.ExecContext(ctx, directory.Schema); err != nil {
			return backends{}, err
		}
	}
	return backends{records: repo, students: dir, roster: dir, db: db}, nil
}

// memoryDirectory seeds the in-memory roster from ROSTER_FILE. Enforcing
// the roster against an empty directory would reject every submission.
func memoryDirectory(cfg config.App) (*directory.Memory, error) {
	if cfg.RosterFile == "" {
		if cfg.EnforceRoster {
			return nil, errors.New("ENFORCE_ROSTER with the memory backend requires ROSTER_FILE")
		}
		return directory.NewMemory(), nil
	}
	students, err := directory.LoadCSVFile(cfg.RosterFile)
	if err != nil {
		return nil, fmt.Errorf("load roster file: %w", err)
	}
	log.Printf("loaded %d students from %s", len(students), cfg.RosterFile)
	return directory.NewMemory(students...), nil
}

func runHTTP(cfg config.App) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	be, err := openBackends(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = be.db.Close() }()

	redisClient := store.NewRedis(cfg.RedisAddr)
	defer func() { _ = redisClient.Close() }()
	cache := store.NewSummaryCache(redisClient.Client, cfg.SummaryCacheTTL)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(256)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "attendance:marked")
	}

	var roster attendance.Roster
	if cfg.EnforceRoster {
		roster = be.roster
	}
	svc := attendance.NewService(be.records, roster, time.Now)
	agg := attendance.NewAggregator(be.records)
	exporter := report.NewExporter(be.records, be.students)

	// Without a shared queue there is no worker process, so warm in-process.
	if cfg.QueueBackend == "memory" {
		msgs, err := q.Consume(ctx)
		if err != nil {
			return err
		}
		go cache.Warm(ctx, agg, msgs)
	}

	opts := []handler.Option{
		handler.WithCache(cache),
		handler.WithPublisher(queue.Publisher{Queue: q}),
		handler.WithHealthCheck("redis", redisClient.Healthy),
	}
	if be.db != nil {
		opts = append(opts, handler.WithHealthCheck("db", be.db.Healthy))
	}
	h := handler.New(svc, agg, exporter, opts...)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Disposition"},
		AllowCredentials: !containsWildcard(cfg.CORSOrigins),
		MaxAge:           24 * time.Hour,
	}))
	r.Use(securityHeaders())
	r.Use(metrics.GinMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	limiter := httpmiddleware.NewTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin)
	h.Register(r,
		auth.Require(cfg.JWTSigningKey, cfg.JWTIssuer, auth.RoleAdmin),
		auth.Require(cfg.JWTSigningKey, cfg.JWTIssuer),
		limiter.Middleware(httpmiddleware.SubjectOrIP(auth.Subject)),
	)

	// Graceful shutdown
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting server on :%s (store=%s queue=%s)", cfg.HTTPPort, cfg.StoreBackend, cfg.QueueBackend)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Give outstanding requests 10 seconds to complete
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced shutdown: %v", err)
	}

	log.Println("Server exited")
	return nil
}

// Security headers middleware
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		// Only add HSTS in production
		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}

func containsWildcard(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}
