package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"symptom-coach/internal/catalog"
	"symptom-coach/internal/config"
	"symptom-coach/internal/investigation"
	"symptom-coach/internal/observability"
	"symptom-coach/internal/platform/telegram"
	"symptom-coach/internal/report"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// No logger yet.
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}

	logger, closeLog := observability.NewLogger(observability.LoggerConfig{
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
		LogFile: cfg.LogFile,
	})
	defer closeLog()

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped", zap.Error(err))
		closeLog()
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Knowledge base
	topics, err := catalog.LoadTopics()
	if err != nil {
		return err
	}
	regions, err := catalog.LoadRegions()
	if err != nil {
		return err
	}

	// 2. Infrastructure
	repo, closeDB, err := openRepository(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeDB()

	// 3. Clients
	var tgClient *telegram.Client
	if cfg.ReportsEnabled() {
		tgClient = telegram.NewClient(cfg.TelegramBotToken)
	} else {
		logger.Warn("TELEGRAM_BOT_TOKEN or COACH_CHAT_ID not set; referral reports are disabled")
	}

	// 4. Services
	engine := investigation.NewEngine(repo, topics, regions,
		investigation.WithLogger(logger),
		investigation.WithEarlyDiagnosis(cfg.EarlyDiagnosis),
	)
	var reportSvc investigation.ReportService
	if tgClient != nil {
		reportSvc = report.NewService(tgClient, cfg.CoachChatID, cfg.ReportFontPaths, logger)
	}
	svc := investigation.NewService(engine, repo, reportSvc, logger, investigation.WithLockTimeout(cfg.LockTimeout))
	handler := investigation.NewHandler(svc)

	// 5. Router
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// CORS for frontend
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, Authorization")
			if r.Method == http.MethodOptions {
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	r.Route("/api", func(r chi.Router) {
		investigation.RegisterRoutes(r, handler)
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.Write([]byte("ok")) })

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("port", cfg.Port))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// openRepository connects to Postgres and applies migrations, or falls back
// to the in-memory store when DATABASE_URL is empty.
func openRepository(ctx context.Context, cfg *config.Config, logger *zap.Logger) (investigation.Repository, func(), error) {
	if cfg.DatabaseURL == "" {
		logger.Warn("DATABASE_URL not set; sessions are kept in memory and lost on restart")
		return investigation.NewMemoryRepository(), func() {}, nil
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}

	// Simple retry logic for DB connection
	for i := 0; i < 10; i++ {
		if err = db.PingContext(ctx); err == nil {
			break
		}
		logger.Info("waiting for database", zap.Int("attempt", i+1), zap.Error(err))
		select {
		case <-ctx.Done():
			db.Close()
			return nil, nil, ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	logger.Info("connected to database")

	m, err := migrate.New(cfg.MigrationsPath, cfg.DatabaseURL)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		db.Close()
		return nil, nil, err
	}
	logger.Info("migrations applied")

	return investigation.NewRepository(db), func() { db.Close() }, nil
}
