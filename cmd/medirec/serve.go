package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/suPer8Hu/medirec/internal/app"
	"github.com/suPer8Hu/medirec/internal/backend"
	"github.com/suPer8Hu/medirec/internal/config"
	"github.com/suPer8Hu/medirec/internal/httpapi"
	"github.com/suPer8Hu/medirec/internal/httpapi/handlers"
	"github.com/suPer8Hu/medirec/internal/logger"
	"github.com/suPer8Hu/medirec/internal/predict"
	"github.com/suPer8Hu/medirec/internal/session"
	"github.com/suPer8Hu/medirec/internal/store/gcs"
	"github.com/suPer8Hu/medirec/internal/store/rabbitmq"
	"github.com/suPer8Hu/medirec/internal/store/redisstore"
	"github.com/suPer8Hu/medirec/internal/store/sqlstore"
	"github.com/suPer8Hu/medirec/internal/supabase"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API until interrupted",
	RunE:  runServe,
}

// rowStore is what the configured row backend provides.
type rowStore interface {
	backend.ProfileStore
	backend.HistoryStore
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return err
	}
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var closers []func()
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}()

	var sessions backend.SessionStore = backend.NewMemorySessionStore()
	if cfg.RedisAddr != "" {
		rdb, err := redisstore.NewClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return err
		}
		closers = append(closers, func() { _ = rdb.Close() })
		sessions = redisstore.NewSessionStore(rdb, cfg.SessionKey, redisstore.DefaultTTL)
	}

	sb := supabase.New(cfg.SupabaseURL, cfg.SupabaseAnonKey,
		supabase.WithSessionStore(sessions),
		supabase.WithLogger(log),
	)
	closers = append(closers, sb.Close)
	if cfg.AutoRefreshToken {
		sb.StartAutoRefresh(ctx, 30*time.Second)
	}

	var rows rowStore = sb
	if cfg.RowStore == config.RowStoreSQL {
		db, err := sqlstore.Open(cfg.DBDSN)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		rows = sqlstore.NewRepo(db)
	}

	var avatars backend.FileStore = sb.Bucket(cfg.AvatarBucket)
	if cfg.FileStore == config.FileStoreGCS {
		st, err := gcs.New(ctx, cfg.GCSBucket, cfg.GCSPublicBaseURL)
		if err != nil {
			return err
		}
		closers = append(closers, func() { _ = st.Close() })
		avatars = st
	}

	deps := app.Deps{
		Predictor: predict.NewClient(cfg.PredictAPIURL, cfg.PredictTimeout),
		Auth:      sb,
		Profiles:  rows,
		History:   rows,
		Avatars:   avatars,
		Log:       log,
	}
	if cfg.RabbitURL != "" {
		pub, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
		if err != nil {
			return fmt.Errorf("rabbit publisher: %w", err)
		}
		closers = append(closers, func() { _ = pub.Close() })
		deps.Notifier = pub
	}

	mirror := session.New(sb, rows, log)
	if err := mirror.Start(ctx); err != nil {
		return err
	}
	closers = append(closers, mirror.Close)
	deps.Session = mirror

	if cfg.LogMode == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}
	h := handlers.NewHandler(app.NewService(deps), mirror, log)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.NewRouter(h, log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", cfg.HTTPAddr, "row_store", cfg.RowStore, "file_store", cfg.FileStore)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	// closing the mirror ends open event streams so Shutdown can drain
	mirror.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
