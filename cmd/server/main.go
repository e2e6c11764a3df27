package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/zynqcloud/securevault/internal/authtoken"
	"github.com/zynqcloud/securevault/internal/blobstore"
	"github.com/zynqcloud/securevault/internal/blobstore/orphanscan"
	"github.com/zynqcloud/securevault/internal/config"
	"github.com/zynqcloud/securevault/internal/httpapi"
	"github.com/zynqcloud/securevault/internal/metadatastore"
	"github.com/zynqcloud/securevault/internal/quota"
	"github.com/zynqcloud/securevault/internal/vault"
)

// orphanSafetyWindow is how long an unreferenced blob must sit before the
// scanner removes it, giving an in-flight upload time to commit its
// metadata record.
const orphanSafetyWindow = 6 * time.Hour

func main() {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).With().Timestamp().Logger()

	cfg := config.Load()

	// Root context — cancelled when a shutdown signal arrives. All
	// long-running background goroutines receive this context so they stop
	// cleanly without needing their own signal wiring.
	ctx, cancel := context.WithCancel(context.Background())

	dbCtx, dbCancel := context.WithTimeout(ctx, 10*time.Second)
	db, err := metadatastore.Connect(dbCtx, cfg.MongoURI, cfg.MongoDBName)
	dbCancel()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to mongo")
	}

	blobs, err := blobstore.New(cfg.UploadPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize blob store")
	}

	q := quota.NewManager(db)
	eng := vault.New(db, db, blobs, q)
	issuer := authtoken.New(cfg.JWTSecret, cfg.JWTExpiresIn)
	deps := httpapi.NewDeps(db, eng, q, issuer, logger, cfg.FrontendURL)

	scanner := &orphanscan.Scanner{
		Root:         blobs.Root(),
		SafetyWindow: orphanSafetyWindow,
		Logger:       logger,
		Known: func(ctx context.Context, userID string) (map[string]bool, error) {
			oid, err := primitive.ObjectIDFromHex(userID)
			if err != nil {
				return nil, err
			}
			return db.KnownBlobIDsForUser(ctx, oid)
		},
	}
	scanDone := scanner.RunPeriodic(ctx, 1*time.Hour)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           httpapi.Router(deps, cfg.RateLimitWindow, cfg.RateLimitMaxRequests, cfg.MaxConcurrentUploads),
		ReadHeaderTimeout: 10 * time.Second,
		// ReadTimeout/WriteTimeout are disabled: a 150 MiB upload at modest
		// bandwidth can run long, and the reverse proxy is the right layer
		// for an outer connection deadline. ReadHeaderTimeout above already
		// closes the Slowloris window.
		ReadTimeout:  0,
		WriteTimeout: 0,
		IdleTimeout:  2 * time.Minute,
	}

	go func() {
		logger.Info().Str("port", cfg.Port).Str("env", cfg.NodeEnv).Msg("securevault starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, shutdownSignals...)
	<-quit

	logger.Info().Msg("shutdown signal received — draining connections")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	<-scanDone

	closeCtx, closeCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer closeCancel()
	if err := db.Close(closeCtx); err != nil {
		logger.Error().Err(err).Msg("error closing mongo connection")
	}

	logger.Info().Msg("securevault stopped")
}
