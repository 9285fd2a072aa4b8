// internal/app/app.go
// Wires stores, gateways and services from configuration. Shared by the API
// server and sparkctl.

package app

import (
	"context"
	"time"

	firebase "firebase.google.com/go/v4"
	"go.uber.org/zap"

	"github.com/sonuprasad23/spark/internal/auth"
	"github.com/sonuprasad23/spark/internal/common/database"
	"github.com/sonuprasad23/spark/internal/common/storage"
	"github.com/sonuprasad23/spark/internal/config"
	"github.com/sonuprasad23/spark/internal/matching"
	"github.com/sonuprasad23/spark/internal/notification"
	"github.com/sonuprasad23/spark/internal/profile"
	"github.com/sonuprasad23/spark/internal/rooms"
	"github.com/sonuprasad23/spark/internal/scheduler"
)

const mediaURLExpiry = 15 * time.Minute

// App holds the wired services
type App struct {
	Config    *config.Config
	Logger    *zap.Logger
	Directory profile.Directory
	Matching  matching.Service
	Generator *matching.Generator
	Rooms     rooms.Service
	Runner    *scheduler.Runner
	Verifier  auth.TokenVerifier

	closers []func() error
}

// Build connects to the configured backends. Call Close when done.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: logger}
	if err := a.build(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build(ctx context.Context) error {
	cfg, logger := a.Config, a.Logger

	var (
		matchRepo matching.Repository
		roomRepo  rooms.Repository
	)
	switch cfg.StoreBackend {
	case "memory":
		logger.Warn("using in-memory store, data is lost on restart")
		a.Directory = profile.NewMemoryDirectory()
		matchRepo = matching.NewMemoryRepository()
		roomRepo = rooms.NewMemoryRepository()
	default:
		client, err := database.NewFirestoreClient(ctx, &database.FirestoreConfig{
			ProjectID:       cfg.GCPProjectID,
			CredentialsFile: cfg.GCPCredentialsFile,
			CredentialsJSON: cfg.GCPCredentialsJSON,
		})
		if err != nil {
			return err
		}
		a.closers = append(a.closers, client.Close)
		a.Directory = profile.NewFirestoreDirectory(client)
		matchRepo = matching.NewFirestoreRepository(client)
		roomRepo = rooms.NewFirestoreRepository(client)
		logger.Info("connected to Firestore", zap.String("project", cfg.GCPProjectID))
	}

	var fbApp *firebase.App
	if cfg.PushProvider == "fcm" || cfg.AuthProvider == "firebase" {
		var err error
		fbApp, err = notification.NewFirebaseApp(ctx, &notification.FCMConfig{
			ProjectID:       cfg.GCPProjectID,
			CredentialsFile: cfg.GCPCredentialsFile,
			CredentialsJSON: cfg.GCPCredentialsJSON,
		})
		if err != nil {
			return err
		}
	}

	var gateway notification.Gateway
	if cfg.PushProvider == "fcm" {
		fcm, err := notification.NewFCMGateway(ctx, fbApp, a.Directory)
		if err != nil {
			return err
		}
		gateway = fcm
	} else {
		logger.Warn("push notifications are recorded, not sent")
		gateway = notification.NewMockGateway()
	}
	notifier := notification.NewDispatcher(gateway, logger)

	roomOpts, err := a.roomOptions(ctx)
	if err != nil {
		return err
	}
	a.Rooms = rooms.NewService(roomRepo, a.Directory, notifier, logger, roomOpts...)

	resolver := matching.NewResolver(matchRepo, a.Rooms, logger)
	a.Matching = matching.NewService(matchRepo, a.Directory, resolver, logger)

	filter := matching.NewCandidateFilter(a.Directory, matchRepo, cfg.CandidateScanLimit)
	a.Generator = matching.NewGenerator(a.Directory, matchRepo, filter, notifier, logger,
		matching.WithConcurrency(cfg.GenerationConcurrency))

	locker, err := a.locker(ctx)
	if err != nil {
		return err
	}
	a.Runner = scheduler.NewRunner(scheduler.NewJobs(a.Generator, a.Rooms), locker, cfg.JobTimeout, logger)

	switch cfg.AuthProvider {
	case "jwt":
		a.Verifier = auth.NewJWTVerifier(cfg.JWTSecret, cfg.JWTIssuer)
	default:
		verifier, err := auth.NewFirebaseVerifier(ctx, fbApp)
		if err != nil {
			return err
		}
		a.Verifier = verifier
	}
	return nil
}

func (a *App) roomOptions(ctx context.Context) ([]rooms.Option, error) {
	cfg := a.Config
	var opts []rooms.Option

	if cfg.ArchiveBackend == "postgres" {
		db, err := database.NewPostgresDBFromURL(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db.Close)
		store, err := rooms.NewPostgresColdStore(ctx, db)
		if err != nil {
			return nil, err
		}
		opts = append(opts, rooms.WithColdStore(store))
		a.Logger.Info("archiving rooms to PostgreSQL")
	}

	if cfg.MediaEnabled() {
		presigner, err := storage.NewS3Presigner(&storage.S3Config{
			Region:          cfg.S3Region,
			Bucket:          cfg.S3Bucket,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
			CDNURL:          cfg.MediaCDNURL,
			URLExpiry:       mediaURLExpiry,
		})
		if err != nil {
			return nil, err
		}
		opts = append(opts, rooms.WithPresigner(presigner))
		a.Logger.Info("room media uploads enabled", zap.String("bucket", cfg.S3Bucket))
	}
	return opts, nil
}

func (a *App) locker(ctx context.Context) (scheduler.Locker, error) {
	if a.Config.RedisURL == "" {
		a.Logger.Warn("REDIS_URL not set, job locks only cover this process")
		return scheduler.NewLocalLocker(), nil
	}
	client, err := database.NewRedisClientFromURL(ctx, a.Config.RedisURL)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, client.Close)
	return scheduler.NewRedisLocker(client), nil
}

// Schedule converts the configured job times
func Schedule(cfg *config.Config) scheduler.Schedule {
	return scheduler.Schedule{
		WeeklyMatchWeekday: cfg.WeeklyMatchWeekday,
		WeeklyMatchHour:    cfg.WeeklyMatchHour,
		WeeklyMatchMinute:  cfg.WeeklyMatchMinute,
		DailySweepHour:     cfg.DailySweepHour,
		ArchiveWeekday:     cfg.ArchiveWeekday,
		ArchiveHour:        cfg.ArchiveHour,
	}
}

// Close releases connections in reverse order
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.Logger.Warn("failed to close connection", zap.Error(err))
		}
	}
	a.closers = nil
}
