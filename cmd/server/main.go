package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/oljc/arcoserve/internal/config"
	"github.com/oljc/arcoserve/internal/domain/models"
	"github.com/oljc/arcoserve/internal/domain/service"
	"github.com/oljc/arcoserve/internal/infrastructure/crypto"
	"github.com/oljc/arcoserve/internal/infrastructure/events"
	"github.com/oljc/arcoserve/internal/infrastructure/monitoring"
	redisinfra "github.com/oljc/arcoserve/internal/infrastructure/redis"
	"github.com/oljc/arcoserve/internal/infrastructure/secrets"
	"github.com/oljc/arcoserve/internal/infrastructure/signing"
	"github.com/oljc/arcoserve/internal/interfaces/http/handlers"
	"github.com/oljc/arcoserve/internal/interfaces/http/router"
	"github.com/oljc/arcoserve/internal/worker"
	apperrors "github.com/oljc/arcoserve/pkg/errors"
	"github.com/oljc/arcoserve/pkg/logger"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	log := monitoring.NewZapLogger(cfg.Log.Level)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil && !errors.Is(err, context.Canceled) {
		log.Error(ctx, "server exited", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log logger.Logger) error {
	rdb, err := redisinfra.NewClient(ctx, &cfg.Redis)
	if err != nil {
		return err
	}
	defer rdb.Close()

	secretProvider, err := secrets.FromConfig(cfg)
	if err != nil {
		return err
	}
	jwtSecret, err := secretProvider.JWTSecret(ctx)
	if err != nil {
		return err
	}
	signingSecret, err := secretProvider.SigningSecret(ctx)
	if err != nil {
		return err
	}

	tokens := crypto.NewJWTManager(crypto.JWTConfig{
		Secret:     jwtSecret,
		Issuer:     cfg.JWT.Issuer,
		Audience:   cfg.JWT.Audience,
		AccessTTL:  cfg.JWT.AccessTTL(),
		RefreshTTL: cfg.JWT.RefreshTTL(),
	})
	signer := signing.NewSigner(signing.Credential{
		AccessKeyID: cfg.Signature.AccessKeyID,
		SecretKey:   signingSecret,
	})

	var publisher service.RevocationPublisher
	if cfg.Kafka.Enabled {
		kp := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, log)
		publisher = kp
		if closer, ok := kp.(io.Closer); ok {
			defer closer.Close()
		}
	}

	atomicStore := redisinfra.NewAtomicStore(rdb)
	revocation := redisinfra.NewRevocationStore(rdb, tokens, publisher, log)
	scheduler := worker.NewScheduler(atomicStore, cfg.JWT.AccessTTL())

	authHandler := handlers.NewAuthHandler(tokens, revocation, rejectAllUsers{},
		scheduler, cfg.JWT.RefreshTokenTTL, log)
	healthHandler := handlers.NewHealthHandler(rdb)
	metrics := monitoring.NewMetrics(nil)

	gin.SetMode(gin.ReleaseMode)
	engine := router.New(router.Deps{
		Atomic:           atomicStore,
		Tokens:           tokens,
		Revocation:       revocation,
		Signer:           signer,
		Auth:             authHandler,
		Health:           healthHandler,
		Metrics:          metrics,
		Log:              log,
		RateLimitEnabled: cfg.RateLimit.Enabled,
		EnablePprof:      cfg.Server.EnablePprof,
		SignMaxAge:       time.Duration(cfg.Signature.MaxAge) * time.Second,
		DefaultRateLimit: models.RateLimitPolicy{
			Limit:    cfg.RateLimit.DefaultLimit,
			Window:   time.Duration(cfg.RateLimit.DefaultWindow) * time.Second,
			ByIP:     true,
			ByDevice: true,
		},
	})

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      engine,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	cleanupWorker := worker.NewWorker(atomicStore, revocation, 30*time.Second, 50, log)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		log.Info(groupCtx, "http server listening", logger.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		return cleanupWorker.Run(groupCtx)
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return group.Wait()
}

// rejectAllUsers stands in for the external user module. Deployments replace it
// with the real credential check at wiring time.
type rejectAllUsers struct{}

func (rejectAllUsers) Authenticate(ctx context.Context, username, password string) (int64, string, error) {
	return 0, "", apperrors.ErrUnauthorized
}
