// @title           Garage Staff Auth API
// @version         1.0
// @description     Session and quick-access authentication for shared garage terminals.
// @BasePath        /
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"

	_ "github.com/garagedesk/staff-auth/docs"
	"github.com/garagedesk/staff-auth/internal/api"
	"github.com/garagedesk/staff-auth/internal/api/handler"
	"github.com/garagedesk/staff-auth/internal/core/domain"
	"github.com/garagedesk/staff-auth/internal/core/ports"
	"github.com/garagedesk/staff-auth/internal/core/service"
	"github.com/garagedesk/staff-auth/internal/infrastructure/clock"
	mongostore "github.com/garagedesk/staff-auth/internal/infrastructure/db/mongo"
	redisstore "github.com/garagedesk/staff-auth/internal/infrastructure/db/redis"
	"github.com/garagedesk/staff-auth/internal/infrastructure/notify"
	"github.com/garagedesk/staff-auth/internal/infrastructure/queue"
	"github.com/garagedesk/staff-auth/internal/pkg/config"
	"github.com/garagedesk/staff-auth/pkg/logger"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg := config.Load()
	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  !cfg.IsProduction(),
		Service: "staff-auth",
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	mongoClient, db, err := mongostore.Connect(ctx, mongostore.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
	if err != nil {
		return err
	}
	defer func() { _ = mongoClient.Disconnect(context.Background()) }()

	rdb, err := redisstore.Connect(ctx, redisstore.Config{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	if err != nil {
		return err
	}
	defer func() { _ = rdb.Close() }()

	staffRepo := mongostore.NewStaffRepository(db,
		redisstore.NewResetTokenStore(rdb, cfg.Auth.ResetTokenTTL),
		notify.NewLogNotifier(cfg.Auth.ResetBaseURL, log.With().Str("component", "reset").Logger()),
		log.With().Str("component", "staff_store").Logger(),
	)
	if err := staffRepo.EnsureIndexes(ctx); err != nil {
		return err
	}

	events := mongostore.NewEventRepository(db)
	if err := events.EnsureIndexes(ctx); err != nil {
		return err
	}

	workerCtx, stopWorkers := context.WithCancel(context.Background())
	audit := queue.NewDispatcher(cfg.Auth.AuditWorkers, events, log.With().Str("component", "audit").Logger())
	audit.Start(workerCtx)
	defer func() {
		stopWorkers()
		audit.Wait()
	}()

	terminals := service.NewTerminalService(service.TerminalServiceDeps{
		Credentials: staffRepo,
		Profiles:    staffRepo,
		Sessions:    redisstore.NewSessionStore(rdb, cfg.Redis.SessionTTL),
		Scheduler:   clock.NewScheduler(),
		Audit:       audit,
		JWTSecret:   cfg.JWTSecret,
		TokenTTL:    cfg.Auth.TokenTTL,
		IdleTTL:     cfg.Redis.SessionTTL,
		Logger:      log.With().Str("component", "terminals").Logger(),
	})
	defer terminals.Close()
	terminals.StartPruning(ctx, 10*time.Minute)

	staff := service.NewStaffService(staffRepo, log.With().Str("component", "staff").Logger())
	if err := seedManager(ctx, staff, cfg.Bootstrap, log); err != nil {
		return err
	}

	e := api.NewRouter(api.Deps{
		Terminals: terminals,
		Staff:     staff,
		Health:    healthChecks(mongoClient, rdb),
		JWTSecret: cfg.JWTSecret,
		Logger:    log,
	})

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("http server listening")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

func healthChecks(client *mongo.Client, rdb *redis.Client) map[string]handler.Pinger {
	return map[string]handler.Pinger{
		"mongodb": handler.PingFunc(func(ctx context.Context) error { return client.Ping(ctx, nil) }),
		"redis":   handler.PingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() }),
	}
}

// seedManager creates the bootstrap manager account once.
func seedManager(ctx context.Context, staff ports.StaffService, cfg config.BootstrapConfig, log zerolog.Logger) error {
	if cfg.ManagerEmail == "" {
		return nil
	}
	_, err := staff.Create(ctx, ports.CreateStaffInput{
		FullName: cfg.ManagerName,
		Email:    cfg.ManagerEmail,
		Password: cfg.ManagerPassword,
		Role:     string(domain.RoleManager),
	})
	if errors.Is(err, domain.ErrUserExists) {
		log.Debug().Str("email", cfg.ManagerEmail).Msg("bootstrap manager already exists")
		return nil
	}
	if err != nil {
		return err
	}
	log.Info().Str("email", cfg.ManagerEmail).Msg("bootstrap manager created")
	return nil
}
