package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/oscarmarin21/Admin/internal/auth"
	"github.com/oscarmarin21/Admin/internal/config"
	"github.com/oscarmarin21/Admin/internal/httpapi"
	"github.com/oscarmarin21/Admin/internal/identity"
	"github.com/oscarmarin21/Admin/internal/mail"
	"github.com/oscarmarin21/Admin/internal/migrate"
	"github.com/oscarmarin21/Admin/internal/obs"
	"github.com/oscarmarin21/Admin/internal/store/memory"
	"github.com/oscarmarin21/Admin/internal/store/pg"
	"github.com/oscarmarin21/Admin/internal/store/redisstore"
	"github.com/oscarmarin21/Admin/ops/migrations"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log, err := obs.NewLogger(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", zap.Error(err))
		return err
	}

	obs.Init()
	obs.InitBuildInfo(obs.Version, obs.Commit)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, ready, cleanup, err := openStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	tokens, err := auth.NewTokenIssuer(cfg.Tokens.AccessSecret, cfg.Tokens.RefreshSecret,
		auth.WithIssuer(cfg.Tokens.Issuer),
		auth.WithAccessTTL(cfg.Tokens.AccessTTL),
		auth.WithRefreshTTL(cfg.Tokens.RefreshTTL),
	)
	if err != nil {
		return fmt.Errorf("token issuer: %w", err)
	}
	mailer := mail.NewAsync(newMailSender(cfg.Mail, log), log)

	deps.Hasher = auth.NewHasher(cfg.HashConcurrency)
	deps.Tokens = tokens
	deps.Mailer = mailer
	svc, err := identity.New(deps,
		identity.WithLogger(log.Named("identity")),
		identity.WithAppBaseURL(cfg.AppBaseURL),
	)
	if err != nil {
		return err
	}

	allowOrigin := cfg.AppBaseURL
	if cfg.IsDevelopment() {
		allowOrigin = ""
	}
	api := httpapi.New(httpapi.Options{
		Identity:     svc,
		Tokens:       tokens,
		Ready:        ready,
		Logger:       log.Named("http"),
		Version:      obs.Version,
		AllowOrigin:  allowOrigin,
		MaxBodyBytes: cfg.MaxBodyBytes,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("http listening", zap.String("addr", srv.Addr), zap.String("version", obs.Version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http listen: %w", err)
		}
		return nil
	})

	if cfg.GRPCAddr != "" {
		grpcSrv := httpapi.NewGRPCServer(ready, log.Named("grpc"))
		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			return fmt.Errorf("grpc listen: %w", err)
		}
		g.Go(func() error {
			log.Info("grpc listening", zap.String("addr", cfg.GRPCAddr))
			return grpcSrv.Serve(lis)
		})
		g.Go(func() error {
			<-gctx.Done()
			grpcSrv.GracefulStop()
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		if werr := mailer.Wait(shutdownCtx); werr != nil {
			log.Warn("pending mail not flushed", zap.Error(werr))
		}
		return err
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("stopped")
	return nil
}

// openStores wires the configured persistence backends and returns the
// readiness checks for them.
func openStores(ctx context.Context, cfg config.Config, log *zap.Logger) (identity.Deps, httpapi.ReadyProbe, func(), error) {
	var (
		deps     identity.Deps
		checks   = map[string]httpapi.Checker{}
		closers  []func()
		pgStore  *pg.Store
		sessions auth.SessionStore
	)
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	switch cfg.Store.Driver {
	case config.DriverPostgres:
		store, err := pg.Open(cfg.Store.DatabaseURL)
		if err != nil {
			return deps, httpapi.ReadyProbe{}, cleanup, fmt.Errorf("open postgres: %w", err)
		}
		pgStore = store
		closers = append(closers, func() { _ = store.Close() })
		checks["postgres"] = store

		if cfg.RunMigrations {
			applied, err := migrate.NewManager(store.DB(), migrations.Open(cfg.MigrationsDir), migrate.WithLogger(log.Named("migrate"))).Up(ctx)
			if err != nil {
				cleanup()
				return deps, httpapi.ReadyProbe{}, func() {}, fmt.Errorf("migrate: %w", err)
			}
			log.Info("migrations applied", zap.Strings("files", applied))
		}
		deps.Organizations = store.Organizations()
		deps.Users = store.Users()
		deps.Invitations = store.Invitations()
	default:
		log.Warn("using in-memory identity store; data is lost on restart")
		deps.Organizations = memory.NewOrganizations()
		deps.Users = memory.NewUsers()
		deps.Invitations = memory.NewInvitations()
	}

	switch cfg.Store.SessionDriver {
	case config.DriverRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Store.RedisAddr,
			Password: cfg.Store.RedisPassword,
			DB:       cfg.Store.RedisDB,
		})
		closers = append(closers, func() { _ = client.Close() })
		rs := redisstore.NewSessions(client)
		checks["redis"] = rs
		sessions = rs
	case config.DriverPostgres:
		sessions = pgStore.Sessions()
	default:
		sessions = memory.NewSessions()
	}
	deps.Sessions = sessions

	return deps, httpapi.ReadyProbe{Checks: checks}, cleanup, nil
}

func newMailSender(cfg config.MailConfig, log *zap.Logger) mail.Sender {
	switch cfg.Driver {
	case config.MailSMTP:
		return mail.NewSMTPSender(mail.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			From:     cfg.From,
			FromName: "Admin Platform",
		})
	case config.MailHTTP:
		return mail.NewHTTPSender(cfg.HTTPEndpoint, cfg.HTTPToken, cfg.From)
	default:
		return mail.NewLogSender(log.Named("mail"))
	}
}
