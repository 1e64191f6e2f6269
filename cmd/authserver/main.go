// Command authserver runs the OAuth2 token endpoint with client
// authentication.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	vaultapi "github.com/hashicorp/vault/api"
	"github.com/redis/go-redis/v9"

	"github.com/vyrodovalexey/avoauthd/internal/config"
	"github.com/vyrodovalexey/avoauthd/internal/oauth"
	"github.com/vyrodovalexey/avoauthd/internal/observability"
	"github.com/vyrodovalexey/avoauthd/internal/server"
	"github.com/vyrodovalexey/avoauthd/internal/token"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the configuration file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "authserver: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, err := observability.NewLogger(observability.LogConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck // stdout sync errors are not actionable

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tracer, err := observability.NewTracer(observability.TracerConfig{
		ServiceName:  "avoauthd",
		OTLPEndpoint: cfg.Tracing.OTLPEndpoint,
		SamplingRate: cfg.Tracing.SamplingRate,
		Enabled:      cfg.Tracing.Enabled,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	defer func() {
		if err := tracer.Shutdown(context.Background()); err != nil {
			logger.Warn("tracer shutdown failed", observability.Error(err))
		}
	}()

	store, cleanup, err := buildStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	metrics := oauth.NewMetrics("avoauthd")
	resolver, err := oauth.NewResolver(
		&oauth.Config{CanSupportPublicClients: cfg.Auth.CanSupportPublicClients},
		store,
		oauth.WithResolverLogger(logger),
		oauth.WithResolverMetrics(metrics),
	)
	if err != nil {
		return err
	}

	issuer, err := token.NewJWTIssuer(&token.Config{
		Issuer:     cfg.Token.Issuer,
		Audience:   cfg.Token.Audience,
		TTL:        cfg.Token.TTL,
		Algorithm:  cfg.Token.Algorithm,
		SigningKey: []byte(cfg.Token.SigningKey),
	})
	if err != nil {
		return err
	}

	reporter := oauth.NewReporter(cfg.Auth.WriteCustomErrors, oauth.WithReporterLogger(logger))

	srv, err := server.New(&cfg.Server, resolver, issuer, reporter,
		server.WithLogger(logger),
		server.WithMetricsRegistry(metrics.Registry()),
	)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// buildStore creates the client store selected by the configuration. For
// the file backend it seeds an in-memory store and optionally watches the
// registry file for changes.
func buildStore(ctx context.Context, cfg *config.Config, logger observability.Logger) (oauth.Store, func(), error) {
	nop := func() {}

	switch cfg.Clients.Backend {
	case config.BackendFile:
		store := oauth.NewMemoryStore()
		clients, err := oauth.LoadRegistry(cfg.Clients.File.Path)
		if err != nil {
			return nil, nil, err
		}
		store.Replace(clients)
		logger.Info("client registry loaded",
			observability.String("path", cfg.Clients.File.Path),
			observability.Int("clients", store.Count()),
		)

		if !cfg.Clients.File.Watch {
			return store, nop, nil
		}

		watcher, err := config.NewFileWatcher(cfg.Clients.File.Path, func(path string) {
			clients, err := oauth.LoadRegistry(path)
			if err != nil {
				logger.Error("client registry reload failed", observability.Error(err))
				return
			}
			store.Replace(clients)
			logger.Info("client registry reloaded",
				observability.Int("clients", store.Count()),
			)
		}, config.WithWatcherLogger(logger))
		if err != nil {
			return nil, nil, err
		}
		if err := watcher.Start(ctx); err != nil {
			return nil, nil, err
		}
		return store, func() {
			if err := watcher.Stop(); err != nil {
				logger.Warn("registry watcher stop failed", observability.Error(err))
			}
		}, nil

	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Clients.Redis.Address,
			Password: cfg.Clients.Redis.Password,
			DB:       cfg.Clients.Redis.DB,
		})
		opts := []oauth.RedisStoreOption{oauth.WithRedisStoreLogger(logger)}
		if cfg.Clients.Redis.KeyPrefix != "" {
			opts = append(opts, oauth.WithRedisKeyPrefix(cfg.Clients.Redis.KeyPrefix))
		}
		store, err := oauth.NewRedisStore(client, opts...)
		if err != nil {
			return nil, nil, err
		}
		return store, func() {
			if err := client.Close(); err != nil {
				logger.Warn("redis client close failed", observability.Error(err))
			}
		}, nil

	case config.BackendVault:
		vaultConfig := vaultapi.DefaultConfig()
		vaultConfig.Address = cfg.Clients.Vault.Address
		client, err := vaultapi.NewClient(vaultConfig)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create vault client: %w", err)
		}
		client.SetToken(cfg.Clients.Vault.Token)

		store, err := oauth.NewVaultStore(client, cfg.Clients.Vault.Mount, cfg.Clients.Vault.Path,
			oauth.WithVaultStoreLogger(logger))
		if err != nil {
			return nil, nil, err
		}
		return store, nop, nil

	default:
		return nil, nil, fmt.Errorf("unsupported clients backend %q", cfg.Clients.Backend)
	}
}
