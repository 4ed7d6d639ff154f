package main

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	genesis "lendingcore/config"
	"lendingcore/core/events"
	"lendingcore/core/state"
	nativecommon "lendingcore/native/common"
	"lendingcore/native/lending"
	"lendingcore/observability"
	"lendingcore/observability/logging"
	telemetry "lendingcore/observability/otel"
	"lendingcore/services/lending/eventlog"
	lendingserver "lendingcore/services/lending/server"
	"lendingcore/services/lendingd/config"
	"lendingcore/storage"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "services/lendingd/config.yaml", "path to lendingd config")
	flag.Parse()

	if err := run(cfgPath); err != nil {
		slog.Error("lendingd stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfgPath string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, logCloser, err := logging.SetupWithOptions(logging.Options{
		Service: "lendingd",
		Env:     cfg.Env,
		Level:   cfg.Log.Level,
		File:    cfg.Log.File,
	})
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer logCloser.Close()

	shutdownTelemetry, err := telemetry.Init(context.Background(), telemetry.ConfigFromEnv("lendingd", cfg.Env))
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		if shutdownTelemetry != nil {
			_ = shutdownTelemetry(context.Background())
		}
	}()

	logger.Info("lendingd starting",
		slog.String("listen", cfg.ListenAddress),
		slog.String("storage", cfg.Storage.Backend),
		slog.String("driver", cfg.EventLog.Driver),
		logging.MaskField("dsn", cfg.EventLog.DSN),
		logging.MaskField("jwt_secret", cfg.Auth.JWT.Secret),
	)

	db, err := openStorage(cfg.Storage)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer db.Close()

	logDB, err := eventlog.Open(cfg.EventLog.Driver, cfg.EventLog.DSN)
	if err != nil {
		return fmt.Errorf("open event log: %w", err)
	}
	store, err := eventlog.New(logDB, logger)
	if err != nil {
		return fmt.Errorf("init event log: %w", err)
	}
	store.SetMetrics(observability.Events())

	oracle := lending.NewStaticOracle()
	pauses := nativecommon.NewPauseSet()
	pool := lending.NewPool(db, state.OpenLendingState, oracle)
	pool.SetLogger(logger)
	pool.SetMetrics(observability.Lending())
	pool.SetPauses(pauses)

	if cfg.Genesis != "" {
		g, err := genesis.Load(cfg.Genesis)
		if err != nil {
			return fmt.Errorf("load genesis: %w", err)
		}
		listed, err := g.Apply(pool, oracle, pauses)
		if err != nil {
			return fmt.Errorf("apply genesis: %w", err)
		}
		logger.Info("genesis applied", slog.Int("listed", len(listed)), slog.Int("reserves", len(g.Reserves)))
	}
	// Genesis funding is not journaled; only post-startup activity reaches the log.
	pool.SetEmitter(events.Fanout{store})

	listener, err := net.Listen("tcp", cfg.ListenAddress)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.ListenAddress, err)
	}
	if cfg.TLS.AllowInsecure && !cfg.TLS.Enabled() {
		tcpAddr, _ := listener.Addr().(*net.TCPAddr)
		loopback := tcpAddr != nil && tcpAddr.IP != nil && tcpAddr.IP.IsLoopback()
		if !strings.EqualFold(cfg.Env, "dev") && !loopback {
			listener.Close()
			return errors.New("plaintext lendingd mode is restricted to loopback listeners or dev environment")
		}
	}
	tlsCfg, err := loadServerTLS(cfg.TLS)
	if err != nil {
		listener.Close()
		return fmt.Errorf("configure tls: %w", err)
	}
	if tlsCfg != nil {
		listener = tls.NewListener(listener, tlsCfg)
	}

	service := lendingserver.New(pool, lendingserver.Options{
		Events: store,
		Prices: oracle,
		Pauses: pauses,
		Auth: lendingserver.NewAuthenticator(lendingserver.AuthConfig{
			HMACSecret:       cfg.Auth.JWT.Secret,
			Issuer:           cfg.Auth.JWT.Issuer,
			Audience:         cfg.Auth.JWT.Audience,
			ScopeClaim:       cfg.Auth.JWT.ScopeClaim,
			ClockSkew:        cfg.Auth.JWT.ClockSkew,
			APITokens:        cfg.Auth.APITokens,
			AllowedClientCNs: cfg.Auth.MTLS.AllowedCommonNames,
		}),
		RateLimit: lendingserver.NewRateLimiter(lendingserver.RateLimit{
			RequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
			Burst:             cfg.RateLimit.Burst,
		}),
		Metrics: promhttp.Handler(),
		Logger:  logger,
	})
	httpServer := &http.Server{
		Handler:           service.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("lendingd listening", slog.String("listen", listener.Addr().String()), slog.Bool("tls", tlsCfg != nil))
		serverErr <- httpServer.Serve(listener)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("forcing server stop", slog.Any("error", err))
			_ = httpServer.Close()
		}
		return nil
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve http: %w", err)
		}
		return nil
	}
}

func openStorage(cfg config.StorageConfig) (storage.Database, error) {
	switch cfg.Backend {
	case config.BackendLevelDB:
		return storage.NewLevelDB(cfg.Path)
	case config.BackendBolt:
		return storage.NewBoltDB(cfg.Path)
	default:
		return storage.NewMemDB(), nil
	}
}

func loadServerTLS(cfg config.TLSConfig) (*tls.Config, error) {
	if !cfg.Enabled() {
		if cfg.AllowInsecure {
			return nil, nil
		}
		return nil, fmt.Errorf("tls credentials are required")
	}
	cert, err := tls.LoadX509KeyPair(cfg.CertPath, cfg.KeyPath)
	if err != nil {
		return nil, fmt.Errorf("load tls keypair: %w", err)
	}
	tlsCfg := &tls.Config{
		MinVersion:   tls.VersionTLS12,
		Certificates: []tls.Certificate{cert},
	}
	if cfg.ClientCAPath != "" {
		pem, err := os.ReadFile(cfg.ClientCAPath)
		if err != nil {
			return nil, fmt.Errorf("read client ca: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("parse client ca: invalid pem data")
		}
		tlsCfg.ClientCAs = pool
		tlsCfg.ClientAuth = tls.VerifyClientCertIfGiven
	} else {
		tlsCfg.ClientAuth = tls.NoClientCert
	}
	return tlsCfg, nil
}
