// Package appgw hosts the mini-app gateway daemon: the HTTP API, the
// operation store, and the wiring between the on-chain orchestrator and the
// token index.
package appgw

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"mintgram/indexer"
	"mintgram/ipfs"
	"mintgram/launchpad"
	"mintgram/ledger"
	"mintgram/notify"
	"mintgram/observability/logging"
	telemetry "mintgram/observability/otel"
	"mintgram/orchestrator"
	"mintgram/services/appgw/auth"
	"mintgram/services/appgw/models"
	"mintgram/services/appgw/server"
	"mintgram/wallet"
)

// Main initialises and runs the gateway daemon.
func Main() error {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "services/appgw/config.yaml", "path to gateway configuration")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("MINTGRAM_ENV"))
	logger := logging.Setup("appgw", env)
	otlpEndpoint := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"))
	otlpHeaders := telemetry.ParseHeaders(os.Getenv("OTEL_EXPORTER_OTLP_HEADERS"))
	insecure := true
	if value := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_INSECURE")); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			insecure = parsed
		}
	}
	shutdownTelemetry, err := telemetry.Init(context.Background(), telemetry.Config{
		ServiceName: "appgw",
		Environment: env,
		Endpoint:    otlpEndpoint,
		Insecure:    insecure,
		Headers:     otlpHeaders,
		Metrics:     true,
		Traces:      true,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		if shutdownTelemetry != nil {
			_ = shutdownTelemetry(context.Background())
		}
	}()

	cfg, err := LoadConfig(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := openDatabase(cfg.Database)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	if err := models.AutoMigrate(db); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	store := models.NewStore(db)

	rpcClient, err := ledger.Dial(cfg.Chain.RPCEndpoint)
	if err != nil {
		return fmt.Errorf("dial rpc: %w", err)
	}
	defer rpcClient.Close()

	bootCtx, cancelBoot := context.WithTimeout(context.Background(), 10*time.Second)
	signer, err := wallet.NewKeyWallet(bootCtx, rpcClient, cfg.Chain.SignerKey, cfg.Chain.ChainID)
	cancelBoot()
	if err != nil {
		return fmt.Errorf("init signer wallet: %w", err)
	}
	logger.Info("signer wallet ready", "address", signer.Address().Hex(), "chain", cfg.Chain.ChainID)

	waitOpts := ledger.DefaultReceiptWaitOptions()
	if cfg.Confirm.PollInterval.Duration > 0 {
		waitOpts.PollingInterval = cfg.Confirm.PollInterval.Duration
	}
	if cfg.Confirm.Timeout.Duration > 0 {
		waitOpts.Timeout = cfg.Confirm.Timeout.Duration
	}
	if cfg.Confirm.Confirmations > 0 {
		waitOpts.Confirmations = cfg.Confirm.Confirmations
	}

	factory, err := launchpad.NewFactory(signer, rpcClient, cfg.FactoryAddress(),
		launchpad.WithReceiptWaitOptions(waitOpts),
		launchpad.WithLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("init factory: %w", err)
	}

	indexClient, err := indexer.New(cfg.Index.Endpoint,
		indexer.WithChainID(cfg.Chain.ChainID),
		indexer.WithRateLimit(cfg.Index.RequestsPerSecond, int(cfg.Index.RequestsPerSecond)+1),
	)
	if err != nil {
		return fmt.Errorf("init index client: %w", err)
	}
	feed, err := indexer.NewFeedBuilder(indexClient, cfg.ReserveToken(),
		indexer.WithSymbolPrefix(cfg.Chain.SymbolPrefix),
		indexer.WithConcurrency(cfg.Index.FeedConcurrency),
	)
	if err != nil {
		return fmt.Errorf("init feed builder: %w", err)
	}

	var pinner server.Pinner
	if cfg.Pinning.Endpoint != "" {
		pinClient, err := ipfs.NewClient(cfg.Pinning.Endpoint, cfg.Pinning.APIKey)
		if err != nil {
			return fmt.Errorf("init pinning client: %w", err)
		}
		pinner = pinClient
	}

	registry := prometheus.NewRegistry()
	existOpts := orchestrator.DefaultExistenceOptions()
	if cfg.Existence.Attempts > 0 {
		existOpts.MaxAttempts = cfg.Existence.Attempts
	}
	if cfg.Existence.Interval.Duration > 0 {
		existOpts.Interval = cfg.Existence.Interval.Duration
	}
	coordinatorOpts := []orchestrator.Option{
		orchestrator.WithNotifier(notify.SlogSink{Logger: logger}),
		orchestrator.WithExistenceChecker(indexClient),
		orchestrator.WithExistenceOptions(existOpts),
		orchestrator.WithReceiptWaitOptions(waitOpts),
		orchestrator.WithLogger(logger),
		orchestrator.WithMetrics(orchestrator.NewMetrics(registry)),
	}
	if cfg.Confirm.Deadline.Duration > 0 {
		coordinatorOpts = append(coordinatorOpts, orchestrator.WithDeadline(cfg.Confirm.Deadline.Duration))
	}
	coordinator := orchestrator.NewCoordinator(signer, factory, rpcClient, cfg.Chain.ChainID, coordinatorOpts...)

	verifier, err := auth.NewVerifier(cfg.JWTSecret)
	if err != nil {
		return fmt.Errorf("init verifier: %w", err)
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv, err := server.New(rootCtx, server.Config{
		Store:        store,
		Runner:       coordinator,
		Tokens:       indexClient,
		Feed:         feed,
		Pinner:       pinner,
		Verifier:     verifier,
		Reserve:      cfg.ReserveToken(),
		SymbolPrefix: cfg.Chain.SymbolPrefix,
		Registry:     registry,
		Logger:       logger,
		WriteRate:    cfg.RateLimit,
		WriteBurst:   cfg.RateBurst,
	})
	if err != nil {
		return fmt.Errorf("init server: %w", err)
	}

	httpServer := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("gateway listening", "addr", cfg.ListenAddress)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	case <-rootCtx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("gateway stopped")
	return nil
}

func openDatabase(cfg DatabaseConfig) (*gorm.DB, error) {
	switch cfg.Driver {
	case "postgres":
		return gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{})
	case "sqlite":
		return gorm.Open(sqlite.Open(cfg.DSN), &gorm.Config{})
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}
