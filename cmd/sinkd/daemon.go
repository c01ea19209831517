package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/stellarcarbon/sorocarbon/auth"
	"github.com/stellarcarbon/sorocarbon/config"
	"github.com/stellarcarbon/sorocarbon/core"
	"github.com/stellarcarbon/sorocarbon/core/events"
	"github.com/stellarcarbon/sorocarbon/core/genesis"
	"github.com/stellarcarbon/sorocarbon/indexer"
	"github.com/stellarcarbon/sorocarbon/native/sink"
	"github.com/stellarcarbon/sorocarbon/observability"
	"github.com/stellarcarbon/sorocarbon/rpc"
	"github.com/stellarcarbon/sorocarbon/storage"
)

// daemon owns every long-lived resource of one sinkd process.
type daemon struct {
	cfg         *config.Config
	logger      *slog.Logger
	db          *storage.LevelDB
	node        *core.Node
	client      *sink.Client
	index       *indexer.Store
	broadcaster *rpc.Broadcaster
	idempotency *rpc.IdempotencyStore
	server      *rpc.Server
}

func newDaemon(ctx context.Context, cfg *config.Config, logger *slog.Logger) (d *daemon, err error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("prepare data directory: %w", err)
	}
	d = &daemon{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			d.close()
		}
	}()

	d.db, err = storage.NewLevelDB(filepath.Join(cfg.DataDir, "chain"))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	d.node, err = core.NewNode(d.db, core.HostConfig{
		InitialLedger:  cfg.Host.InitialLedger,
		MinInstanceTTL: cfg.Host.MinInstanceTTL,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create node: %w", err)
	}

	deployment, err := cfg.Deployment()
	if err != nil {
		return nil, err
	}
	plan := genesis.NewPlan(deployment.Admin, deployment.Contract, deployment.SourceAsset, deployment.CertificateAsset)
	if path := strings.TrimSpace(cfg.GenesisFile); path != "" {
		if plan, err = genesis.Load(path, plan); err != nil {
			return nil, err
		}
	}
	contract := sink.New(plan.Contract, nil, logger)
	applied, err := genesis.Apply(ctx, d.node, contract, plan)
	if err != nil {
		return nil, err
	}
	if applied {
		logger.Info("deployment created",
			slog.String("contract", plan.Contract.String()),
			slog.String("source_asset", plan.SourceAsset.String()),
			slog.String("certificate_asset", plan.CertificateAsset.String()),
			slog.Int("accounts", len(plan.Accounts)))
	} else {
		logger.Info("deployment found", slog.String("contract", plan.Contract.String()))
	}

	emitters := events.Fanout{}
	if !cfg.Indexer.Disabled {
		d.index, err = indexer.Open(cfg.IndexerDSN(), logger)
		if err != nil {
			return nil, fmt.Errorf("open indexer: %w", err)
		}
		emitters = append(emitters, d.index)
	}
	d.broadcaster = rpc.NewBroadcaster()
	emitters = append(emitters, d.broadcaster, events.EmitterFunc(func(evt events.Event) {
		observability.Events().RecordEvent(evt.EventType())
	}))
	d.node.SetEventEmitter(emitters)
	d.node.SetDiagnosticEmitter(events.EmitterFunc(func(evt events.Event) {
		rendered := events.Render(evt)
		if rendered == nil {
			return
		}
		logger.Debug("contract diagnostic",
			slog.String("type", rendered.Type),
			slog.Any("attributes", rendered.Attributes))
	}))

	d.idempotency, err = rpc.OpenIdempotencyStore(filepath.Join(cfg.DataDir, "idempotency.db"), nil)
	if err != nil {
		return nil, fmt.Errorf("open idempotency store: %w", err)
	}
	tokens := auth.NewTokenVerifier(auth.TokenConfig{
		HMACSecret: cfg.JWTSecretValue(),
		Issuer:     cfg.Auth.Issuer,
		Audience:   cfg.Auth.Audience,
		ClockSkew:  cfg.Auth.ClockSkew.Duration,
	})
	if !tokens.Enabled() {
		logger.Warn("bearer tokens disabled; admin calls need signed approvals")
	}

	d.client = sink.NewClient(d.node, contract, logger)
	d.server = rpc.NewServer(d.client, d.index, d.broadcaster, rpc.Config{
		RateLimit: rpc.RateLimit{
			RequestsPerMinute: float64(cfg.RateLimit.RequestsPerMinute),
			Burst:             cfg.RateLimit.Burst,
			TrustedProxies:    cfg.RateLimit.TrustedProxies,
		},
		Tokens:      tokens,
		Idempotency: d.idempotency,
		Logger:      logger,
	})
	observability.Sink().SetLedger(d.node.Ledger())
	return d, nil
}

// tick advances the ledger clock by one sequence.
// nonceSweepLedgers bounds the expiration ledgers swept per tick.
const nonceSweepLedgers = 256

func (d *daemon) tick() {
	seq, err := d.node.AdvanceLedger(1)
	if err != nil {
		d.logger.Error("advance ledger", slog.Any("error", err))
		return
	}
	observability.Sink().SetLedger(seq)
	if removed, err := d.node.PruneNonces(nonceSweepLedgers); err != nil {
		d.logger.Error("prune nonces", slog.Any("error", err))
	} else if removed > 0 {
		d.logger.Debug("pruned expired nonces", slog.Int("count", removed), slog.Uint64("ledger", uint64(seq)))
	}
	d.server.SweepVisitors()
}

func (d *daemon) runLedger(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.tick()
		}
	}
}

// serve blocks until ctx is cancelled or the listener fails.
func (d *daemon) serve(ctx context.Context) error {
	go d.runLedger(ctx, d.cfg.Host.LedgerInterval.Duration)

	errCh := make(chan error, 1)
	go func() { errCh <- d.server.Start(d.cfg.ListenAddress) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := d.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown rpc: %w", err)
	}
	return <-errCh
}

func (d *daemon) close() error {
	var errs []error
	if d.idempotency != nil {
		errs = append(errs, d.idempotency.Close())
	}
	if d.index != nil {
		errs = append(errs, d.index.Close())
	}
	if d.db != nil {
		d.db.Close()
	}
	return errors.Join(errs...)
}
