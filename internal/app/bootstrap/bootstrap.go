package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	builderservice "merkledrop/contexts/commitment/builder-service"
	builderpostgres "merkledrop/contexts/commitment/builder-service/adapters/postgres"
	builderqueries "merkledrop/contexts/commitment/builder-service/application/queries"
	vaultservice "merkledrop/contexts/settlement/vault-service"
	vaultpostgres "merkledrop/contexts/settlement/vault-service/adapters/postgres"
	vaultworkers "merkledrop/contexts/settlement/vault-service/application/workers"
	"merkledrop/contexts/settlement/vault-service/domain/entities"
	vaultports "merkledrop/contexts/settlement/vault-service/ports"
	"merkledrop/internal/platform/config"
	"merkledrop/internal/platform/db"
	"merkledrop/internal/platform/httpserver"
	"merkledrop/internal/platform/messaging"
	"merkledrop/internal/shared/chain"
)

// Package bootstrap is the composition root.
// Keep construction/wiring here so module code stays framework-agnostic.

type APIApp struct {
	server   *httpserver.Server
	postgres *db.Postgres
	logger   *slog.Logger
}

type WorkerApp struct {
	postgres     *db.Postgres
	watcher      vaultworkers.ReleaseWatcher
	outboxRelay  vaultworkers.OutboxRelay
	watcherOn    bool
	relayOn      bool
	pollInterval time.Duration
	logger       *slog.Logger
}

func BuildAPI() (*APIApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "api")
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		return nil, errors.New("POSTGRES_DSN is required")
	}

	pg, err := db.Connect(cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}

	vaultModule, _, err := buildVaultModule(cfg, pg, logger)
	if err != nil {
		return nil, err
	}

	builderRepo := builderpostgres.NewRepository(pg.DB, logger)
	builderModule := builderservice.NewModule(builderservice.Dependencies{
		Artifacts: builderRepo,
		FeeRates:  vaultModule.Config,
		Clock:     builderpostgres.SystemClock{},
		Logger:    logger,
	})

	server := httpserver.New(builderModule, vaultModule, logger, normalizeAddr(cfg.HTTPPort))
	return &APIApp{
		server:   server,
		postgres: pg,
		logger:   logger,
	}, nil
}

func BuildWorker() (*WorkerApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "worker")
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		return nil, errors.New("POSTGRES_DSN is required")
	}

	pg, err := db.Connect(cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}

	kafka, err := messaging.NewKafka(cfg.KafkaBrokers, logger)
	if err != nil {
		return nil, err
	}

	vaultModule, repo, err := buildVaultModule(cfg, pg, logger)
	if err != nil {
		return nil, err
	}

	caller, err := chain.ParseAddress(cfg.AdminAddress)
	if err != nil {
		return nil, fmt.Errorf("VAULT_ADMIN_ADDRESS: %w", err)
	}

	builderRepo := builderpostgres.NewRepository(pg.DB, logger)
	artifacts := artifactSource{
		queries: builderqueries.UseCase{Artifacts: builderRepo},
	}

	return &WorkerApp{
		postgres: pg,
		watcher: vaultworkers.ReleaseWatcher{
			Deposits:    vaultModule.Deposits,
			Eligibility: vaultModule.Handler.Eligibility,
			Withdrawals: vaultModule.Commands,
			Artifacts:   artifacts,
			Caller:      caller,
			Logger:      logger,
		},
		outboxRelay: vaultworkers.OutboxRelay{
			Outbox:    repo,
			Publisher: kafka,
			Clock:     vaultpostgres.SystemClock{},
			BatchSize: 100,
			Logger:    logger,
		},
		watcherOn:    cfg.EnableReleaseWatcher,
		relayOn:      cfg.EnableOutboxRelay,
		pollInterval: cfg.WatcherPollInterval,
		logger:       logger,
	}, nil
}

// buildVaultModule wires the vault against postgres and seeds config and
// roles from process configuration. Seeding is idempotent.
func buildVaultModule(
	cfg config.Config,
	pg *db.Postgres,
	logger *slog.Logger,
) (vaultservice.Module, *vaultpostgres.Repository, error) {
	owner, err := chain.ParseAddress(cfg.OwnerAddress)
	if err != nil {
		return vaultservice.Module{}, nil, fmt.Errorf("VAULT_OWNER_ADDRESS: %w", err)
	}
	feeRecipient, err := chain.ParseAddress(cfg.FeeRecipient)
	if err != nil {
		return vaultservice.Module{}, nil, fmt.Errorf("FEE_RECIPIENT_ADDRESS: %w", err)
	}

	repo := vaultpostgres.NewRepository(pg.DB, logger)
	treasury := vaultpostgres.NewTreasury(pg.DB, logger)
	module := vaultservice.NewModule(vaultservice.Dependencies{
		Repository: repo,
		Roles:      repo,
		Config:     repo,
		Treasury:   treasury,
		Outbox:     repo,
		Clock:      vaultpostgres.SystemClock{},
		IDGen:      vaultpostgres.UUIDGenerator{},
		Logger:     logger,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	feeConfig := entities.FeeConfig{
		RateBps:   cfg.FeeRateBps,
		Recipient: feeRecipient,
	}
	if err := repo.SeedConfig(ctx, feeConfig); err != nil {
		return vaultservice.Module{}, nil, err
	}

	now := time.Now().UTC()
	if err := repo.GrantRole(ctx, entities.RoleGrant{
		Principal: owner,
		Role:      entities.RoleOwner,
		GrantedBy: owner,
		GrantedAt: now,
	}); err != nil {
		return vaultservice.Module{}, nil, err
	}
	if strings.TrimSpace(cfg.AdminAddress) != "" {
		admin, err := chain.ParseAddress(cfg.AdminAddress)
		if err != nil {
			return vaultservice.Module{}, nil, fmt.Errorf("VAULT_ADMIN_ADDRESS: %w", err)
		}
		if err := repo.GrantRole(ctx, entities.RoleGrant{
			Principal: admin,
			Role:      entities.RoleAdmin,
			GrantedBy: owner,
			GrantedAt: now,
		}); err != nil {
			return vaultservice.Module{}, nil, err
		}
	}
	return module, repo, nil
}

// artifactSource exposes the commitment builder's stored proofs to the
// vault watcher without coupling the contexts at the application layer.
type artifactSource struct {
	queries builderqueries.UseCase
}

var _ vaultports.ArtifactSource = artifactSource{}

func (s artifactSource) ReleaseEntries(
	ctx context.Context,
	root chain.Digest,
) ([]vaultports.ReleaseEntry, error) {
	artifact, err := s.queries.GetArtifact(ctx, root)
	if err != nil {
		return nil, err
	}
	entries := make([]vaultports.ReleaseEntry, 0, len(artifact.Proofs))
	for _, proof := range artifact.Proofs {
		entries = append(entries, vaultports.ReleaseEntry{
			Recipient:   proof.Account,
			Amount:      proof.Amount,
			ReleaseTime: proof.ReleaseTime,
			Proof:       proof.Proof,
		})
	}
	return entries, nil
}

func (a *APIApp) Run(_ context.Context) error {
	if a.logger != nil {
		a.logger.Info("api app started",
			"event", "bootstrap_api_started",
			"module", "internal/app/bootstrap",
			"layer", "platform",
		)
	}
	return a.server.Start()
}

func (a *APIApp) Close() error {
	if a.postgres != nil {
		return a.postgres.Close()
	}
	return nil
}

func (w *WorkerApp) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	w.logger.Info("worker app started",
		"event", "bootstrap_worker_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"poll_interval", w.pollInterval.String(),
		"release_watcher", w.watcherOn,
		"outbox_relay", w.relayOn,
	)

	for {
		if w.watcherOn {
			if err := w.watcher.RunOnce(ctx); err != nil {
				return err
			}
		}
		if w.relayOn {
			if err := w.outboxRelay.RunOnce(ctx); err != nil {
				return err
			}
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (w *WorkerApp) Close() error {
	if w.postgres != nil {
		return w.postgres.Close()
	}
	return nil
}

func normalizeAddr(port string) string {
	value := strings.TrimSpace(port)
	if value == "" {
		return ":8080"
	}
	if strings.HasPrefix(value, ":") {
		return value
	}
	return ":" + value
}
