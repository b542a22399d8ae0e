package vaultservice

import (
	"log/slog"

	httpadapter "merkledrop/contexts/settlement/vault-service/adapters/http"
	"merkledrop/contexts/settlement/vault-service/adapters/memory"
	"merkledrop/contexts/settlement/vault-service/application/commands"
	"merkledrop/contexts/settlement/vault-service/application/queries"
	"merkledrop/contexts/settlement/vault-service/domain/entities"
	"merkledrop/contexts/settlement/vault-service/ports"
	"merkledrop/internal/shared/chain"
)

type Module struct {
	Handler  httpadapter.Handler
	Commands commands.UseCase
	Deposits queries.DepositQueries
	Config   queries.ConfigQueries

	Store    *memory.Store
	Treasury *memory.Treasury
}

type Dependencies struct {
	Repository ports.Repository
	Roles      ports.RoleStore
	Config     ports.ConfigStore
	Treasury   ports.Treasury
	Outbox     ports.OutboxWriter
	Clock      ports.Clock
	IDGen      ports.IDGenerator
	Logger     *slog.Logger
}

func NewModule(deps Dependencies) Module {
	eligibility := queries.CheckEligibilityUseCase{
		Repository: deps.Repository,
		Clock:      deps.Clock,
		Logger:     deps.Logger,
	}
	commandUseCase := commands.UseCase{
		Repository:  deps.Repository,
		Roles:       deps.Roles,
		Config:      deps.Config,
		Treasury:    deps.Treasury,
		Eligibility: eligibility,
		Outbox:      deps.Outbox,
		Clock:       deps.Clock,
		IDGen:       deps.IDGen,
		Logger:      deps.Logger,
	}
	depositQueries := queries.DepositQueries{Repository: deps.Repository}
	configQueries := queries.ConfigQueries{Config: deps.Config}
	return Module{
		Handler: httpadapter.Handler{
			Commands:    commandUseCase,
			Deposits:    depositQueries,
			Config:      configQueries,
			Eligibility: eligibility,
			Logger:      deps.Logger,
		},
		Commands: commandUseCase,
		Deposits: depositQueries,
		Config:   configQueries,
	}
}

// NewInMemoryModule wires the vault against the in-memory store and treasury.
// The owner address is seeded as the default grantor.
func NewInMemoryModule(owner chain.Address, feeConfig entities.FeeConfig, logger *slog.Logger) Module {
	store := memory.NewStore(owner, feeConfig)
	treasury := memory.NewTreasury()
	module := NewModule(Dependencies{
		Repository: store,
		Roles:      store,
		Config:     store,
		Treasury:   treasury,
		Outbox:     store,
		Clock:      store,
		IDGen:      store,
		Logger:     logger,
	})
	module.Store = store
	module.Treasury = treasury
	return module
}
