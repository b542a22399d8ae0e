package builderservice

import (
	"log/slog"

	httpadapter "merkledrop/contexts/commitment/builder-service/adapters/http"
	"merkledrop/contexts/commitment/builder-service/adapters/memory"
	"merkledrop/contexts/commitment/builder-service/application/commands"
	"merkledrop/contexts/commitment/builder-service/application/queries"
	"merkledrop/contexts/commitment/builder-service/ports"
)

type Module struct {
	Handler httpadapter.Handler
	Store   *memory.Store
}

type Dependencies struct {
	Artifacts ports.ArtifactRepository
	FeeRates  ports.FeeRateSource
	Clock     ports.Clock
	Logger    *slog.Logger
}

func NewModule(deps Dependencies) Module {
	commandUseCase := commands.UseCase{
		Artifacts: deps.Artifacts,
		FeeRates:  deps.FeeRates,
		Clock:     deps.Clock,
		Logger:    deps.Logger,
	}
	queryUseCase := queries.UseCase{
		Artifacts: deps.Artifacts,
	}
	return Module{
		Handler: httpadapter.Handler{
			Commands: commandUseCase,
			Queries:  queryUseCase,
			Logger:   deps.Logger,
		},
	}
}

func NewInMemoryModule(feeRates ports.FeeRateSource, logger *slog.Logger) Module {
	store := memory.NewStore()
	module := NewModule(Dependencies{
		Artifacts: store,
		FeeRates:  feeRates,
		Clock:     store,
		Logger:    logger,
	})
	module.Store = store
	return module
}
