package fx

import (
	"brawlmeta/internal/analyst"
	"brawlmeta/internal/api"
	"brawlmeta/internal/cache"
	"brawlmeta/internal/config"
	"brawlmeta/internal/database"
	"brawlmeta/internal/logger"
	"brawlmeta/internal/repository"
	"brawlmeta/internal/resilience"
	"brawlmeta/internal/service"
	"brawlmeta/internal/worker"

	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

func ProvideGuard(log zerolog.Logger) *resilience.Guard {
	return resilience.NewGuard(resilience.DefaultGuardConfig(), log)
}

var Module = fx.Options(
	fx.Provide(logger.New),
	fx.Provide(config.Load),
	fx.Provide(database.New),
	fx.Provide(cache.New),
	// repos
	fx.Provide(repository.NewSnapshotRepository),
	fx.Provide(repository.NewAggregateRepository),
	fx.Provide(repository.NewSynergyRepository),
	fx.Provide(repository.NewTrendRepository),
	fx.Provide(repository.NewRefDataRepository),
	// api client
	fx.Provide(api.NewBrawlClient),
	fx.Provide(ProvideGuard),
	// narrative
	fx.Provide(analyst.New),
	fx.Provide(worker.NewNarrativeWorker),
	// svc
	fx.Provide(service.NewCollector),
	fx.Provide(service.NewAggregator),
	fx.Provide(service.NewSynergyExtractor),
	fx.Provide(service.NewTrendDetector),
)
