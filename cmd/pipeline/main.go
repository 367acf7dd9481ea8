package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"

	"brawlmeta/internal/config"
	"brawlmeta/internal/constants"
	fxmodules "brawlmeta/internal/fx"
	"brawlmeta/internal/service"
	"brawlmeta/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

func main() {
	fx.New(
		fxmodules.Module,
		fx.Invoke(runPipeline),
	).Run()
}

func runPipeline(
	lc fx.Lifecycle,
	collector *service.Collector,
	aggregator *service.Aggregator,
	synergy *service.SynergyExtractor,
	trends *service.TrendDetector,
	narrative *worker.NarrativeWorker,
	cfg *config.Config,
	db *sql.DB,
	logger zerolog.Logger,
) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.MetricsPort),
		Handler: mux,
	}

	loopCtx, cancel := context.WithCancel(context.Background())

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				logger.Info().Str("addr", srv.Addr).Msg("metrics server starting")
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Fatal().Err(err).Msg("metrics server failed")
				}
			}()

			narrative.Start(loopCtx)
			go collector.Run(loopCtx)
			go aggregator.Run(loopCtx)
			go synergy.Run(loopCtx)
			go trends.Run(loopCtx)

			logger.Info().
				Dur("collector_interval", cfg.CollectorInterval).
				Dur("aggregator_interval", cfg.AggregatorInterval).
				Dur("synergy_interval", cfg.SynergyInterval).
				Dur("trend_interval", cfg.TrendInterval).
				Msg("pipeline started")
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info().Msg("shutting down pipeline")
			cancel()
			narrative.Stop()

			shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
			defer cancelShutdown()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error().Err(err).Msg("metrics server shutdown failed")
			}
			if err := db.Close(); err != nil {
				logger.Warn().Err(err).Msg("error closing database connection")
			}
			logger.Info().Msg("pipeline stopped gracefully")
			return nil
		},
	})
}
