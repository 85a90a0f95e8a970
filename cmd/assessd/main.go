// Command assessd runs the clinical assessment backend: it ingests spoken
// answers, normalizes the audio, transcribes it, scores the transcript and
// serves the results over HTTP.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/cometik/assessd/api"
	"github.com/cometik/assessd/audio"
	"github.com/cometik/assessd/bootstrap"
	"github.com/cometik/assessd/catalog"
	"github.com/cometik/assessd/config"
	"github.com/cometik/assessd/database"
	"github.com/cometik/assessd/ledger"
	"github.com/cometik/assessd/logger"
	"github.com/cometik/assessd/observability"
	"github.com/cometik/assessd/scoring"
	"github.com/cometik/assessd/server"
	"github.com/cometik/assessd/storage/local"
	"github.com/cometik/assessd/transcription"
	"github.com/cometik/assessd/transcription/whisper"
	"github.com/cometik/assessd/version"
)

const serviceName = "assessd"

func main() {
	configPath := flag.String("config", "", "path to the config file")
	flag.Parse()

	var cfg config.Config
	var opts []config.Option
	if *configPath != "" {
		opts = append(opts, config.WithConfigFile(*configPath))
	}
	if err := config.Load(&cfg, opts...); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.Logging)
	log := logger.GetGlobalLogger()

	app, err := bootstrap.NewApp(serviceName, version.GetShortVersion(), &cfg, bootstrap.WithLogger(log))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build application: %v\n", err)
		os.Exit(1)
	}

	if err := run(context.Background(), app, &cfg); err != nil {
		log.Error("Application exited with error", map[string]interface{}{
			"error": err.Error(),
		})
		os.Exit(1)
	}
}

func run(ctx context.Context, app *bootstrap.App, cfg *config.Config) error {
	log := app.Logger

	if cfg.Observability.Enabled {
		tp, err := observability.InitTracer(ctx, serviceName, cfg.Observability)
		if err != nil {
			return fmt.Errorf("init tracer: %w", err)
		}
		mp, err := observability.InitMeter(ctx, serviceName, cfg.Observability)
		if err != nil {
			return fmt.Errorf("init meter: %w", err)
		}
		app.OnStop(func(ctx context.Context) error {
			if err := tp.Shutdown(ctx); err != nil {
				log.Warn("Tracer shutdown error", map[string]interface{}{"error": err.Error()})
			}
			return mp.Shutdown(ctx)
		})
	}

	metrics, err := observability.NewPipelineMetrics(observability.Meter(serviceName + "/pipeline"))
	if err != nil {
		return fmt.Errorf("init pipeline metrics: %w", err)
	}

	db, err := database.Open(ctx, cfg.Database, log)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}

	blobs, err := local.NewStorage(cfg.Storage.BasePath)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}

	cat, err := catalog.Load(cfg.Catalog)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	log.Info("Catalog loaded", map[string]interface{}{
		"path":   cfg.Catalog.Path,
		"scenes": len(cat.Scenes()),
	})

	orchestrator, err := buildTranscription(cfg.Transcription, log)
	if err != nil {
		return fmt.Errorf("init transcription: %w", err)
	}

	decoder := audio.NewFFmpegDecoder(cfg.Audio.FFmpegPath)
	normalizer := audio.NewNormalizer(cfg.Audio, decoder, log)
	scorer := scoring.NewScorer(cfg.Scoring)

	led := ledger.New(cfg.Pipeline, ledger.Deps{
		Store:       ledger.NewStore(db, log),
		Blobs:       blobs,
		Normalizer:  normalizer,
		Transcriber: orchestrator,
		Scorer:      scorer,
		Catalog:     cat,
		Metrics:     metrics,
		Logger:      log,
	})

	srv := server.New(cfg.Server, log)
	srv.ApplyDefaults(serviceName, app.Components.HealthAll)
	api.NewHandler(cfg.API, led, cat, log).Register(srv.GinEngine())

	// Start order: database first, ledger (runs restart recovery), then the
	// listener so traffic only arrives once the pipeline can accept it.
	if err := app.RegisterComponent(database.NewComponent(db)); err != nil {
		return err
	}
	if err := app.RegisterComponent(led); err != nil {
		return err
	}
	if err := app.RegisterComponent(server.NewComponent(srv)); err != nil {
		return err
	}

	return app.Run(ctx)
}

// buildTranscription wires the provider registry and the orchestrator.
func buildTranscription(cfg transcription.Config, log *logger.Logger) (*transcription.Orchestrator, error) {
	registry := transcription.NewRegistry()
	registry.RegisterFactory(whisper.ProviderName, whisper.Factory())

	timeout, err := time.ParseDuration(cfg.Whisper.Timeout)
	if err != nil {
		return nil, fmt.Errorf("whisper timeout: %w", err)
	}
	provider, err := registry.Create(whisper.ProviderName, map[string]any{
		"url":     cfg.Whisper.URL,
		"model":   cfg.Whisper.Model,
		"timeout": timeout,
	})
	if err != nil {
		return nil, err
	}
	registry.Set(whisper.ProviderName, provider)

	return transcription.NewOrchestrator(cfg, registry, log), nil
}
