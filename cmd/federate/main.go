package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/kelseyhightower/envconfig"

	"github.com/sheetfed/federate/internal/federation"
	"github.com/sheetfed/federate/internal/models"
	"github.com/sheetfed/federate/internal/platform"
	"github.com/sheetfed/federate/pkg/observability"
)

//nolint:gochecknoglobals,revive // build variables
var (
	commit string = "unspecified"
	app    string = "federate"
)

type config struct {
	LogFormat    string     `default:"text" split_words:"true"`
	LogLevel     slog.Level `default:"info" split_words:"true"`
	LogAddSource bool       `default:"false" split_words:"true"`

	ConfigPath string `default:"federation.json" split_words:"true"`
	SourceDir  string `default:"data/source" split_words:"true"`
	OutputDir  string `default:"data/federated" split_words:"true"`
}

func main() {
	var cfg config
	err := envconfig.Process("federate", &cfg)
	if err != nil {
		slog.Error("unable to parse config", slog.Any("error", err))
		os.Exit(1)
	}

	if err := mainErr(&cfg); err != nil {
		slog.Error("federation run failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func mainErr(cfg *config) error {
	fedCfg, err := loadFederationConfig(cfg.ConfigPath)
	if err != nil {
		return err
	}

	logLevel := cfg.LogLevel
	if fedCfg.Debug {
		logLevel = slog.LevelDebug
	}

	log := observability.ConfigureLogger(&observability.Config{
		LogFormat:    cfg.LogFormat,
		LogLevel:     logLevel,
		LogAddSource: cfg.LogAddSource,
	}, os.Stdout)

	log = log.With(slog.String("app", app), slog.String("commit_hash", commit))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runner := federation.NewRunner(
		fedCfg,
		platform.NewFileSource(cfg.SourceDir),
		platform.NewFileTarget(cfg.OutputDir),
		platform.LogReporter{Log: log},
		log,
	)

	out, err := runner.Run(ctx)
	if err != nil {
		return fmt.Errorf("run federation: %w", err)
	}

	for sheetID, records := range out {
		log.Info("federated sheet written",
			slog.String("sheet_id", sheetID),
			slog.Int("records", len(records)))
	}

	return nil
}

func loadFederationConfig(path string) (zero models.FederationConfig, _ error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return zero, fmt.Errorf("read federation config: %w", err)
	}

	var fedCfg models.FederationConfig
	if err := json.Unmarshal(data, &fedCfg); err != nil {
		return zero, fmt.Errorf("parse federation config: %w", err)
	}

	return fedCfg, nil
}
