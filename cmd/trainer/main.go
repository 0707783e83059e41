package main

import (
	"context"
	"fmt"
	"time"

	"credit-underwriter/internal/artifact"
	"credit-underwriter/internal/cfg"
	"credit-underwriter/internal/metrics"
	"credit-underwriter/internal/pipeline"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// .env is optional; container deployments inject real env vars.
	_ = godotenv.Load()
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	c, err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}
	if c.TrainPath == "" || c.TestPath == "" {
		log.Fatal().Msg("TRAIN_PATH and TEST_PATH are required")
	}

	store, closer, err := openStore(c)
	if err != nil {
		log.Fatal().Err(err).Msg("artifact store setup failed")
	}
	if closer != nil {
		defer closer()
	}

	m := metrics.New()
	p := pipeline.New(c, store, m)

	start := time.Now()
	res, err := p.Run(context.Background())
	if err != nil {
		if pipeline.IsNoSurvivors(err) {
			log.Fatal().Err(err).Msg("no usable features; adjust thresholds or inputs")
		}
		log.Fatal().Err(err).Msg("pipeline run failed")
	}

	log.Info().
		Str("version", res.Version).
		Int("survivors", len(res.Survivors)).
		Int("selected", len(res.Selected)).
		Int("train_rows", res.TrainRows).
		Int("test_rows", res.TestRows).
		Dur("elapsed", time.Since(start)).
		Msg("training pipeline finished")
}

func openStore(c cfg.Settings) (artifact.Store, func(), error) {
	switch c.ArtifactBackend {
	case "file":
		s, err := artifact.NewFileStore(c.ArtifactPath)
		return s, nil, err
	case "bolt":
		s, err := artifact.NewBoltStore(c.ArtifactPath)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { s.Close() }, nil
	case "registry":
		return artifact.NewRegistryStore(c.RegistryURL, c.RegistryTimeout), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown artifact backend %q", c.ArtifactBackend)
	}
}
