package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"credit-underwriter/internal/artifact"
	"credit-underwriter/internal/cfg"
	"credit-underwriter/internal/metrics"
	"credit-underwriter/internal/predict"
	"credit-underwriter/internal/rowstore"
	"credit-underwriter/internal/server"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	_ = godotenv.Load()
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	c, err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}
	if c.DataVersion == "" {
		log.Fatal().Msg("DATA_VERSION is required to locate the transformer artifact")
	}

	m := metrics.New()
	store, closer, err := openStore(c)
	if err != nil {
		log.Fatal().Err(err).Msg("artifact store setup failed")
	}
	if closer != nil {
		defer closer()
	}

	// Artifact loading blocks startup on purpose: the process must not
	// accept traffic without a complete transformer and model.
	loadCtx, cancel := context.WithTimeout(context.Background(), c.RegistryTimeout)
	svc, err := predict.Load(loadCtx, store, c.DataVersion)
	cancel()
	if err != nil {
		m.ArtifactLoadErrors.Inc()
		log.Fatal().Err(err).Str("version", c.DataVersion).Msg("artifact load failed")
	}

	var rows *rowstore.Store
	if c.RowStorePath != "" {
		rows, err = rowstore.Open(c.RowStorePath)
		if err != nil {
			log.Fatal().Err(err).Msg("row store open failed")
		}
		defer rows.Close()
	}

	srv := server.New(svc, rows, metrics.NewObserver(m), c.Port, c.RequestTimeout)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		log.Fatal().Err(err).Msg("server failed")
	case s := <-sig:
		log.Info().Str("signal", s.String()).Msg("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
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
