// Command pubsubd runs the persistent pub/sub broker: a WebSocket RPC
// listener over a shared chunked log, with periodic and on-shutdown
// snapshotting to disk.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	_ "go.uber.org/automaxprocs"

	"github.com/lattice-io/pubsub-broker/internal/auth"
	"github.com/lattice-io/pubsub-broker/internal/chunklog"
	"github.com/lattice-io/pubsub-broker/internal/config"
	"github.com/lattice-io/pubsub-broker/internal/logging"
	"github.com/lattice-io/pubsub-broker/internal/metrics"
	"github.com/lattice-io/pubsub-broker/internal/model"
	"github.com/lattice-io/pubsub-broker/internal/resource"
	"github.com/lattice-io/pubsub-broker/internal/rpc"
	"github.com/lattice-io/pubsub-broker/internal/snapshot"
	"github.com/lattice-io/pubsub-broker/internal/store"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load(os.Args[1:], nil)
	if err != nil {
		println("pubsubd: " + err.Error())
		return 1
	}

	logger := logging.New(logging.FromAppConfig(cfg))
	cfg.LogConfig(logger)

	state, err := snapshot.Load(cfg.StateFile)
	if err != nil {
		logger.Error().Err(err).Str("state_file", cfg.StateFile).Msg("failed to load snapshot, starting empty")
	} else {
		logger.Info().Int("topics", len(state.Topics)).Int("messages", len(state.Messages)).Msg("snapshot loaded")
	}

	log := chunklog.NewWithCapacity[model.Message](cfg.ChunkCapacity)
	for _, msg := range state.Messages {
		log.Push(msg)
	}

	topics := store.NewTopicStore()
	topics.Replace(state.Topics)
	logins := store.NewLoginStore()

	issuer := auth.NewIssuer(cfg.JWTSecret, cfg.SessionTTL)
	guard := resource.New(resource.Config{
		MaxConnections:     cfg.MaxConnections,
		CPURejectThreshold: cfg.CPURejectThreshold,
		CPUPauseThreshold:  cfg.CPUPauseThreshold,
		MaxRequestsPerSec:  cfg.MaxRequestsPerSec,
		SamplePeriod:       cfg.ResourceSampleInterval,
	})
	defer guard.Stop()

	collector := metrics.NewCollector()

	server := rpc.NewServer(rpc.Deps{
		Addr:                 cfg.Address,
		Logger:               logger,
		Log:                  log,
		Topics:               topics,
		Logins:               logins,
		Issuer:               issuer,
		Guard:                guard,
		Metrics:              collector,
		DeliveryIdleInterval: cfg.DeliveryIdleInterval,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe(ctx)
	}()

	stopPeriodicSnapshot := make(chan struct{})
	go periodicSnapshot(cfg.StateFile, topics, log, logger, stopPeriodicSnapshot)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		logger.Info().Msg("received shutdown signal")
	case err := <-serveErr:
		if err != nil {
			logger.Error().Err(err).Msg("rpc server exited unexpectedly")
		}
	}

	close(stopPeriodicSnapshot)
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("error during shutdown")
	}

	if err := saveSnapshot(cfg.StateFile, topics, log); err != nil {
		logger.Error().Err(err).Msg("failed to save final snapshot")
		return 1
	}
	logger.Info().Msg("snapshot saved, exiting")
	return 0
}

func periodicSnapshot(path string, topics *store.TopicStore, log *chunklog.Log[model.Message], logger zerolog.Logger, stop <-chan struct{}) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := saveSnapshot(path, topics, log); err != nil {
				logger.Error().Err(err).Msg("periodic snapshot failed")
			}
		}
	}
}

func saveSnapshot(path string, topics *store.TopicStore, log *chunklog.Log[model.Message]) error {
	var messages []model.Message
	cursor := log.FrontCursor()
	for {
		msg, present, ok := cursor.Next()
		if !ok {
			break
		}
		if present {
			messages = append(messages, msg)
		}
	}
	return snapshot.Save(path, snapshot.State{Topics: topics.GetAll(), Messages: messages})
}
