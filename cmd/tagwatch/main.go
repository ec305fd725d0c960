package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tagwatch/internal/api"
	"tagwatch/internal/config"
	"tagwatch/internal/datastore"
	"tagwatch/internal/github"
	"tagwatch/internal/logger"
	"tagwatch/internal/registry"
	"tagwatch/internal/scheduler"
	"tagwatch/internal/secrets"
)

func main() {
	globalConfigFile := flag.String("globalconfig", "", "Path to the global YAML configuration file. If not set, built-in defaults are used.")
	globalConfigFileAlias := flag.String("gc", "", "Alias for --globalconfig")
	flag.Parse()

	if *globalConfigFile == "" && *globalConfigFileAlias != "" {
		*globalConfigFile = *globalConfigFileAlias
	}

	gCfg, err := config.LoadGlobalConfig(*globalConfigFile)
	if err != nil {
		log.Fatalf("[FATAL] Main: Could not load global config using path '%s': %v", *globalConfigFile, err)
	}
	if err := config.ValidateConfig(gCfg); err != nil {
		log.Fatalf("[FATAL] Main: Invalid configuration: %v", err)
	}

	zLogger, err := logger.New(gCfg.LogConfig)
	if err != nil {
		log.Fatalf("[FATAL] Main: Could not initialize logger: %v", err)
	}
	zLogger.Info().Msg("Logger initialized successfully.")

	store, err := datastore.NewMonitorStore(gCfg.StorageConfig.SQLiteDBPath, zLogger)
	if err != nil {
		zLogger.Fatal().Err(err).Str("path", gCfg.StorageConfig.SQLiteDBPath).Msg("Could not open monitor store")
	}
	defer store.Close()

	alarms := scheduler.NewAlarmScheduler(zLogger)

	ghClient := github.NewClient(github.ClientConfig{
		BaseURL:             gCfg.GitHubConfig.APIBaseURL,
		ReadTokenSecret:     gCfg.GitHubConfig.ReadTokenSecret,
		DispatchTokenSecret: gCfg.GitHubConfig.DispatchTokenSecret,
		Timeout:             time.Duration(gCfg.GitHubConfig.RequestTimeoutSeconds) * time.Second,
	}, secrets.NewEnvProvider(), nil, zLogger)

	reg := registry.NewRegistry(registry.Dependencies{
		Source:       ghClient,
		Dispatch:     ghClient,
		Alarms:       alarms,
		Store:        store,
		Logger:       zLogger,
		CycleTimeout: gCfg.MonitorConfig.CycleTimeout(),
	})

	restored, err := reg.Restore()
	if err != nil {
		zLogger.Fatal().Err(err).Msg("Could not restore monitors from store")
	}
	zLogger.Info().Int("monitors", restored).Msg("Monitor population restored")

	server := api.NewServer(gCfg.ServerConfig, gCfg.MonitorConfig, reg, zLogger)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Run()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-serverErr:
		if err != nil {
			zLogger.Fatal().Err(err).Msg("Admin API server failed")
		}
	case <-ctx.Done():
		zLogger.Info().Msg("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		time.Duration(gCfg.ServerConfig.ShutdownTimeoutSeconds)*time.Second,
	)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zLogger.Error().Err(err).Msg("Admin API shutdown failed")
	}
	reg.Close()
	zLogger.Info().Msg("Shutdown complete")
}
