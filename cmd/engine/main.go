package main

import (
	"flag"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	container "github.com/thehyperflames/dicontainer-go"

	"github.com/hxuan190/cyclearb/internal/common"
	"github.com/hxuan190/cyclearb/internal/config"
	"github.com/hxuan190/cyclearb/internal/telemetry"
)

// Exit codes for the supervised restart loop wrapping this process.
const (
	exitOK             = 0
	exitConfigInvalid  = 1
	exitSigningMissing = 2
	exitUpstreamFatal  = 3
)

func main() {
	noTUI := flag.Bool("no-tui", false, "disable interactive terminal UI (always on for this build; accepted for CLI compatibility)")
	discoveryOnly := flag.Bool("discovery", false, "run discovery and cycle-finding only, never dispatch bundles")
	analyze := flag.Bool("analyze", false, "run against synthetic snapshots instead of a live chain subscription")
	flag.Parse()
	_ = noTUI

	common.InitRuntimeForHFT()

	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("no .env file found, relying on process environment")
	}

	telemetry.Init(os.Getenv("ENV") == "dev", os.Getenv("ENV") == "dev")

	generalCfg := &config.GeneralConfig{}
	rpcCfg := &config.RPCConfig{}
	engineCfg := &config.EngineConfig{}
	relayCfg := &config.RelayConfig{}
	storageCfg := &config.StorageConfig{}

	if *analyze {
		os.Setenv("EXECUTION_MODE", string(config.ExecutionSimulation))
	} else if *discoveryOnly {
		os.Setenv("EXECUTION_MODE", string(config.ExecutionDryRun))
	}

	conf := container.NewConf(
		generalCfg,
		rpcCfg,
		engineCfg,
		relayCfg,
		storageCfg,
	)

	dic, err := container.New(
		conf,

		&liveSubscriptionService{},
		&simulationSourceService{},
		&executorWorkerService{},
		&strategyWorkerService{},
		&debugHTTPService{},
	)
	if err != nil {
		log.Error().Err(err).Msg("failed to create di container")
		os.Exit(configExitCode(err))
	}

	log.Info().
		Str("execution_mode", string(engineCfg.ExecutionMode)).
		Bool("discovery_only", *discoveryOnly).
		Bool("analyze", *analyze).
		Msg("cyclearb engine starting")

	if err := dic.Run(); err != nil {
		log.Error().Err(err).Msg("di container run failed")
		os.Exit(exitUpstreamFatal)
	}

	log.Info().Msg("shutting down services")
	if err := dic.Stop(); err != nil {
		log.Error().Err(err).Msg("error during shutdown")
	}
	log.Info().Msg("shutdown complete")
}

// configExitCode maps a container construction failure to the process exit
// code a supervisor uses to decide whether a restart can help: a missing or
// malformed signing key will not be fixed by retrying, so it gets its own
// code distinct from generic config errors.
func configExitCode(err error) int {
	if err == nil {
		return exitOK
	}
	if isSigningKeyError(err) {
		return exitSigningMissing
	}
	return exitConfigInvalid
}

func isSigningKeyError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "session sponsor key") || strings.Contains(msg, "SESSION_SPONSOR_KEY")
}
