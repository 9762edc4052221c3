package wiring

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	busInmem "github.com/pathplanhq/pathplanner/eventbus/inmem"
	logInmem "github.com/pathplanhq/pathplanner/eventlog/inmem"
	"github.com/pathplanhq/pathplanner/internal/config"
	engineInmem "github.com/pathplanhq/pathplanner/internal/engine/inmem"
)

func TestBuildBusFallsBackToInMemoryWithoutBrokers(t *testing.T) {
	bus, err := BuildBus(&config.Config{})
	require.NoError(t, err)
	require.IsType(t, &busInmem.Bus{}, bus)
}

func TestBuildLogFallsBackToInMemoryWithoutConnectionString(t *testing.T) {
	log, err := BuildLog(context.Background(), &config.Config{})
	require.NoError(t, err)
	require.IsType(t, &logInmem.Log{}, log)
}

func TestBuildEngineFallsBackToInMemoryWithoutBackend(t *testing.T) {
	eng, closeEngine, err := BuildEngine(&config.Config{})
	require.NoError(t, err)
	defer closeEngine()
	require.IsType(t, engineInmem.New(), eng)
}

func TestBuildEngineRequiresHostPortForTemporalBackend(t *testing.T) {
	cfg := &config.Config{}
	cfg.Engine.Backend = "temporal"
	_, _, err := BuildEngine(cfg)
	require.Error(t, err)
}
