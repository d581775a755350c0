package app

import (
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zkv-router/internal/clients"
	"zkv-router/internal/config"
	"zkv-router/internal/encoder"
	"zkv-router/internal/renderer"
)

func testEntry() *logrus.Entry {
	logger, _ := test.NewNullLogger()
	return logrus.NewEntry(logger)
}

func TestNewServiceContainerDefaults(t *testing.T) {
	cfg := config.Default()
	cfg.Ledger.Path = filepath.Join(t.TempDir(), "ledger")

	c, err := NewServiceContainer(cfg, testEntry())
	require.NoError(t, err)
	assert.IsType(t, &renderer.ExecRenderer{}, c.Renderer)
	assert.NotNil(t, c.Pipeline)

	svc, err := c.Submissions()
	require.NoError(t, err)
	again, err := c.Submissions()
	require.NoError(t, err)
	assert.Same(t, svc, again)

	require.NoError(t, c.Close())
}

func TestNewShrinker(t *testing.T) {
	s, err := newShrinker(config.ProverConfig{Mode: "http", BaseURL: "http://prover:8080", Timeout: 5})
	require.NoError(t, err)
	assert.IsType(t, &clients.ProverClient{}, s)

	s, err = newShrinker(config.Default().Prover)
	require.NoError(t, err)
	assert.IsType(t, &encoder.ExecShrinker{}, s)

	_, err = newShrinker(config.ProverConfig{Mode: "http"})
	require.Error(t, err)

	_, err = newShrinker(config.ProverConfig{Mode: "grpc"})
	require.Error(t, err)
}

func TestUnknownEventsDriver(t *testing.T) {
	cfg := config.Default()
	cfg.Events.Driver = "kafka"
	_, err := NewServiceContainer(cfg, testEntry())
	require.Error(t, err)
}
