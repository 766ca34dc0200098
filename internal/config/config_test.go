package config_test

import (
	"flag"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"heimdall/internal/config"
)

func TestParseServerConfigDefaults(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfg, err := config.ParseServerConfig(fs, nil)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9001", cfg.ListenAddr)
	assert.Equal(t, 10, cfg.Workers)
}

func TestParseServerConfigFlagOverride(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfg, err := config.ParseServerConfig(fs, []string{"-listen", "127.0.0.1:7000", "-workers", "4"})
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:7000", cfg.ListenAddr)
	assert.Equal(t, 4, cfg.Workers)
}

func TestParseClientEnvOverride(t *testing.T) {
	t.Setenv("HEIMDALL_SERVER_ADDR", "10.0.0.1:9001")
	cfg := config.ClientConfig{ServerAddr: "127.0.0.1:9001"}
	config.ParseClientEnv(&cfg)
	assert.Equal(t, "10.0.0.1:9001", cfg.ServerAddr)
}
