package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "armlift.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestDefaultValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	require.Equal(t, "a64", cfg.Arch)

	opts := cfg.ExploreOptions(nil)
	require.Equal(t, 4096, opts.MaxBlocks)
	require.Equal(t, 4, opts.Workers)
	require.Equal(t, 0, cfg.LiftOptions(nil).MaxBytes)
}

func TestLoadOverridesDefaults(t *testing.T) {
	cfg, err := Load(writeFile(t, `{"arch": "arm", "maxBlockBytes": 64, "workers": 2}`))
	require.NoError(t, err)
	require.Equal(t, "arm", cfg.Arch)
	require.Equal(t, 64, cfg.LiftOptions(nil).MaxBytes)
	require.Equal(t, 2, cfg.Workers)
	require.Equal(t, 4096, cfg.MaxBlocks)
}

func TestLoadRejectsUnknownField(t *testing.T) {
	_, err := Load(writeFile(t, `{"arch": "a64", "color": true}`))
	require.Error(t, err)
	require.Contains(t, err.Error(), "color")
}

func TestLoadMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Arch = "mips"
	cfg.MaxBlocks = -1
	cfg.Workers = -2
	err := cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), `unknown architecture "mips"`)
	require.Contains(t, err.Error(), "maxBlocks")
	require.Contains(t, err.Error(), "workers")

	cfg = Default()
	cfg.MaxBlockBytes = -4
	require.ErrorContains(t, cfg.Validate(), "maxBlockBytes")
}

func TestValidateLogLevel(t *testing.T) {
	for _, level := range []string{"", "debug", "INFO", "warn", "error"} {
		cfg := Default()
		cfg.LogLevel = level
		require.NoError(t, cfg.Validate(), level)
	}
	for _, level := range []string{"debgu", "fatal", "trace"} {
		cfg := Default()
		cfg.LogLevel = level
		require.ErrorContains(t, cfg.Validate(), "logLevel", level)
	}

	_, err := Load(writeFile(t, `{"arch": "a64", "logLevel": "verbose"}`))
	require.ErrorContains(t, err, `"verbose"`)
}

func TestSchema(t *testing.T) {
	bts, err := Schema()
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(bts, &doc))
	require.Contains(t, string(bts), `"maxBlockBytes"`)
	require.Contains(t, string(bts), "Instruction set to lift")
}
