package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadYAML_MissingFileIsNotAnError(t *testing.T) {
	cfg := Defaults()
	err := LoadYAML(&cfg, filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Defaults(), cfg)
}

func TestLoadYAML_OverlaysFields(t *testing.T) {
	cfg := Defaults()
	path := filepath.Join(t.TempDir(), "awgserver.yaml")
	require.NoError(t, os.WriteFile(path, []byte("backend: gpiocdev\nperiod_us: 500\n"), 0644))

	require.NoError(t, LoadYAML(&cfg, path))
	assert.Equal(t, "gpiocdev", cfg.Backend)
	assert.Equal(t, 500, cfg.PeriodMicros)
	assert.Equal(t, Defaults().QueuedAddr, cfg.QueuedAddr, "fields absent from the file must be left alone")
}

func TestFlags_ApplyOnlyOverlaysExplicitlySetFlags(t *testing.T) {
	defaults := Defaults()
	cfg := defaults
	cfg.Backend = "gpiocdev" // simulate a prior YAML overlay

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags := BindFlags(fs, defaults)
	require.NoError(t, fs.Parse([]string{"--log-level=debug"}))

	flags.Apply(&cfg)

	assert.Equal(t, "gpiocdev", cfg.Backend, "an unset flag must not clobber the YAML-loaded value")
	assert.Equal(t, "debug", cfg.LogLevel, "an explicitly-set flag must override")
}

func TestLoad_FullThreeLayerResolution(t *testing.T) {
	path := filepath.Join(t.TempDir(), "awgserver.yaml")
	require.NoError(t, os.WriteFile(path, []byte("backend: uio\nqueued_addr: \":9200\"\n"), 0644))

	cfg, err := Load([]string{"--config-file", path, "--backend", "gpiocdev"})
	require.NoError(t, err)

	assert.Equal(t, "gpiocdev", cfg.Backend, "the explicit flag must win over the YAML value")
	assert.Equal(t, ":9200", cfg.QueuedAddr, "the YAML value must win where no flag was passed")
	assert.Equal(t, Defaults().DirectAddr, cfg.DirectAddr, "untouched fields must keep their compiled-in default")
}

func TestPeriod_ConvertsMicrosecondsToDuration(t *testing.T) {
	cfg := Config{PeriodMicros: 250}
	assert.Equal(t, 250*1000, int(cfg.Period()))
}

func TestNormalize_ClampsPeriodMicrosToAtLeastOne(t *testing.T) {
	cfg := Config{PeriodMicros: 0}
	cfg.Normalize()
	assert.Equal(t, 1, cfg.PeriodMicros)

	cfg = Config{PeriodMicros: -5}
	cfg.Normalize()
	assert.Equal(t, 1, cfg.PeriodMicros)

	cfg = Config{PeriodMicros: 250}
	cfg.Normalize()
	assert.Equal(t, 250, cfg.PeriodMicros, "a valid value must be left alone")
}

func TestLoad_NormalizesAZeroPeriod(t *testing.T) {
	cfg, err := Load([]string{"--period-us=0"})
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.PeriodMicros)
}
