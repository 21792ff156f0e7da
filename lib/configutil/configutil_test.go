package configutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type testConfig struct {
	BaseURL  string            `json:"base_url"`
	Interval float64           `json:"interval"`
	Headers  map[string]string `json:"headers"`
}

func TestLocalPath(t *testing.T) {
	require.Equal(t, "a/secondhand-race.local.json5", LocalPath("a/secondhand-race.json5"))
	require.Equal(t, "config.local", LocalPath("config"))
}

func TestReadConfigMergesLocal(t *testing.T) {
	dir := t.TempDir()
	name := filepath.Join(dir, "app.json5")
	require.NoError(t, os.WriteFile(name, []byte(`{
		// comments are allowed
		base_url: "https://tickets.example.com",
		interval: 15,
		headers: {a: "1"},
	}`), 0600))
	require.NoError(t, os.WriteFile(LocalPath(name), []byte(`{interval: 5}`), 0600))

	config, err := ReadConfig[testConfig](name)
	require.NoError(t, err)
	require.Equal(t, "https://tickets.example.com", config.BaseURL)
	require.Equal(t, 5.0, config.Interval)
	require.Equal(t, map[string]string{"a": "1"}, config.Headers)
}

func TestReadConfigLocalOnly(t *testing.T) {
	dir := t.TempDir()
	name := filepath.Join(dir, "app.json5")
	require.NoError(t, os.WriteFile(LocalPath(name), []byte(`{interval: 2}`), 0600))

	config, err := ReadConfig[testConfig](name)
	require.NoError(t, err)
	require.Equal(t, 2.0, config.Interval)
}

func TestReadConfigMissing(t *testing.T) {
	_, err := ReadConfig[testConfig](filepath.Join(t.TempDir(), "missing.json5"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestReadConfigInvalid(t *testing.T) {
	name := filepath.Join(t.TempDir(), "bad.json5")
	require.NoError(t, os.WriteFile(name, []byte(`{interval: `), 0600))

	_, err := ReadConfig[testConfig](name)
	require.Error(t, err)
	require.NotErrorIs(t, err, os.ErrNotExist)
}
