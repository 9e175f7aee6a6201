package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Hajira-org/hajira-chat/assist-service/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigLoadFailsOnMalformedFile(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unclosed"), 0o600))

	_, err := config.Load(path)
	assert.Error(t, err)
}

func TestConfigLoadDefaultsWithoutFile(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.NotZero(t, cfg.Server.Port)
}

// chdir changes the working directory for the duration of the test
// (equivalent of testing.T.Chdir, which needs Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(old) })
}
