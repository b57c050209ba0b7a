package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_MissingConfig(t *testing.T) {
	dir := t.TempDir()
	code := run([]string{
		"-config", filepath.Join(dir, "missing.yaml"),
		"-env-file", filepath.Join(dir, ".env"),
	})
	assert.Equal(t, 1, code)
}

func TestRun_RequiresPostgresStore(t *testing.T) {
	dir := t.TempDir()
	cfg := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("server:\n  port: 8080\nlog:\n  level: error\nledger:\n  store: memory\n"), 0o600))
	t.Setenv("LEDGER_STORE", "memory")

	code := run([]string{"-config", cfg, "-env-file", filepath.Join(dir, ".env"), "-run-once", "refresh-statuses"})
	assert.Equal(t, 1, code)
}
