package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestRun_BadFlag(t *testing.T) {
	assert.Equal(t, 2, run([]string{"-no-such-flag"}))
}

func TestRun_MissingConfig(t *testing.T) {
	dir := t.TempDir()
	code := run([]string{
		"-config", filepath.Join(dir, "missing.yaml"),
		"-env-file", filepath.Join(dir, ".env"),
	})
	assert.Equal(t, 1, code)
}

func TestRun_UnreachableDatabaseReturns(t *testing.T) {
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", "1")
	t.Setenv("LEDGER_STORE", "postgres")

	cfg := writeConfig(t, `
server:
  host: 127.0.0.1
  port: 18080
database:
  user: ledger
  password: ledger
  database: ledger
  ssl_mode: disable
log:
  level: error
`)
	code := run([]string{"-config", cfg, "-env-file", filepath.Join(t.TempDir(), ".env")})
	assert.Equal(t, 1, code)
}
