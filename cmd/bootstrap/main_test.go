package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	yaml := `
database:
  driver: sqlite
  sqlite:
    path: ` + filepath.Join(dir, "bootstrap.db") + `
llm:
  default_provider: openai
  providers:
    openai:
      model: gpt-4o
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o600))
	return dir
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "bootstrap dev")
}

func TestMigrateThenSweep(t *testing.T) {
	dir := writeConfig(t)

	out, err := run(t, "--config-dir", dir, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "migrated sqlite database")

	out, err = run(t, "--config-dir", dir, "sweep")
	require.NoError(t, err)
	assert.Contains(t, out, "expired 0 stale jobs")
}

func TestSweepRequeueNeedsRedis(t *testing.T) {
	dir := writeConfig(t)
	_, err := run(t, "--config-dir", dir, "sweep", "--requeue")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cache.redis.enabled")
}
