package main

import (
	"bytes"
	"context"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentinel-zero/sentinel/config"
)

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, strings.NewReader(""), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func cleanEnv(t *testing.T) {
	t.Helper()
	t.Chdir(t.TempDir())
	for _, k := range []string{"GROQ_API_KEY", "GEMINI_API_KEY", "SENTINEL_STORE", "SENTINEL_HISTORY"} {
		t.Setenv(k, "")
	}
}

func TestRun_Usage(t *testing.T) {
	cleanEnv(t)

	code, _, stderr := runCLI(t)
	assert.Equal(t, exitUsage, code)
	assert.Contains(t, stderr, "Commands:")

	code, stdout, _ := runCLI(t, "help")
	assert.Equal(t, exitOK, code)
	assert.Contains(t, stdout, "evaluate")

	code, _, stderr = runCLI(t, "summarize")
	assert.Equal(t, exitUsage, code)
	assert.Contains(t, stderr, `unknown command "summarize"`)

	code, _, _ = runCLI(t, "-config", "missing.yaml", "ask", "q")
	assert.Equal(t, exitUsage, code)
}

func TestRun_AskNeedsKeys(t *testing.T) {
	cleanEnv(t)

	code, _, stderr := runCLI(t, "ask", "What is Article 21?")
	assert.Equal(t, exitUsage, code)
	assert.Contains(t, stderr, "configuration error")
	assert.Contains(t, stderr, "GROQ_API_KEY")

	code, _, stderr = runCLI(t, "ask")
	assert.Equal(t, exitUsage, code)
	assert.Contains(t, stderr, "query is empty")
}

func TestRun_SetupMemoryStore(t *testing.T) {
	cleanEnv(t)
	t.Setenv("SENTINEL_STORE", "memory")

	code, stdout, stderr := runCLI(t, "setup", "-dim", "8")
	assert.Equal(t, exitOK, code, stderr)
	assert.Contains(t, stdout, "memory store ready: 8-dim")

	code, _, _ = runCLI(t, "setup", "-dim", "0")
	assert.Equal(t, exitUsage, code)

	code, stdout, stderr = runCLI(t, "setup", "-reset", "-dim", "8")
	assert.Equal(t, exitOK, code, stderr)
	assert.Contains(t, stdout, "memory store reset")
	assert.Contains(t, stdout, "memory store ready: 8-dim")
}

func TestRun_InitWritesConfig(t *testing.T) {
	cleanEnv(t)
	t.Setenv("SENTINEL_STORE", "pgvector")
	t.Setenv("GROQ_API_KEY", "gsk-secret")

	code, stdout, stderr := runCLI(t, "init")
	require.Equal(t, exitOK, code, stderr)
	assert.Contains(t, stdout, "wrote "+config.DefaultPath)

	data, err := os.ReadFile(config.DefaultPath)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "gsk-secret")

	cfg, err := config.LoadFile(config.DefaultPath)
	require.NoError(t, err)
	assert.Equal(t, "pgvector", cfg.Store.Backend)
	assert.Equal(t, config.Default().TopK, cfg.TopK)

	code, _, stderr = runCLI(t, "init")
	assert.Equal(t, exitUsage, code)
	assert.Contains(t, stderr, "already exists")

	code, _, stderr = runCLI(t, "init", "-force")
	assert.Equal(t, exitOK, code, stderr)
}

func TestRun_IngestNeedsFile(t *testing.T) {
	cleanEnv(t)

	code, _, stderr := runCLI(t, "ingest")
	assert.Equal(t, exitUsage, code)
	assert.Contains(t, stderr, "-file is required")
}
