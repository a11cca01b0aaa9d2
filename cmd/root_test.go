package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	root := NewRootCmd()
	root.SetArgs(args)
	root.SetIn(strings.NewReader(stdin))
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	err := root.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func writeRegistry(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "models.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRootGeneratesImages(t *testing.T) {
	dir := t.TempDir()
	models := writeRegistry(t, dir, `["org/modelA", "bad-id-no-slash", "org/modelB"]`)
	output := filepath.Join(dir, "output")

	stdout, stderr, err := execute(t, "a red fox in snow\n",
		"--config", filepath.Join(dir, "missing.toml"),
		"--models", models,
		"--output", output,
		"--backend", "synthetic",
		"--device", "default",
		"--steps", "4",
		"--width", "64",
		"--height", "64",
		"--json-logs",
	)
	require.NoError(t, err)
	assert.Contains(t, stdout, "2 of 3 images saved")
	assert.Contains(t, stderr, "Enter your prompt: ")
	assert.Contains(t, stderr, "bad-id-no-slash")
	assert.FileExists(t, filepath.Join(output, "modelA.jpg"))
	assert.FileExists(t, filepath.Join(output, "modelB.jpg"))
}

func TestRootMissingRegistry(t *testing.T) {
	dir := t.TempDir()
	output := filepath.Join(dir, "output")

	_, _, err := execute(t, "",
		"--config", filepath.Join(dir, "missing.toml"),
		"--models", filepath.Join(dir, "models.json"),
		"--output", output,
		"--backend", "synthetic",
		"--prompt", "a red fox in snow",
	)
	assert.ErrorContains(t, err, "model registry not found")
	assert.NoDirExists(t, output)
}

func TestRootInvalidFlag(t *testing.T) {
	_, _, err := execute(t, "", "--config", filepath.Join(t.TempDir(), "missing.toml"), "--device", "cuda", "--prompt", "p")
	assert.ErrorContains(t, err, `invalid device "cuda"`)
}

func TestRootEmptyPrompt(t *testing.T) {
	dir := t.TempDir()
	models := writeRegistry(t, dir, `["org/modelA"]`)
	_, _, err := execute(t, "\n", "--config", filepath.Join(dir, "missing.toml"), "--models", models, "--backend", "synthetic")
	assert.ErrorContains(t, err, "prompt is empty")
}

func TestModelsCommand(t *testing.T) {
	dir := t.TempDir()
	models := writeRegistry(t, dir, `["org/modelA", "bad-id-no-slash"]`)

	stdout, _, err := execute(t, "", "models", "--config", filepath.Join(dir, "missing.toml"), "--models", models, "--output", "out")
	require.NoError(t, err)
	assert.Contains(t, stdout, "org/modelA")
	assert.Contains(t, stdout, filepath.Join("out", "modelA.jpg"))
	assert.Contains(t, stdout, `model identifier "bad-id-no-slash" has no name segment`)
}

func TestLoadConfigFlagsOverrideFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "modelsweep.toml")
	require.NoError(t, os.WriteFile(path, []byte("[generation]\nseed = 7\nsteps = 20\n"), 0o644))

	opts := &options{}
	root := newRootCmd(opts)
	require.NoError(t, root.ParseFlags([]string{"--config", path, "--steps", "30", "--safety-checker"}))

	cfg, err := loadConfig(root, opts)
	require.NoError(t, err)
	assert.Equal(t, int64(7), cfg.Generation.Seed)
	assert.Equal(t, 30, cfg.Generation.Steps)
	assert.Equal(t, 768, cfg.Generation.Width)
	assert.False(t, cfg.Pipeline.DisableSafetyChecker)
}
