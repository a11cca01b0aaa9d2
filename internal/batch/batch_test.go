package batch

import (
	"bytes"
	"context"
	"errors"
	"image/jpeg"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/dmorgan81/modelsweep/internal/driver"
	"github.com/dmorgan81/modelsweep/internal/failure"
	"github.com/dmorgan81/modelsweep/internal/log"
	"github.com/dmorgan81/modelsweep/internal/pipeline"
	"github.com/dmorgan81/modelsweep/internal/progress"
	"github.com/dmorgan81/modelsweep/internal/registry"
	"github.com/dmorgan81/modelsweep/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticLoader struct {
	models []string
	err    error
}

func (l staticLoader) Load(context.Context) ([]string, error) { return l.models, l.err }

type scriptedGenerator struct {
	fail     map[string]error
	requests []driver.Request
	cancel   context.CancelFunc
}

func (g *scriptedGenerator) Generate(_ context.Context, req driver.Request) (driver.Result, error) {
	g.requests = append(g.requests, req)
	if g.cancel != nil {
		g.cancel()
	}
	if err := g.fail[req.Model]; err != nil {
		return driver.Result{}, err
	}
	return driver.Result{Model: req.Model, Output: req.Output}, nil
}

type recordingInvalidator struct {
	paths []string
}

func (r *recordingInvalidator) Invalidate(_ context.Context, paths []string) error {
	r.paths = append(r.paths, paths...)
	return nil
}

type countingProgress struct {
	updates []int
}

func (c *countingProgress) Update(done, _ int, _ string) { c.updates = append(c.updates, done) }

func TestRunContinuesPastFailures(t *testing.T) {
	gen := &scriptedGenerator{fail: map[string]error{
		"org/modelA": failure.Wrap(failure.KindInference, "generating image", errors.New("boom")),
	}}
	inv := &recordingInvalidator{}
	prog := &countingProgress{}
	models := []string{"org/modelA", "bad-id-no-slash", "org/modelB"}
	r := New(staticLoader{models: models}, gen, inv, prog, "output", "run-1")

	summary, err := r.Run(context.Background(), "a red fox in snow")
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Attempted)
	require.Len(t, summary.Succeeded, 1)
	assert.Equal(t, "org/modelB", summary.Succeeded[0].Model)
	require.Len(t, summary.Failed, 2)
	assert.Equal(t, Failure{Model: "org/modelA", Kind: failure.KindInference, Err: gen.fail["org/modelA"]}, summary.Failed[0])
	assert.Equal(t, "bad-id-no-slash", summary.Failed[1].Model)
	assert.Equal(t, failure.KindIdentifierMalformed, summary.Failed[1].Kind)

	// the malformed identifier never reaches the driver
	require.Len(t, gen.requests, 2)
	assert.Equal(t, driver.Request{
		Prompt: "a red fox in snow",
		Model:  "org/modelB",
		Output: filepath.Join("output", "modelB.jpg"),
		Run:    "run-1",
	}, gen.requests[1])

	assert.Equal(t, []int{1, 2, 3}, prog.updates)
	assert.Equal(t, []string{filepath.Join("output", "modelB.jpg")}, inv.paths)
}

func TestRunRegistryFailureIsFatal(t *testing.T) {
	gen := &scriptedGenerator{}
	loadErr := failure.Wrap(failure.KindConfigNotFound, "model registry not found", os.ErrNotExist)
	r := New(staticLoader{err: loadErr}, gen, &recordingInvalidator{}, progress.Discard{}, "output", "run-1")

	summary, err := r.Run(context.Background(), "p")
	assert.True(t, failure.Fatal(err))
	assert.Zero(t, summary.Attempted)
	assert.Empty(t, gen.requests)
}

func TestRunStopsWhenCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	gen := &scriptedGenerator{cancel: cancel}
	r := New(staticLoader{models: []string{"org/a", "org/b"}}, gen, &recordingInvalidator{}, progress.Discard{}, "output", "run-1")

	summary, err := r.Run(ctx, "p")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, summary.Attempted)
	assert.Len(t, gen.requests, 1)
}

func TestRunLogsFailures(t *testing.T) {
	var buf bytes.Buffer
	ctx := log.NewContext(context.Background(), log.NewJSON(&buf, slog.LevelInfo))
	r := New(staticLoader{models: []string{"bad-id-no-slash"}}, &scriptedGenerator{}, &recordingInvalidator{}, progress.Discard{}, "output", "run-1")

	_, err := r.Run(ctx, "p")
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `"model":"bad-id-no-slash"`)
	assert.Contains(t, buf.String(), `"kind":"identifier-malformed"`)
}

func newEndToEnd(t *testing.T, registryPath, outputDir string) *Runner {
	t.Helper()
	d := driver.New(pipeline.SyntheticFactory{}, &store.FileUploader{}, driver.Settings{
		Height:     768,
		Width:      768,
		Steps:      60,
		Guidance:   9,
		Seed:       42,
		SeedPolicy: driver.SeedFixed,
		Load:       pipeline.LoadOptions{Device: pipeline.DeviceDefault, Precision: pipeline.PrecisionHalf, DisableSafetyChecker: true},
		Quality:    95,
	})
	return New(&registry.FileLoader{Path: registryPath}, d, store.NopInvalidator{}, progress.Discard{}, outputDir, "run-1")
}

func TestScenarioTwoModels(t *testing.T) {
	dir := t.TempDir()
	registryPath := filepath.Join(dir, "models.json")
	require.NoError(t, os.WriteFile(registryPath, []byte(`["org/modelA", "org/modelB"]`), 0o644))
	outputDir := filepath.Join(dir, "output")

	summary, err := newEndToEnd(t, registryPath, outputDir).Run(context.Background(), "a red fox in snow")
	require.NoError(t, err)
	assert.Len(t, summary.Succeeded, 2)

	for _, name := range []string{"modelA.jpg", "modelB.jpg"} {
		f, err := os.Open(filepath.Join(outputDir, name))
		require.NoError(t, err)
		cfg, err := jpeg.DecodeConfig(f)
		f.Close()
		require.NoError(t, err)
		assert.Equal(t, 768, cfg.Width)
		assert.Equal(t, 768, cfg.Height)
	}
}

func TestScenarioMalformedIdentifier(t *testing.T) {
	dir := t.TempDir()
	registryPath := filepath.Join(dir, "models.json")
	require.NoError(t, os.WriteFile(registryPath, []byte(`["bad-id-no-slash"]`), 0o644))
	outputDir := filepath.Join(dir, "output")

	summary, err := newEndToEnd(t, registryPath, outputDir).Run(context.Background(), "a red fox in snow")
	require.NoError(t, err)
	assert.Len(t, summary.Failed, 1)
	assert.NoDirExists(t, outputDir)
}

func TestScenarioMissingRegistry(t *testing.T) {
	dir := t.TempDir()
	outputDir := filepath.Join(dir, "output")

	_, err := newEndToEnd(t, filepath.Join(dir, "models.json"), outputDir).Run(context.Background(), "a red fox in snow")
	assert.Equal(t, failure.KindConfigNotFound, failure.KindOf(err))
	assert.NoDirExists(t, outputDir)
}
