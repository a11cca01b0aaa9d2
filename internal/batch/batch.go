// Package batch runs one prompt through every model in the registry.
package batch

import (
	"context"
	"errors"

	"github.com/dmorgan81/modelsweep/internal/driver"
	"github.com/dmorgan81/modelsweep/internal/failure"
	"github.com/dmorgan81/modelsweep/internal/log"
	"github.com/dmorgan81/modelsweep/internal/registry"
	"github.com/dmorgan81/modelsweep/internal/store"
	"github.com/samber/do"
	"github.com/samber/lo"
)

type Generator interface {
	Generate(context.Context, driver.Request) (driver.Result, error)
}

type Progress interface {
	Update(done, total int, model string)
}

type Failure struct {
	Model string
	Kind  failure.Kind
	Err   error
}

type Summary struct {
	Run       string
	Attempted int
	Succeeded []driver.Result
	Failed    []Failure
}

type Runner struct {
	loader      registry.Loader
	generator   Generator
	invalidator store.Invalidator
	progress    Progress
	outputDir   string
	run         string
}

func New(loader registry.Loader, generator Generator, invalidator store.Invalidator, progress Progress, outputDir, run string) *Runner {
	return &Runner{
		loader:      loader,
		generator:   generator,
		invalidator: invalidator,
		progress:    progress,
		outputDir:   outputDir,
		run:         run,
	}
}

func NewRunner(i *do.Injector) (*Runner, error) {
	return New(
		do.MustInvoke[registry.Loader](i),
		do.MustInvoke[*driver.Driver](i),
		do.MustInvoke[store.Invalidator](i),
		do.MustInvoke[Progress](i),
		do.MustInvokeNamed[string](i, "output_dir"),
		do.MustInvokeNamed[string](i, "run"),
	), nil
}

// Run loads the registry and generates one image per model, in order. A
// registry failure is returned before anything is generated; a failure for
// one model is logged and recorded in the summary, and the loop moves on.
// Only cancellation of ctx stops the loop early.
func (r *Runner) Run(ctx context.Context, prompt string) (Summary, error) {
	log := log.FromContextOrDiscard(ctx).WithGroup("batch").With("run", r.run)
	summary := Summary{Run: r.run}

	models, err := r.loader.Load(ctx)
	if err != nil {
		return summary, err
	}
	log.Info("starting batch", "models", len(models))

	for idx, model := range models {
		if err := ctx.Err(); err != nil {
			log.Warn("batch interrupted", "remaining", len(models)-idx)
			return summary, err
		}
		summary.Attempted++
		log.Info("generating image", "model", model, "index", idx+1)

		res, err := r.generate(ctx, prompt, model)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return summary, err
			}
			kind := failure.KindOf(err)
			log.Error("generating image failed", "model", model, "kind", kind.String(), "err", err)
			summary.Failed = append(summary.Failed, Failure{Model: model, Kind: kind, Err: err})
		} else {
			summary.Succeeded = append(summary.Succeeded, res)
		}
		r.progress.Update(idx+1, len(models), model)
	}

	if len(summary.Succeeded) > 0 {
		paths := lo.Map(summary.Succeeded, func(res driver.Result, _ int) string { return res.Output })
		if err := r.invalidator.Invalidate(ctx, paths); err != nil {
			log.Error("invalidating outputs failed", "kind", failure.KindIO.String(), "err", err)
		}
	}

	log.Info("batch finished",
		"attempted", summary.Attempted,
		"succeeded", len(summary.Succeeded),
		"failed", len(summary.Failed))
	return summary, nil
}

func (r *Runner) generate(ctx context.Context, prompt, model string) (driver.Result, error) {
	out, err := registry.OutputPath(r.outputDir, model)
	if err != nil {
		return driver.Result{}, err
	}
	return r.generator.Generate(ctx, driver.Request{
		Prompt: prompt,
		Model:  model,
		Output: out,
		Run:    r.run,
	})
}
