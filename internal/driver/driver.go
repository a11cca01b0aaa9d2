// Package driver generates and saves the image for a single model.
package driver

import (
	"bytes"
	"context"
	"fmt"
	"image/jpeg"
	"strconv"

	"github.com/dmorgan81/modelsweep/internal/failure"
	"github.com/dmorgan81/modelsweep/internal/log"
	"github.com/dmorgan81/modelsweep/internal/pipeline"
	"github.com/dmorgan81/modelsweep/internal/store"
	"github.com/samber/do"
)

// Settings are fixed for a run and shared by every model.
type Settings struct {
	Height     int
	Width      int
	Steps      int
	Guidance   float64
	Seed       int64
	SeedPolicy SeedPolicy
	Load       pipeline.LoadOptions
	Quality    int
}

func (s Settings) params(prompt, model string) pipeline.Params {
	return pipeline.Params{
		Prompt:   prompt,
		Height:   s.Height,
		Width:    s.Width,
		Steps:    s.Steps,
		Guidance: s.Guidance,
		Seed:     s.SeedPolicy.Seed(s.Seed, model),
	}
}

type Request struct {
	Prompt string
	Model  string
	Output string
	Run    string
}

type Result struct {
	Model  string
	Output string
	Seed   int64
	Bytes  int
}

func (r Request) toMetadata(s Settings, seed int64) map[string]string {
	return map[string]string{
		"run":                    r.Run,
		"model":                  r.Model,
		"prompt":                 r.Prompt,
		"seed":                   strconv.FormatInt(seed, 10),
		"device":                 string(s.Load.Device),
		"precision":              string(s.Load.Precision),
		"disable-safety-checker": strconv.FormatBool(s.Load.DisableSafetyChecker),
	}
}

type Driver struct {
	factory  pipeline.Factory
	uploader store.Uploader
	settings Settings
}

func New(factory pipeline.Factory, uploader store.Uploader, settings Settings) *Driver {
	return &Driver{factory: factory, uploader: uploader, settings: settings}
}

func NewDriver(i *do.Injector) (*Driver, error) {
	return New(
		do.MustInvoke[pipeline.Factory](i),
		do.MustInvoke[store.Uploader](i),
		do.MustInvoke[Settings](i),
	), nil
}

// Generate builds a pipeline for req.Model, renders req.Prompt and writes the
// JPEG to req.Output. The pipeline is closed before returning.
func (d *Driver) Generate(ctx context.Context, req Request) (Result, error) {
	log := log.FromContextOrDiscard(ctx).WithGroup("driver").With("model", req.Model)

	p, err := d.factory.Load(ctx, req.Model, d.settings.Load)
	if err != nil {
		return Result{}, failure.Wrap(failure.KindInference, "loading pipeline", err)
	}
	defer func() {
		if err := p.Close(); err != nil {
			log.Warn("closing pipeline", "err", err)
		}
	}()

	if d.settings.Load.DisableSafetyChecker {
		if pipeline.SwitchesSafetyChecker(d.factory) {
			log.Warn("content safety checker disabled")
		} else {
			log.Info("safety checker disable requested but not supported by backend; endpoint policy applies")
		}
	}

	params := d.settings.params(req.Prompt, req.Model)
	log.Debug("running inference", "seed", params.Seed, "steps", params.Steps, "options", d.settings.Load)

	img, err := p.Generate(ctx, params)
	if err != nil {
		return Result{}, failure.Wrap(failure.KindInference, "generating image", err)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: d.settings.Quality}); err != nil {
		return Result{}, failure.Wrap(failure.KindIO, "encoding jpeg", err)
	}

	err = d.uploader.Upload(ctx, store.UploadParams{
		Name:        req.Output,
		Data:        buf.Bytes(),
		ContentType: "image/jpeg",
		Metadata:    req.toMetadata(d.settings, params.Seed),
	})
	if err != nil {
		return Result{}, failure.Wrap(failure.KindIO, fmt.Sprintf("saving %s", req.Output), err)
	}

	log.Info("image saved", "path", req.Output, "seed", params.Seed)
	return Result{Model: req.Model, Output: req.Output, Seed: params.Seed, Bytes: buf.Len()}, nil
}
