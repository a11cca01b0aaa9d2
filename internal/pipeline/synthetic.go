package pipeline

import (
	"context"
	"errors"
	"hash/fnv"
	"image"
	"image/color"
	"math/rand/v2"

	"github.com/dmorgan81/modelsweep/internal/log"
)

// SyntheticFactory renders images locally without any model weights. Output
// depends only on model, prompt and seed, which makes it suitable for dry
// runs and tests.
type SyntheticFactory struct{}

func (SyntheticFactory) Load(ctx context.Context, model string, opts LoadOptions) (Pipeline, error) {
	log.FromContextOrDiscard(ctx).Debug("loading synthetic pipeline", "model", model, "options", opts)
	return &syntheticPipeline{model: model}, nil
}

type syntheticPipeline struct {
	model  string
	closed bool
}

func (p *syntheticPipeline) Generate(ctx context.Context, params Params) (image.Image, error) {
	if p.closed {
		return nil, errors.New("pipeline closed")
	}
	if params.Width <= 0 || params.Height <= 0 {
		return nil, errors.New("width and height must be positive")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	h := fnv.New64a()
	_, _ = h.Write([]byte(p.model))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(params.Prompt))
	rng := rand.New(rand.NewPCG(uint64(params.Seed), h.Sum64()))

	from := color.RGBA{uint8(rng.IntN(256)), uint8(rng.IntN(256)), uint8(rng.IntN(256)), 255}
	to := color.RGBA{uint8(rng.IntN(256)), uint8(rng.IntN(256)), uint8(rng.IntN(256)), 255}
	noise := max(1, 64-params.Steps)

	img := image.NewRGBA(image.Rect(0, 0, params.Width, params.Height))
	for y := range params.Height {
		for x := range params.Width {
			t := float64(x+y) / float64(params.Width+params.Height)
			n := rng.IntN(noise) - noise/2
			img.SetRGBA(x, y, color.RGBA{
				R: blend(from.R, to.R, t, n),
				G: blend(from.G, to.G, t, n),
				B: blend(from.B, to.B, t, n),
				A: 255,
			})
		}
	}
	return img, nil
}

func blend(a, b uint8, t float64, n int) uint8 {
	v := int(float64(a)*(1-t)+float64(b)*t) + n
	return uint8(min(255, max(0, v)))
}

func (p *syntheticPipeline) Close() error {
	p.closed = true
	return nil
}
