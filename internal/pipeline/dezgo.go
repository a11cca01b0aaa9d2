package pipeline

import (
	"context"
	"image"
	"net/http"
	"strconv"

	"github.com/dmorgan81/modelsweep/internal/log"
)

const DefaultDezgoURL = "https://api.dezgo.com"

type DezgoFactory struct {
	Client  *http.Client
	BaseURL string
	Key     string
}

func (f *DezgoFactory) Load(ctx context.Context, model string, opts LoadOptions) (Pipeline, error) {
	log.FromContextOrDiscard(ctx).Debug("dezgo has no device or precision selection", "options", opts)
	return &dezgoPipeline{factory: f, model: model}, nil
}

type dezgoPipeline struct {
	factory *DezgoFactory
	model   string
}

type dezgoRequest struct {
	Model    string  `json:"model"`
	Prompt   string  `json:"prompt"`
	Width    int     `json:"width"`
	Height   int     `json:"height"`
	Steps    int     `json:"steps"`
	Guidance float64 `json:"guidance"`
	Seed     string  `json:"seed"`
}

func (p *dezgoPipeline) Generate(ctx context.Context, params Params) (image.Image, error) {
	log := log.FromContextOrDiscard(ctx).With("model", p.model)
	log.Info("generating image via api.dezgo.com")

	req, err := newJSONRequest(ctx, http.MethodPost, p.factory.BaseURL+"/text2image", dezgoRequest{
		Model:    p.model,
		Prompt:   params.Prompt,
		Width:    params.Width,
		Height:   params.Height,
		Steps:    params.Steps,
		Guidance: params.Guidance,
		Seed:     strconv.FormatInt(params.Seed, 10),
	})
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Dezgo-Key", p.factory.Key)

	data, header, err := fetch(p.factory.Client, req)
	if err != nil {
		return nil, err
	}
	log.Debug("received image via api.dezgo.com", "seed", header.Get("x-input-seed"), "bytes", len(data))

	return decode(data)
}

func (*dezgoPipeline) Close() error { return nil }
