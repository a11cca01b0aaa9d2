package pipeline

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"strings"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/dmorgan81/modelsweep/internal/log"
)

type OpenAIFactory struct {
	Opts []option.RequestOption
}

func NewOpenAIFactory(key, baseURL string) *OpenAIFactory {
	opts := []option.RequestOption{option.WithAPIKey(key)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAIFactory{Opts: opts}
}

// Load accepts identifiers such as "openai/dall-e-3"; the namespace is dropped.
func (f *OpenAIFactory) Load(ctx context.Context, model string, opts LoadOptions) (Pipeline, error) {
	if _, name, ok := strings.Cut(model, "/"); ok {
		model = name
	}
	log.FromContextOrDiscard(ctx).Debug("openai has no device or precision selection", "options", opts)
	return &openaiPipeline{client: openai.NewClient(f.Opts...), model: model}, nil
}

type openaiPipeline struct {
	client openai.Client
	model  string
}

func (p *openaiPipeline) Generate(ctx context.Context, params Params) (image.Image, error) {
	log := log.FromContextOrDiscard(ctx).With("model", p.model)
	log.Info("generating image via openai")
	log.Debug("openai ignores seed, steps and guidance", "seed", params.Seed, "steps", params.Steps, "guidance", params.Guidance)

	resp, err := p.client.Images.Generate(ctx, openai.ImageGenerateParams{
		Prompt:         params.Prompt,
		Model:          openai.ImageModel(p.model),
		N:              openai.Int(1),
		Size:           openai.ImageGenerateParamsSize(fmt.Sprintf("%dx%d", params.Width, params.Height)),
		ResponseFormat: openai.ImageGenerateParamsResponseFormatB64JSON,
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, errors.New("openai: empty image data")
	}

	data, err := base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
	if err != nil {
		return nil, fmt.Errorf("decoding base64 image: %w", err)
	}
	return decode(data)
}

func (*openaiPipeline) Close() error { return nil }
