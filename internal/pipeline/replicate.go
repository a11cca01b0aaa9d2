package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"net/http"
	"time"

	"github.com/dmorgan81/modelsweep/internal/log"
)

const (
	DefaultReplicateURL = "https://api.replicate.com"
	// DefaultPollInterval is used when PollInterval is unset.
	DefaultPollInterval = time.Second
)

type ReplicateFactory struct {
	Client       *http.Client
	BaseURL      string
	Token        string
	PollInterval time.Duration
}

func (f *ReplicateFactory) Load(ctx context.Context, model string, opts LoadOptions) (Pipeline, error) {
	log.FromContextOrDiscard(ctx).Debug("replicate hardware is fixed per model", "options", opts)
	return &replicatePipeline{factory: f, model: model, opts: opts}, nil
}

// SwitchesSafetyChecker is true: predictions carry disable_safety_checker.
func (*ReplicateFactory) SwitchesSafetyChecker() bool { return true }

func (f *ReplicateFactory) pollInterval() time.Duration {
	if f.PollInterval <= 0 {
		return DefaultPollInterval
	}
	return f.PollInterval
}

type replicatePipeline struct {
	factory *ReplicateFactory
	model   string
	opts    LoadOptions
}

type replicateInput struct {
	Prompt               string  `json:"prompt"`
	Width                int     `json:"width"`
	Height               int     `json:"height"`
	NumInferenceSteps    int     `json:"num_inference_steps"`
	GuidanceScale        float64 `json:"guidance_scale"`
	Seed                 int64   `json:"seed"`
	NumOutputs           int     `json:"num_outputs"`
	DisableSafetyChecker bool    `json:"disable_safety_checker"`
}

type prediction struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Output json.RawMessage `json:"output"`
	Error  any             `json:"error"`
	Urls   struct {
		Get    string `json:"get"`
		Cancel string `json:"cancel"`
	} `json:"urls"`
}

// firstOutput handles models that return a single URL as well as a list.
func (p prediction) firstOutput() (string, error) {
	var one string
	if err := json.Unmarshal(p.Output, &one); err == nil && one != "" {
		return one, nil
	}
	var many []string
	if err := json.Unmarshal(p.Output, &many); err == nil && len(many) > 0 {
		return many[0], nil
	}
	return "", errors.New("prediction returned no output")
}

func (p *replicatePipeline) Generate(ctx context.Context, params Params) (image.Image, error) {
	log := log.FromContextOrDiscard(ctx).With("model", p.model)
	log.Info("generating image via replicate")

	req, err := newJSONRequest(ctx, http.MethodPost, p.factory.BaseURL+"/v1/models/"+p.model+"/predictions",
		map[string]replicateInput{"input": {
			Prompt:               params.Prompt,
			Width:                params.Width,
			Height:               params.Height,
			NumInferenceSteps:    params.Steps,
			GuidanceScale:        params.Guidance,
			Seed:                 params.Seed,
			NumOutputs:           1,
			DisableSafetyChecker: p.opts.DisableSafetyChecker,
		}})
	if err != nil {
		return nil, err
	}

	result, err := p.call(req)
	if err != nil {
		return nil, err
	}

	for result.Status != "succeeded" {
		switch result.Status {
		case "failed", "canceled":
			return nil, fmt.Errorf("prediction %s %s: %v", result.ID, result.Status, result.Error)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(p.factory.pollInterval()):
		}

		req, err := newJSONRequest(ctx, http.MethodGet, result.Urls.Get, nil)
		if err != nil {
			return nil, err
		}
		if result, err = p.call(req); err != nil {
			return nil, err
		}
		log.Debug("polling prediction", "id", result.ID, "status", result.Status)
	}

	url, err := result.firstOutput()
	if err != nil {
		return nil, err
	}
	req, err = http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	data, _, err := fetch(p.factory.Client, req)
	if err != nil {
		return nil, fmt.Errorf("fetching prediction output: %w", err)
	}
	return decode(data)
}

func (p *replicatePipeline) call(req *http.Request) (prediction, error) {
	req.Header.Set("Authorization", "Bearer "+p.factory.Token)
	data, _, err := fetch(p.factory.Client, req)
	if err != nil {
		return prediction{}, err
	}
	var result prediction
	if err := json.Unmarshal(data, &result); err != nil {
		return prediction{}, fmt.Errorf("decoding prediction: %w", err)
	}
	return result, nil
}

func (*replicatePipeline) Close() error { return nil }
