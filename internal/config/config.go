// Package config loads modelsweep settings from a TOML file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const DefaultPath = "modelsweep.toml"

var (
	Backends     = []string{"synthetic", "huggingface", "replicate", "dezgo", "openai"}
	Devices      = []string{"accelerated", "default"}
	Precisions   = []string{"fp16", "fp32"}
	SeedPolicies = []string{"fixed", "per-model"}
)

// Default returns the settings that reproduce the original batch: 768x768,
// 60 steps, guidance 9, seed 42 for every model, safety checker off.
func Default() *Config {
	return &Config{
		Registry: RegistryConfig{
			Path: "models.json",
		},
		Generation: GenerationConfig{
			Height:     768,
			Width:      768,
			Steps:      60,
			Guidance:   9.0,
			Seed:       42,
			SeedPolicy: "fixed",
		},
		Pipeline: PipelineConfig{
			Backend:              "huggingface",
			Device:               "accelerated",
			Precision:            "fp16",
			DisableSafetyChecker: true,
			Timeout:              10 * time.Minute,
		},
		Output: OutputConfig{
			Dir:     "output",
			Quality: 95,
		},
		Backends: BackendsConfig{
			HuggingFace: Credential{URL: "https://api-inference.huggingface.co", Env: "HF_TOKEN"},
			Replicate:   Credential{URL: "https://api.replicate.com", Env: "REPLICATE_API_TOKEN", PollInterval: time.Second},
			Dezgo:       Credential{URL: "https://api.dezgo.com", Env: "DEZGO_API_KEY"},
			OpenAI:      Credential{Env: "OPENAI_API_KEY"},
		},
	}
}

// Load reads the configuration at path over the defaults.
// If the file doesn't exist, returns defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return nil, err
	}

	md, err := toml.Decode(string(data), cfg)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("parsing %s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	return cfg, nil
}

func oneOf(name, value string, valid []string) error {
	if slices.Contains(valid, value) {
		return nil
	}
	return fmt.Errorf("invalid %s %q (must be one of: %s)", name, value, strings.Join(valid, ", "))
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	errs = append(errs,
		oneOf("backend", c.Pipeline.Backend, Backends),
		oneOf("device", c.Pipeline.Device, Devices),
		oneOf("precision", c.Pipeline.Precision, Precisions),
		oneOf("seed policy", c.Generation.SeedPolicy, SeedPolicies),
	)
	if c.Generation.Height <= 0 || c.Generation.Width <= 0 {
		errs = append(errs, fmt.Errorf("invalid size %dx%d", c.Generation.Width, c.Generation.Height))
	}
	if c.Generation.Steps <= 0 {
		errs = append(errs, fmt.Errorf("invalid step count %d", c.Generation.Steps))
	}
	if c.Generation.Guidance < 0 {
		errs = append(errs, fmt.Errorf("invalid guidance %g", c.Generation.Guidance))
	}
	if c.Pipeline.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("invalid pipeline timeout %s", c.Pipeline.Timeout))
	}
	if c.Backends.Replicate.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("invalid replicate poll interval %s", c.Backends.Replicate.PollInterval))
	}
	if c.Output.Quality < 1 || c.Output.Quality > 100 {
		errs = append(errs, fmt.Errorf("invalid jpeg quality %d (must be 1-100)", c.Output.Quality))
	}
	if c.Output.Dir == "" {
		errs = append(errs, errors.New("output dir is required"))
	}
	if c.Registry.Path == "" && c.Registry.Parameter == "" {
		errs = append(errs, errors.New("registry path or parameter is required"))
	}
	if c.Output.Distribution != "" && c.Output.Bucket == "" {
		errs = append(errs, errors.New("output distribution requires an output bucket"))
	}
	return errors.Join(errs...)
}

// Credential returns the settings for the configured backend.
func (c *Config) Credential() Credential {
	switch c.Pipeline.Backend {
	case "huggingface":
		return c.Backends.HuggingFace
	case "replicate":
		return c.Backends.Replicate
	case "dezgo":
		return c.Backends.Dezgo
	case "openai":
		return c.Backends.OpenAI
	default:
		return Credential{}
	}
}
