package config

import "time"

// Config is the complete settings file.
type Config struct {
	Registry   RegistryConfig   `toml:"registry"`
	Generation GenerationConfig `toml:"generation"`
	Pipeline   PipelineConfig   `toml:"pipeline"`
	Output     OutputConfig     `toml:"output"`
	Backends   BackendsConfig   `toml:"backends"`
}

// RegistryConfig says where the model list comes from. Parameter, when set,
// names an SSM parameter and takes precedence over Path.
type RegistryConfig struct {
	Path      string `toml:"path"`
	Parameter string `toml:"parameter"`
}

// GenerationConfig holds the numeric knobs for every inference call.
type GenerationConfig struct {
	Height     int     `toml:"height"`
	Width      int     `toml:"width"`
	Steps      int     `toml:"steps"`
	Guidance   float64 `toml:"guidance"`
	Seed       int64   `toml:"seed"`
	SeedPolicy string  `toml:"seed_policy"`
}

type PipelineConfig struct {
	Backend   string `toml:"backend"`
	Device    string `toml:"device"`
	Precision string `toml:"precision"`
	// DisableSafetyChecker turns off the backend's content filter.
	DisableSafetyChecker bool          `toml:"disable_safety_checker"`
	Timeout              time.Duration `toml:"timeout"`
}

type OutputConfig struct {
	Dir     string `toml:"dir"`
	Quality int    `toml:"quality"`
	// Bucket enables mirroring outputs to S3.
	Bucket string `toml:"bucket"`
	Prefix string `toml:"prefix"`
	// Distribution is a CloudFront distribution to invalidate after upload.
	Distribution string `toml:"distribution"`
}

type BackendsConfig struct {
	HuggingFace Credential `toml:"huggingface"`
	Replicate   Credential `toml:"replicate"`
	Dezgo       Credential `toml:"dezgo"`
	OpenAI      Credential `toml:"openai"`
}

// Credential locates a backend and its API key. The key is resolved from Key,
// then the environment variable Env, then the SSM parameter KeyParam.
type Credential struct {
	URL          string        `toml:"url"`
	Key          string        `toml:"key"`
	Env          string        `toml:"env"`
	KeyParam     string        `toml:"key_param"`
	PollInterval time.Duration `toml:"poll_interval"`
}
