package inject

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudfront"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/dmorgan81/modelsweep/internal/batch"
	"github.com/dmorgan81/modelsweep/internal/config"
	"github.com/dmorgan81/modelsweep/internal/driver"
	"github.com/dmorgan81/modelsweep/internal/log"
	"github.com/dmorgan81/modelsweep/internal/param"
	"github.com/dmorgan81/modelsweep/internal/pipeline"
	"github.com/dmorgan81/modelsweep/internal/registry"
	"github.com/dmorgan81/modelsweep/internal/store"
	"github.com/samber/do"
)

// Setup registers every component for a run. Providers are lazy, so AWS
// clients are only built when the configuration points at SSM, S3 or
// CloudFront.
func Setup(ctx context.Context, cfg *config.Config, progress batch.Progress, run string) *do.Injector {
	log := log.FromContextOrDiscard(ctx)

	injector := do.NewWithOpts(&do.InjectorOpts{
		Logf: func(format string, args ...any) {
			log.Debug(fmt.Sprintf(format, args...))
		},
	})
	do.ProvideValue[*config.Config](injector, cfg)

	do.Provide[aws.Config](injector, func(i *do.Injector) (aws.Config, error) {
		return awsconfig.LoadDefaultConfig(ctx)
	})
	do.Provide[*ssm.Client](injector, func(i *do.Injector) (*ssm.Client, error) {
		return ssm.NewFromConfig(do.MustInvoke[aws.Config](i)), nil
	})
	do.Provide[*s3.Client](injector, func(i *do.Injector) (*s3.Client, error) {
		return s3.NewFromConfig(do.MustInvoke[aws.Config](i)), nil
	})
	do.Provide[*cloudfront.Client](injector, func(i *do.Injector) (*cloudfront.Client, error) {
		return cloudfront.NewFromConfig(do.MustInvoke[aws.Config](i)), nil
	})
	do.ProvideValue[*http.Client](injector, &http.Client{Timeout: cfg.Pipeline.Timeout})

	do.Provide[param.Fetcher](injector, param.NewParameterStoreFetcher)
	do.Provide[registry.Loader](injector, newLoader)
	do.ProvideNamed[string](injector, "api_key", func(i *do.Injector) (string, error) {
		return resolveKey(ctx, i, cfg.Credential())
	})
	do.Provide[pipeline.Factory](injector, newFactory)
	do.Provide[store.Uploader](injector, newUploader)
	do.Provide[store.Invalidator](injector, newInvalidator)
	do.Provide[driver.Settings](injector, newSettings)
	do.Provide[*driver.Driver](injector, driver.NewDriver)

	do.ProvideValue[batch.Progress](injector, progress)
	do.ProvideNamedValue[string](injector, "output_dir", cfg.Output.Dir)
	do.ProvideNamedValue[string](injector, "run", run)
	do.Provide[*batch.Runner](injector, batch.NewRunner)

	return injector
}

// Runner resolves the batch runner, building its dependencies one at a time
// so a configuration problem surfaces as an error naming the component.
func Runner(i *do.Injector) (*batch.Runner, error) {
	steps := []struct {
		name   string
		invoke func(*do.Injector) error
	}{
		{"model registry", invokeErr[registry.Loader]},
		{"pipeline", invokeErr[pipeline.Factory]},
		{"output store", invokeErr[store.Uploader]},
		{"invalidator", invokeErr[store.Invalidator]},
		{"generation settings", invokeErr[driver.Settings]},
	}
	for _, s := range steps {
		if err := s.invoke(i); err != nil {
			return nil, fmt.Errorf("%s: %w", s.name, err)
		}
	}
	return do.Invoke[*batch.Runner](i)
}

func invokeErr[T any](i *do.Injector) error {
	_, err := do.Invoke[T](i)
	return err
}

func newLoader(i *do.Injector) (registry.Loader, error) {
	cfg := do.MustInvoke[*config.Config](i)
	if cfg.Registry.Parameter != "" {
		fetcher, err := do.Invoke[param.Fetcher](i)
		if err != nil {
			return nil, err
		}
		return &registry.ParameterLoader{Fetcher: fetcher, Path: cfg.Registry.Parameter}, nil
	}
	return &registry.FileLoader{Path: cfg.Registry.Path}, nil
}

// resolveKey prefers an explicit key, then the environment, then SSM.
func resolveKey(ctx context.Context, i *do.Injector, cred config.Credential) (string, error) {
	if cred.Key != "" {
		return cred.Key, nil
	}
	if cred.Env != "" {
		if v := os.Getenv(cred.Env); v != "" {
			return v, nil
		}
	}
	if cred.KeyParam != "" {
		fetcher, err := do.Invoke[param.Fetcher](i)
		if err != nil {
			return "", err
		}
		return fetcher.Fetch(ctx, cred.KeyParam)
	}
	return "", nil
}

func requireKey(i *do.Injector, backend, env string) (string, error) {
	key, err := do.InvokeNamed[string](i, "api_key")
	if err != nil {
		return "", err
	}
	if key == "" {
		return "", fmt.Errorf("%s api key missing; set %s or backends.%s.key", backend, env, backend)
	}
	return key, nil
}

func newFactory(i *do.Injector) (pipeline.Factory, error) {
	cfg := do.MustInvoke[*config.Config](i)
	client := do.MustInvoke[*http.Client](i)
	cred := cfg.Credential()

	switch cfg.Pipeline.Backend {
	case "synthetic":
		return pipeline.SyntheticFactory{}, nil
	case "huggingface":
		token, err := do.InvokeNamed[string](i, "api_key")
		if err != nil {
			return nil, err
		}
		return &pipeline.HuggingFaceFactory{Client: client, BaseURL: cred.URL, Token: token}, nil
	case "replicate":
		token, err := requireKey(i, "replicate", cred.Env)
		if err != nil {
			return nil, err
		}
		return &pipeline.ReplicateFactory{Client: client, BaseURL: cred.URL, Token: token, PollInterval: cred.PollInterval}, nil
	case "dezgo":
		key, err := requireKey(i, "dezgo", cred.Env)
		if err != nil {
			return nil, err
		}
		return &pipeline.DezgoFactory{Client: client, BaseURL: cred.URL, Key: key}, nil
	case "openai":
		key, err := requireKey(i, "openai", cred.Env)
		if err != nil {
			return nil, err
		}
		return pipeline.NewOpenAIFactory(key, cred.URL), nil
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Pipeline.Backend)
	}
}

func newUploader(i *do.Injector) (store.Uploader, error) {
	cfg := do.MustInvoke[*config.Config](i)
	files := &store.FileUploader{}
	if cfg.Output.Bucket == "" {
		return files, nil
	}
	client, err := do.Invoke[*s3.Client](i)
	if err != nil {
		return nil, err
	}
	return store.MultiUploader{files, newS3Uploader(client, cfg)}, nil
}

func newS3Uploader(client *s3.Client, cfg *config.Config) *store.S3Uploader {
	return &store.S3Uploader{Client: client, Bucket: cfg.Output.Bucket, Prefix: cfg.Output.Prefix}
}

func newInvalidator(i *do.Injector) (store.Invalidator, error) {
	cfg := do.MustInvoke[*config.Config](i)
	if cfg.Output.Distribution == "" {
		return store.NopInvalidator{}, nil
	}
	if cfg.Output.Bucket == "" {
		return nil, errors.New("cloudfront invalidation requires an output bucket")
	}
	client, err := do.Invoke[*cloudfront.Client](i)
	if err != nil {
		return nil, err
	}
	keys := &store.S3Uploader{Prefix: cfg.Output.Prefix}
	return &store.CloudFrontInvalidator{Client: client, Distribution: cfg.Output.Distribution, Key: keys.Key}, nil
}

func newSettings(i *do.Injector) (driver.Settings, error) {
	cfg := do.MustInvoke[*config.Config](i)
	device, err := pipeline.ParseDevice(cfg.Pipeline.Device)
	if err != nil {
		return driver.Settings{}, err
	}
	precision, err := pipeline.ParsePrecision(cfg.Pipeline.Precision)
	if err != nil {
		return driver.Settings{}, err
	}
	policy, err := driver.ParseSeedPolicy(cfg.Generation.SeedPolicy)
	if err != nil {
		return driver.Settings{}, err
	}
	return driver.Settings{
		Height:     cfg.Generation.Height,
		Width:      cfg.Generation.Width,
		Steps:      cfg.Generation.Steps,
		Guidance:   cfg.Generation.Guidance,
		Seed:       cfg.Generation.Seed,
		SeedPolicy: policy,
		Load: pipeline.LoadOptions{
			Device:               device,
			Precision:            precision,
			DisableSafetyChecker: cfg.Pipeline.DisableSafetyChecker,
		},
		Quality: cfg.Output.Quality,
	}, nil
}
