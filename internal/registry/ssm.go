package registry

import (
	"context"

	"github.com/dmorgan81/modelsweep/internal/failure"
	"github.com/dmorgan81/modelsweep/internal/log"
	"github.com/dmorgan81/modelsweep/internal/param"
)

// ParameterLoader reads the registry document from a parameter store.
type ParameterLoader struct {
	Fetcher param.Fetcher
	Path    string
}

func (l *ParameterLoader) Load(ctx context.Context) ([]string, error) {
	log := log.FromContextOrDiscard(ctx).WithGroup("registry").With("parameter", l.Path)
	log.Debug("fetching model registry")

	value, err := l.Fetcher.Fetch(ctx, l.Path)
	if err != nil {
		return nil, failure.Wrap(failure.KindConfigNotFound, "fetching model registry", err)
	}

	models, err := parse(l.Path, []byte(value))
	if err != nil {
		return nil, err
	}
	log.Info("loaded model registry", "models", len(models))
	return models, nil
}
