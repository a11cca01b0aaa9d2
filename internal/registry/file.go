package registry

import (
	"context"
	"errors"
	"io/fs"
	"os"

	"github.com/dmorgan81/modelsweep/internal/failure"
	"github.com/dmorgan81/modelsweep/internal/log"
)

type FileLoader struct {
	Path string
}

func (l *FileLoader) Load(ctx context.Context) ([]string, error) {
	log := log.FromContextOrDiscard(ctx).WithGroup("registry").With("path", l.Path)
	log.Debug("reading model registry")

	data, err := os.ReadFile(l.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, failure.Wrap(failure.KindConfigNotFound, "model registry not found", err)
		}
		return nil, failure.Wrap(failure.KindConfigNotFound, "reading model registry", err)
	}

	models, err := parse(l.Path, data)
	if err != nil {
		return nil, err
	}
	log.Info("loaded model registry", "models", len(models))
	return models, nil
}
