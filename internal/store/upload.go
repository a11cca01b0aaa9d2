package store

import (
	"context"
	"os"
	"path/filepath"

	"github.com/dmorgan81/modelsweep/internal/log"
)

type UploadParams struct {
	Name        string
	Data        []byte
	ContentType string
	Metadata    map[string]string
}

type Uploader interface {
	Upload(context.Context, UploadParams) error
}

// FileUploader writes uploads to the local filesystem. Name is taken relative
// to Root unless it is absolute.
type FileUploader struct {
	Root string
}

func (u *FileUploader) path(name string) string {
	if filepath.IsAbs(name) || u.Root == "" {
		return name
	}
	return filepath.Join(u.Root, name)
}

func (u *FileUploader) Upload(ctx context.Context, params UploadParams) error {
	path := u.path(params.Name)
	log := log.FromContextOrDiscard(ctx).WithGroup("file")
	log.Debug("writing", "file", path, "bytes", len(params.Data))

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, params.Data, 0o644)
}

// MultiUploader sends every upload to each sink in order and stops at the
// first error. Sinks before the failing one keep what they wrote; that case is
// logged as a partial write.
type MultiUploader []Uploader

func (m MultiUploader) Upload(ctx context.Context, params UploadParams) error {
	for i, u := range m {
		if err := u.Upload(ctx, params); err != nil {
			if i > 0 {
				log.FromContextOrDiscard(ctx).WithGroup("multi").Warn("upload partially written",
					"name", params.Name, "written", i, "sinks", len(m), "err", err)
			}
			return err
		}
	}
	return nil
}
