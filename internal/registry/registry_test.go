package registry

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/dmorgan81/modelsweep/internal/failure"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutputName(t *testing.T) {
	tests := []struct {
		id      string
		want    string
		wantErr bool
	}{
		{id: "org/modelA", want: "modelA"},
		{id: "stabilityai/stable-diffusion-2-1", want: "stable-diffusion-2-1"},
		{id: "org/name/extra", want: "name"},
		{id: "bad-id-no-slash", wantErr: true},
		{id: "org/", wantErr: true},
		{id: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			got, err := OutputName(tt.id)
			if tt.wantErr {
				assert.Equal(t, failure.KindIdentifierMalformed, failure.KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOutputPath(t *testing.T) {
	p, err := OutputPath("output", "org/modelA")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("output", "modelA.jpg"), p)
}

func TestDescribe(t *testing.T) {
	entries := Describe([]string{"org/modelA", "bad"}, "out")
	require.Len(t, entries, 2)
	assert.Equal(t, filepath.Join("out", "modelA.jpg"), entries[0].Output)
	assert.NoError(t, entries[0].Err)
	assert.Error(t, entries[1].Err)
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "models.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestFileLoader(t *testing.T) {
	path := writeFile(t, `["org/modelB", "org/modelA", "bad-id-no-slash"]`)
	models, err := (&FileLoader{Path: path}).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"org/modelB", "org/modelA", "bad-id-no-slash"}, models)
}

func TestFileLoaderMissing(t *testing.T) {
	_, err := (&FileLoader{Path: filepath.Join(t.TempDir(), "nope.json")}).Load(context.Background())
	assert.Equal(t, failure.KindConfigNotFound, failure.KindOf(err))
	assert.True(t, failure.Fatal(err))
}

func TestFileLoaderMalformed(t *testing.T) {
	for name, content := range map[string]string{
		"syntax":      `["org/a",`,
		"not array":   `{"models": ["org/a"]}`,
		"non string":  `["org/a", 3]`,
		"null":        "null",
		"padded null": " null\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := (&FileLoader{Path: writeFile(t, content)}).Load(context.Background())
			assert.Equal(t, failure.KindConfigParse, failure.KindOf(err))
		})
	}
}

type fetcherFunc func(context.Context, string) (string, error)

func (f fetcherFunc) Fetch(ctx context.Context, path string) (string, error) { return f(ctx, path) }

func TestParameterLoader(t *testing.T) {
	l := &ParameterLoader{Path: "/models", Fetcher: fetcherFunc(func(_ context.Context, path string) (string, error) {
		assert.Equal(t, "/models", path)
		return `["org/a","org/b"]`, nil
	})}
	models, err := l.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"org/a", "org/b"}, models)

	l.Fetcher = fetcherFunc(func(context.Context, string) (string, error) {
		return "", errors.New("ParameterNotFound")
	})
	_, err = l.Load(context.Background())
	assert.Equal(t, failure.KindConfigNotFound, failure.KindOf(err))
}

func TestFileLoaderEmptyArray(t *testing.T) {
	models, err := (&FileLoader{Path: writeFile(t, `[]`)}).Load(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, models)
	assert.Empty(t, models)
}

func TestParameterLoaderNull(t *testing.T) {
	l := &ParameterLoader{Path: "/models", Fetcher: fetcherFunc(func(context.Context, string) (string, error) {
		return "null", nil
	})}
	_, err := l.Load(context.Background())
	assert.Equal(t, failure.KindConfigParse, failure.KindOf(err))
	assert.True(t, failure.Fatal(err))
}
