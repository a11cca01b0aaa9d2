// Package registry loads the ordered list of model identifiers for a run.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dmorgan81/modelsweep/internal/failure"
)

type Loader interface {
	Load(context.Context) ([]string, error)
}

func parse(source string, data []byte) ([]string, error) {
	var models []string
	if err := json.Unmarshal(data, &models); err != nil {
		return nil, failure.Wrap(failure.KindConfigParse, "parsing "+source, err)
	}
	// null decodes without error but is not a list of models
	if models == nil {
		return nil, failure.New(failure.KindConfigParse, source+": registry is not a JSON array")
	}
	return models, nil
}

// OutputName returns the second "/" separated segment of id, which names the
// output file.
func OutputName(id string) (string, error) {
	parts := strings.Split(id, "/")
	if len(parts) < 2 || parts[1] == "" {
		return "", failure.New(failure.KindIdentifierMalformed,
			fmt.Sprintf("model identifier %q has no name segment", id))
	}
	return parts[1], nil
}

// OutputPath joins dir and the JPEG file name derived from id.
func OutputPath(dir, id string) (string, error) {
	name, err := OutputName(id)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name+".jpg"), nil
}

type Entry struct {
	Model  string
	Output string
	Err    error
}

// Describe pairs each identifier with the path it would be written to.
func Describe(models []string, dir string) []Entry {
	entries := make([]Entry, 0, len(models))
	for _, m := range models {
		out, err := OutputPath(dir, m)
		entries = append(entries, Entry{Model: m, Output: out, Err: err})
	}
	return entries
}
