package failure

import (
	"errors"
	"fmt"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrapNil(t *testing.T) {
	assert.NoError(t, Wrap(KindIO, "writing", nil))
}

func TestKindOf(t *testing.T) {
	err := fmt.Errorf("model org/a: %w", Wrap(KindInference, "generating image", errors.New("boom")))
	assert.Equal(t, KindInference, KindOf(err))
	assert.Equal(t, "model org/a: generating image: boom", err.Error())
	assert.Equal(t, KindUnknown, KindOf(errors.New("plain")))
}

func TestUnwrap(t *testing.T) {
	err := Wrap(KindConfigNotFound, "reading models.json", fs.ErrNotExist)
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestFatal(t *testing.T) {
	for kind, fatal := range map[Kind]bool{
		KindConfigNotFound:      true,
		KindConfigParse:         true,
		KindIdentifierMalformed: false,
		KindInference:           false,
		KindIO:                  false,
		KindUnknown:             false,
	} {
		t.Run(kind.String(), func(t *testing.T) {
			assert.Equal(t, fatal, Fatal(New(kind, "x")))
		})
	}
}
