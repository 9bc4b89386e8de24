package errcat

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMessage_Lookup(t *testing.T) {
	assert.Equal(t, "Download interrupted.", Message(DownloadInterrupted))
	assert.Equal(t, Message(UndefinedError), Message(Code(0x01)))
}

func TestError_IsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("forward: %w", New(ModuleNotLoaded))

	assert.ErrorIs(t, err, New(ModuleNotLoaded))
	assert.NotErrorIs(t, err, New(DownloadInterrupted))
}

func TestError_WrapKeepsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := Wrap(DownloadFailed, cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "Download failed. cause: connection reset", err.Error())
}

func TestCodeOf(t *testing.T) {
	code, ok := CodeOf(fmt.Errorf("outer: %w", New(DownloadNotActive)))
	assert.True(t, ok)
	assert.Equal(t, DownloadNotActive, code)

	_, ok = CodeOf(errors.New("plain"))
	assert.False(t, ok)
}
