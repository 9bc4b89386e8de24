package xfs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandTilde(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, home, ExpandTilde("~"))
	assert.Equal(t, filepath.Join(home, ".cache", "stylus"), ExpandTilde("~/.cache/stylus"))
	assert.Equal(t, "/opt/models", ExpandTilde("/opt/models"))
	assert.Equal(t, "~other/models", ExpandTilde("~other/models"))
}
