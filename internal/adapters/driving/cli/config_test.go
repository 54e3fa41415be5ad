package cli

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/tome/internal/core/domain"
)

func TestConfigGetCmd(t *testing.T) {
	_, restore := setupTestServices()
	defer restore()

	out, err := execute(t, "config", "get", "chunking.chunk_size")
	require.NoError(t, err)
	assert.Equal(t, "1000\n", out)

	_, err = execute(t, "config", "get", "nope")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestConfigSetCmd(t *testing.T) {
	ts, restore := setupTestServices()
	defer restore()

	out, err := execute(t, "config", "set", "embedding.provider", "ollama")
	require.NoError(t, err)
	assert.Equal(t, "ollama", ts.settings.set["embedding.provider"])
	assert.Contains(t, out, "embedding.provider = ollama")

	_, err = execute(t, "config", "set", "unknown.key", "x")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestConfigUnsetCmd(t *testing.T) {
	ts, restore := setupTestServices()
	defer restore()

	out, err := execute(t, "config", "unset", "chunking.chunk_size")
	require.NoError(t, err)
	assert.Equal(t, []string{"chunking.chunk_size"}, ts.settings.unset)
	assert.Contains(t, out, "chunking.chunk_size reset to default")

	_, err = execute(t, "config", "unset", "unknown.key")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestConfigListCmd(t *testing.T) {
	_, restore := setupTestServices()
	defer restore()

	out, err := execute(t, "config", "list")

	require.NoError(t, err)
	assert.Regexp(t, `chunking\.chunk_size\s+1000`, out)
	assert.Regexp(t, `embedding\.api_key\s+\(not set\)`, out)
	assert.Regexp(t, `embedding\.provider\s+hashing`, out)
}

func TestConfigValidateCmd(t *testing.T) {
	ts, restore := setupTestServices()
	defer restore()

	out, err := execute(t, "config", "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "is reachable")

	ts.settings.validateErr = errors.New("connection refused")
	_, err = execute(t, "config", "validate")
	assert.ErrorContains(t, err, "connection refused")
}
