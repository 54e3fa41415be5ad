package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/tome/internal/adapters/driving/tui/messages"
)

func TestTUICmd_Flags(t *testing.T) {
	flag := tuiCmd.Flags().Lookup("game-system")
	require.NotNil(t, flag)
	assert.Equal(t, "s", flag.Shorthand)
	assert.Equal(t, defaultGameSystem, flag.DefValue)
}

func TestNewTUIApp(t *testing.T) {
	_, restore := setupTestServices()
	defer restore()

	app, err := newTUIApp(tuiCmd)

	require.NoError(t, err)
	assert.Equal(t, messages.ViewSearch, app.CurrentView())
}

func TestNewTUIApp_RequiresRetrieval(t *testing.T) {
	_, restore := setupTestServices()
	defer restore()
	retrievalService = nil

	_, err := newTUIApp(tuiCmd)

	assert.ErrorIs(t, err, errRetrievalUnavailable)
}
