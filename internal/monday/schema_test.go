package monday

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultManifestStreams(t *testing.T) {
	m, err := DefaultManifest()
	require.NoError(t, err)
	for _, stream := range []string{"activity_logs", "boards", "items", "tags", "teams", "updates", "users", "workspaces"} {
		_, ok := m.Schema(stream)
		assert.True(t, ok, stream)
	}
}

func TestPropertiesStripsSynthesizedFields(t *testing.T) {
	m := testManifest(t)

	activity, err := m.Properties("activity_logs")
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "event", "data", "entity", "created_at"}, activity.Names())

	items, err := m.Properties("items")
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name", "updated_at", "column_values", "board"}, items.Names())
	assert.Equal(t, []string{"id", "text", "display_value"}, items[3].Children.Names())

	_, err = m.Properties("missing")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestParseManifestWithoutSchemas(t *testing.T) {
	_, err := ParseManifest("empty.yaml", []byte("version: 1\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot find schemas")
}
