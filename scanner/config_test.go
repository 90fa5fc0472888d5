package scanner

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tempStore(t *testing.T) *ConfigStore {
	t.Helper()
	return NewConfigStore(filepath.Join(t.TempDir(), "scan-config.json"))
}

func int64p(v int64) *int64 { return &v }

func TestConfig_IsComplete(t *testing.T) {
	assert.False(t, Config{}.IsComplete())
	assert.False(t, Config{EventID: int64p(1), EventLocationID: int64p(2)}.IsComplete())

	complete := Config{EventID: int64p(1), EventLocationID: int64p(2), EventEntryPointID: int64p(3)}
	assert.True(t, complete.IsComplete(), "roster is optional")
}

func TestConfigStore_RoundTrip(t *testing.T) {
	store := tempStore(t)

	cfg := Config{
		EventID:           int64p(5),
		EventLocationID:   int64p(9),
		EventEntryPointID: int64p(14),
		RosterID:          int64p(2),
		DeviceID:          "device-1",
	}
	require.NoError(t, store.Save(cfg))

	loaded := store.Load()
	assert.Equal(t, cfg, loaded)
	assert.True(t, loaded.IsComplete())
}

func TestConfigStore_MissingFileDefaults(t *testing.T) {
	store := tempStore(t)
	assert.Equal(t, Config{}, store.Load())
}

func TestConfigStore_CorruptFileDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scan-config.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	store := NewConfigStore(path)
	assert.Equal(t, Config{}, store.Load())
}

func TestConfigStore_ClearKeepsDeviceID(t *testing.T) {
	store := tempStore(t)
	require.NoError(t, store.Save(Config{
		EventID:           int64p(1),
		EventLocationID:   int64p(2),
		EventEntryPointID: int64p(3),
		DeviceID:          "device-1",
	}))

	require.NoError(t, store.Clear())

	loaded := store.Load()
	assert.False(t, loaded.IsComplete())
	assert.Nil(t, loaded.EventID)
	assert.Equal(t, "device-1", loaded.DeviceID)
}
