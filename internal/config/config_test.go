package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load(filepath.Join(t.TempDir(), DefaultFileName))
	require.NoError(t, err)
	assert.Equal(t, ".pake-state", cfg.StateFile)
	assert.Equal(t, ".pake-journal.db", cfg.Journal.Path)
	assert.True(t, cfg.JournalEnabled())
	assert.Equal(t, "INFO", cfg.LogLevel)
	assert.Equal(t, "auto", cfg.Color)
}

func TestLoadPartialFileAppliesDefaults(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), DefaultFileName)
	require.NoError(t, os.WriteFile(path, []byte("state_file: build/.state\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "build/.state", cfg.StateFile)
	assert.Equal(t, "INFO", cfg.LogLevel)
	assert.True(t, cfg.JournalEnabled())
}

func TestLoadDisablesJournal(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), DefaultFileName)
	require.NoError(t, os.WriteFile(path, []byte("journal:\n  enabled: false\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.False(t, cfg.JournalEnabled())
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
	}{
		{name: "bad color", body: "color: sometimes\n"},
		{name: "bad level", body: "log_level: LOUD\n"},
		{name: "not yaml", body: "{{{"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), DefaultFileName)
			require.NoError(t, os.WriteFile(path, []byte(tt.body), 0o644))
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}
