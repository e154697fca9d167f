package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/geospark-cli/internal/config"
	"github.com/sells-group/geospark-cli/internal/store"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, name := range []string{"run", "score", "runs", "learn", "serve"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "geospark", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestRunCommand_Flags(t *testing.T) {
	for _, name := range []string{"target", "category", "city", "scrape-only", "dry-run"} {
		require.NotNil(t, runCmd.Flags().Lookup(name), "run command should have --%s flag", name)
	}
	assert.Equal(t, "false", runCmd.Flags().Lookup("dry-run").DefValue)
	assert.Equal(t, "0", runCmd.Flags().Lookup("target").DefValue)
}

func TestScoreCommand_Args(t *testing.T) {
	assert.Error(t, scoreCmd.Args(scoreCmd, nil))
	assert.NoError(t, scoreCmd.Args(scoreCmd, []string{"lead-1"}))
	require.NotNil(t, scoreCmd.Flags().Lookup("save"))
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}

func TestSubcommands(t *testing.T) {
	tests := []struct {
		parent   string
		children []string
	}{
		{"runs", []string{"list", "show", "stats"}},
		{"learn", []string{"report", "recommend", "sources"}},
	}
	for _, tt := range tests {
		t.Run(tt.parent, func(t *testing.T) {
			parent, _, err := rootCmd.Find([]string{tt.parent})
			require.NoError(t, err)

			names := make(map[string]bool)
			for _, c := range parent.Commands() {
				names[c.Name()] = true
			}
			for _, name := range tt.children {
				assert.True(t, names[name], "expected %s %s", tt.parent, name)
			}
		})
	}
}

func TestInitStore_SQLite(t *testing.T) {
	prev := cfg
	t.Cleanup(func() { cfg = prev })
	cfg = &config.Config{Store: config.StoreConfig{
		Driver:      "sqlite",
		DatabaseURL: filepath.Join(t.TempDir(), "geospark.db"),
	}}

	ctx := context.Background()
	st, err := initStore(ctx)
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck

	runs, err := store.ListRuns(ctx, st, 10)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestInitStore_UnsupportedDriver(t *testing.T) {
	prev := cfg
	t.Cleanup(func() { cfg = prev })
	cfg = &config.Config{Store: config.StoreConfig{Driver: "mysql"}}

	_, err := initStore(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported store driver")
}
