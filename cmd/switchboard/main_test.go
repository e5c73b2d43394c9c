package main

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/Operative-001/switchboard/internal/history"
)

func TestNewLogger(t *testing.T) {
	cmd := &cobra.Command{}
	cmd.Flags().String("log-level", "debug", "")
	cmd.Flags().Bool("dev-log", true, "")

	logger, err := newLogger(cmd)
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))

	require.NoError(t, cmd.Flags().Set("log-level", "loud"))
	_, err = newLogger(cmd)
	assert.Error(t, err)
}

func TestHistoryCommand(t *testing.T) {
	dir := t.TempDir()

	rootCmd.SetArgs([]string{"history", "--data", dir})
	require.NoError(t, rootCmd.Execute(), "missing database is not an error")

	hist, err := history.Open(dir)
	require.NoError(t, err)
	require.NoError(t, hist.Record(history.KindAccepted, "127.0.0.1:5000", ""))
	require.NoError(t, hist.Close())

	rootCmd.SetArgs([]string{"history", "--data", dir, "--count", "5"})
	require.NoError(t, rootCmd.Execute())
}

func TestServeBindFailure(t *testing.T) {
	rootCmd.SetArgs([]string{"serve", "--listen", "256.0.0.1:0", "--no-history"})
	assert.Error(t, rootCmd.Execute())
}
