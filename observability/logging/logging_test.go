package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	require.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	require.Equal(t, slog.LevelWarn, ParseLevel(" warning "))
	require.Equal(t, slog.LevelError, ParseLevel("error"))
	require.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestMaskField(t *testing.T) {
	require.Equal(t, RedactedValue, MaskField("dsn", "postgres://user:pw@db").Value.String())
	require.Equal(t, "bolt", MaskField("storage", "bolt").Value.String())
	require.Equal(t, "", MaskField("jwt_secret", "").Value.String())
	require.Contains(t, RedactionAllowlist(), "reserve")
}

func TestSetupWithFileWritesRotatedLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "lendingd.log")
	logger, closer, err := SetupWithOptions(Options{
		Service: "lendingd",
		Env:     "test",
		Level:   "debug",
		File:    FileOptions{Path: path},
	})
	require.NoError(t, err)
	logger.Debug("reserve listed", slog.String("reserve", "0x01"))
	require.NoError(t, closer.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(raw), `"message":"reserve listed"`)
	require.Contains(t, string(raw), `"service":"lendingd"`)
	require.Contains(t, string(raw), `"severity":"DEBUG"`)
}
