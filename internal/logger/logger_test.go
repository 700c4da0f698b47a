package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

// TestParseLogLevel verifies mapping from strings to zapcore.Level and handling of unknown values.
func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	cases := map[string]zapcore.Level{
		"debug": zapcore.DebugLevel,
		"info":  zapcore.InfoLevel,
		"warn":  zapcore.WarnLevel,
		"error": zapcore.ErrorLevel,
		"panic": zapcore.PanicLevel,
		"fatal": zapcore.FatalLevel,
	}
	for s, lvl := range cases {
		got, ok := ParseLogLevel(s)
		require.True(t, ok)
		require.Equal(t, lvl, got)
	}

	_, ok := ParseLogLevel("unknown")
	require.False(t, ok)
}

// TestFromContext_Fallback ensures the global logger is returned
// when no scoped logger is attached.
func TestFromContext_Fallback(t *testing.T) {
	t.Parallel()

	require.Equal(t, Logger(), FromContext(context.Background()))
	require.Equal(t, Logger(), FromContext(nil)) //nolint:staticcheck // Nil context fallback is part of the contract.
}

// TestWithName_AttachesScopedLogger checks that WithName stores a distinct logger in the context.
func TestWithName_AttachesScopedLogger(t *testing.T) {
	t.Parallel()

	ctx := WithName(context.Background(), "smartmeter-test")
	require.NotEqual(t, Logger(), FromContext(ctx))

	kvCtx := WithKV(ctx, "component", "test")
	require.NotEqual(t, FromContext(ctx), FromContext(kvCtx))
}

// TestNewWithFile_WritesWithoutError creates a file-backed logger in a temp dir and logs through it.
func TestNewWithFile_WritesWithoutError(t *testing.T) {
	t.Parallel()

	l := NewWithFile(zapcore.DebugLevel, t.TempDir()+"/daemon.log", WithLevel(zapcore.InfoLevel))
	require.NotNil(t, l)
	l.Infow("started", "port", "/dev/ttyUSB0")

	// Sync errors on stdout are environment-dependent and not asserted.
	_ = l.Sync()
}
