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

// TestFromContext_Fallback ensures the global logger is returned for a bare context.
func TestFromContext_Fallback(t *testing.T) {
	t.Parallel()

	require.Same(t, Logger(), FromContext(context.Background()))
}

// TestContextCarriage verifies that a named logger stored in the context is returned as-is.
func TestContextCarriage(t *testing.T) {
	t.Parallel()

	named := Logger().Named("scoped")
	ctx := ToContext(context.Background(), named)
	require.Same(t, named, FromContext(ctx))

	// WithName and WithKV must replace the stored logger.
	require.NotSame(t, named, FromContext(WithName(ctx, "deeper")))
	require.NotSame(t, named, FromContext(WithKV(ctx, "run_id", "abc")))
}
