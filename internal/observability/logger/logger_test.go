package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, zapcore.WarnLevel, ParseLevel(" warning "))
	assert.Equal(t, zapcore.ErrorLevel, ParseLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, ParseLevel("loud"))
}

func TestFrom_PrefersContextLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	restore := Replace(zap.New(core).Named("global"))
	defer restore()

	From(context.Background()).Info("global")
	From(ToContext(context.Background(), zap.New(core).Named("req"))).Info("scoped")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "global", entries[0].LoggerName)
	assert.Equal(t, "req", entries[1].LoggerName)
}

func TestOr(t *testing.T) {
	l := zap.NewNop()
	assert.Same(t, l, Or(l, "x"))
	assert.NotNil(t, Or(nil, "x"))
}

func TestToken_NeverLogsFullValue(t *testing.T) {
	f := Token("abcdefghijklmnop")
	assert.Equal(t, "token_prefix", f.Key)
	assert.Equal(t, "abcdef…", f.String)
	assert.Equal(t, "abc", Token("abc").String)
}
