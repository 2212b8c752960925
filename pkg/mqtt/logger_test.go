package mqtt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/afnaayusuf/kintsugi/pkg/log"
)

func TestPahoLoggerLevels(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := log.NewFromZap(zap.New(core)).Logr().WithName("paho")

	pahoLogger{logger: logger}.Println("sending", "CONNECT")
	pahoLogger{logger: logger}.Printf("received %s\n", "CONNACK")
	pahoLogger{logger: logger, errors: true}.Printf("connection lost: %v", "EOF")

	entries := logs.All()
	require.Len(t, entries, 3)
	assert.Equal(t, "sending CONNECT", entries[0].Message)
	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	assert.Equal(t, "received CONNACK", entries[1].Message)
	assert.Equal(t, zapcore.ErrorLevel, entries[2].Level)
	assert.Equal(t, "connection lost: EOF", entries[2].Message)
	assert.Equal(t, "paho", entries[2].LoggerName)
}

func TestPahoLoggerDropsTraceAboveDebug(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	logger := log.NewFromZap(zap.New(core)).Logr()

	pahoLogger{logger: logger}.Println("PINGREQ")
	assert.Zero(t, logs.Len())
}
