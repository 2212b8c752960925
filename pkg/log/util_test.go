package log

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestToFields(t *testing.T) {
	now := time.Now()
	err := errors.New("boom")

	tests := []struct {
		name  string
		input []any
		want  []zapcore.FieldType
	}{
		{"empty input", nil, nil},
		{"string-int-bool", []any{"a", "x", "b", 123, "c", true},
			[]zapcore.FieldType{zapcore.StringType, zapcore.Int64Type, zapcore.BoolType}},
		{"time and duration", []any{"t", now, "d", time.Second},
			[]zapcore.FieldType{zapcore.TimeType, zapcore.DurationType}},
		{"error only", []any{err}, []zapcore.FieldType{zapcore.ErrorType}},
		{"named error", []any{"error", err}, []zapcore.FieldType{zapcore.ErrorType}},
		{"passthrough field", []any{zap.String("x", "y"), "num", 4.2},
			[]zapcore.FieldType{zapcore.StringType, zapcore.Float64Type}},
		{"odd number of args", []any{"key1", "val1", "key2"},
			[]zapcore.FieldType{zapcore.StringType, zapcore.StringType}},
		{"string slice", []any{"codes", []string{"P0300"}}, []zapcore.FieldType{zapcore.ArrayMarshalerType}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields := toFields(tt.input...)
			require.Len(t, fields, len(tt.want))
			for i, f := range fields {
				assert.NotEmpty(t, f.Key)
				assert.Equal(t, tt.want[i], f.Type, f.Key)
			}
		})
	}
}

func TestToFieldsNonStringKey(t *testing.T) {
	fields := toFields(123, "value")
	require.Len(t, fields, 1)
	assert.Contains(t, fields[0].Key, "invalid_key")
}

func TestLoggerWritesStructuredEntries(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := NewFromZap(zap.New(core)).WithName("feed").WithValues("vehicleID", "V1")

	l.Info("Telemetry socket connected", "attempt", 2)
	l.Error(errors.New("refused"), "Telemetry poll failed")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "feed", entries[0].LoggerName)
	assert.Equal(t, map[string]any{"vehicleID": "V1", "attempt": int64(2)}, entries[0].ContextMap())
	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
	assert.Equal(t, "refused", entries[1].ContextMap()["error"])
}

func TestOptionsValidate(t *testing.T) {
	opts := NewOptions()
	assert.Empty(t, opts.Validate())

	opts.Level = "loud"
	opts.Format = "xml"
	assert.Len(t, opts.Validate(), 2)
}
