package utils

import (
	"bytes"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewDebugLogger logs all levels to an in-memory buffer, for tests.
func NewDebugLogger() (*zap.SugaredLogger, *bytes.Buffer) {
	buffer := &bytes.Buffer{}
	encoderConfig := zapcore.EncoderConfig{
		MessageKey:       "msg",
		LevelKey:         "level",
		EncodeLevel:      zapcore.CapitalLevelEncoder,
		ConsoleSeparator: "  ",
	}
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig),
		zapcore.Lock(zapcore.AddSync(buffer)),
		zapcore.DebugLevel,
	)
	return zap.New(core).Sugar(), buffer
}
