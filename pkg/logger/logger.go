// Package logger provides opinionated logging capabilities for chatrelay
package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// FormatJSON selects the structured JSON encoder; anything else is console.
const FormatJSON = "json"

// NewLogger builds the process logger. Console output is colored and meant
// for people; json output is meant for log shippers.
func NewLogger(debug bool, format string) *zap.Logger {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "time"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	if format == FormatJSON {
		encoderConfig.EncodeLevel = zapcore.LowercaseLevelEncoder
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	} else {
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	}

	level := zap.InfoLevel
	if debug {
		level = zap.DebugLevel
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(os.Stdout), level)

	return zap.New(core, zap.AddCaller())
}

// Truncate shortens s for log previews, flattening newlines.
func Truncate(s string, maxLen int) string {
	out := make([]rune, 0, maxLen)
	for _, r := range s {
		if len(out) == maxLen {
			return string(out) + "..."
		}
		if r == '\n' {
			r = ' '
		}
		out = append(out, r)
	}
	return string(out)
}
