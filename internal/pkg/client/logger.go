package client

import (
	"fmt"
	"regexp"

	"go.uber.org/zap"
)

const loggerPrefix = "HTTP%s\t"

var tokenPattern = regexp.MustCompile(`(?i)(token:?\s*)[^\s]+`)

// Logger adapts the zap logger for the resty client.
// All HTTP chatter goes to the debug level and token values are hidden.
type Logger struct {
	logger *zap.SugaredLogger
}

func (l *Logger) Debugf(format string, v ...interface{}) {
	l.logWithoutSecrets("", format, v...)
}

func (l *Logger) Warnf(format string, v ...interface{}) {
	l.logWithoutSecrets("-WARN", format, v...)
}

func (l *Logger) Errorf(format string, v ...interface{}) {
	l.logWithoutSecrets("-ERROR", format, v...)
}

func (l *Logger) logWithoutSecrets(level string, format string, v ...interface{}) {
	v = append([]interface{}{level}, v...)
	msg := fmt.Sprintf(loggerPrefix+format, v...)
	msg = tokenPattern.ReplaceAllString(msg, "$1*****")
	l.logger.Debug(msg)
}
