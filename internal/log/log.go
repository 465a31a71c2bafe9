// Package log provides opt-in debug logging for the session engine.
// Enabled via PIXCHAT_DEBUG=1; output goes to ~/.pixchat/debug.log
// with rotation.
package log

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	logger      *zap.Logger
	enabled     bool
	initialized bool
	mu          sync.Mutex
)

// Init initializes the logger based on the PIXCHAT_DEBUG env var.
func Init() error {
	mu.Lock()
	defer mu.Unlock()

	if initialized {
		return nil
	}
	initialized = true

	if os.Getenv("PIXCHAT_DEBUG") != "1" {
		logger = zap.NewNop()
		return nil
	}

	enabled = true

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return err
	}

	logDir := filepath.Join(homeDir, ".pixchat")
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return err
	}

	writeSyncer := zapcore.AddSync(&lumberjack.Logger{
		Filename:   filepath.Join(logDir, "debug.log"),
		MaxSize:    50, // MB
		MaxBackups: 3,
		MaxAge:     7, // Days
		Compress:   true,
	})

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "T",
		MessageKey:     "M",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeTime:     zapcore.TimeEncoderOfLayout("15:04:05"),
		EncodeDuration: zapcore.StringDurationEncoder,
	}

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig),
		writeSyncer,
		zapcore.DebugLevel,
	)

	logger = zap.New(core)
	logger.Info("Debug logging started")

	return nil
}

// IsEnabled returns whether debug logging is enabled.
func IsEnabled() bool {
	return enabled
}

// Logger returns the underlying zap logger.
func Logger() *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

// Sync flushes any buffered log entries.
func Sync() error {
	if logger != nil {
		return logger.Sync()
	}
	return nil
}

// escapeForLog escapes newlines and tabs for single-line log output.
func escapeForLog(s string) string {
	s = strings.ReplaceAll(s, "\n", "\\n")
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.ReplaceAll(s, "\t", "\\t")
	return s
}

// LogRequest logs an outbound provider call in human-readable format.
func LogRequest(providerName, model, kind, prompt string, images, historyLen int) {
	if !enabled {
		return
	}
	logger.Info(fmt.Sprintf(">>> [%s] %s kind=%s images=%d history=%d prompt=%s",
		providerName, model, kind, images, historyLen, escapeForLog(prompt)))
}

// LogResponse logs a provider reply summary.
func LogResponse(providerName string, textLen int, hasImage bool) {
	if !enabled {
		return
	}
	logger.Info(fmt.Sprintf("<<< [%s] text=%dB image=%v", providerName, textLen, hasImage))
}

// LogError logs a provider or engine failure.
func LogError(source string, err error) {
	if !enabled {
		return
	}
	logger.Error(fmt.Sprintf("[%s] %v", source, err))
}
