package logger

import (
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Log is the global logger
	Log *zap.SugaredLogger

	// logger is the underlying zap logger
	logger *zap.Logger
)

// Init initializes the logger with the given level and format.
// Logs go to stderr so that the selection prompt on stdout stays readable.
func Init(level, format string) error {
	return InitWriter(level, format, os.Stderr)
}

// InitWriter initializes the logger like Init but writes to w
func InitWriter(level, format string, w io.Writer) error {
	zapLevel, err := parseLevel(level)
	if err != nil {
		return err
	}

	config, err := newConfig(format)
	if err != nil {
		return err
	}

	var encoder zapcore.Encoder
	if config.Encoding == "json" {
		encoder = zapcore.NewJSONEncoder(config.EncoderConfig)
	} else {
		encoder = zapcore.NewConsoleEncoder(config.EncoderConfig)
	}

	var opts []zap.Option
	if !config.DisableCaller {
		opts = append(opts, zap.AddCaller())
	}
	if !config.DisableStacktrace {
		opts = append(opts, zap.AddStacktrace(zapcore.ErrorLevel))
	}

	core := zapcore.NewCore(encoder, zapcore.Lock(zapcore.AddSync(w)), zap.NewAtomicLevelAt(zapLevel))
	logger = zap.New(core, opts...)
	Log = logger.Sugar()
	return nil
}

func newConfig(format string) (zap.Config, error) {
	var config zap.Config

	switch format {
	case "json":
		config = zap.NewProductionConfig()
		config.EncoderConfig.TimeKey = "timestamp"
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		config.EncoderConfig.CallerKey = "caller"
		config.EncoderConfig.EncodeCaller = zapcore.ShortCallerEncoder
	case "text", "":
		config = zap.NewDevelopmentConfig()
		config.Encoding = "console"
		config.Development = false
		config.DisableCaller = true
		config.DisableStacktrace = true
		config.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		config.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	default:
		return config, fmt.Errorf("invalid log format: %s", format)
	}

	config.EncoderConfig.LevelKey = "level"
	config.EncoderConfig.MessageKey = "msg"
	return config, nil
}

// parseLevel converts string log level to zapcore.Level
func parseLevel(level string) (zapcore.Level, error) {
	switch level {
	case "debug":
		return zapcore.DebugLevel, nil
	case "info", "":
		return zapcore.InfoLevel, nil
	case "warn":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("invalid log level: %s", level)
	}
}

// Sync flushes any buffered log entries
func Sync() error {
	if logger != nil {
		return logger.Sync()
	}
	return nil
}

// GetZapLogger returns the underlying zap.Logger, or a no-op logger
// before Init
func GetZapLogger() *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

// Named returns a child logger for a component
func Named(component string) *zap.Logger {
	return GetZapLogger().Named(component)
}
