package observability

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

type LoggerConfig struct {
	Level  string
	Format string // console or json
	// LogFile, when set, adds a rotated JSON file next to the console output.
	LogFile    string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// NewLogger builds the process logger. The returned func flushes and closes
// the file sink.
func NewLogger(cfg LoggerConfig) (*zap.Logger, func()) {
	return newLogger(cfg, zapcore.Lock(os.Stdout))
}

func newLogger(cfg LoggerConfig, console zapcore.WriteSyncer) (*zap.Logger, func()) {
	level := zap.NewAtomicLevel()
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level.SetLevel(zap.InfoLevel)
	}

	cores := []zapcore.Core{zapcore.NewCore(encoder(cfg.Format), console, level)}

	var file *lumberjack.Logger
	if cfg.LogFile != "" {
		file = &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    orDefault(cfg.MaxSizeMB, 50),
			MaxBackups: orDefault(cfg.MaxBackups, 5),
			MaxAge:     orDefault(cfg.MaxAgeDays, 14),
			Compress:   true,
		}
		// Files are always JSON.
		cores = append(cores, zapcore.NewCore(encoder("json"), zapcore.AddSync(file), level))
	}

	logger := zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddStacktrace(zap.ErrorLevel)).
		Named("symptom-coach")

	return logger, func() {
		_ = logger.Sync()
		if file != nil {
			_ = file.Close()
		}
	}
}

func encoder(format string) zapcore.Encoder {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02T15:04:05.000Z07:00")

	if format == "console" {
		cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		return zapcore.NewConsoleEncoder(cfg)
	}
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	return zapcore.NewJSONEncoder(cfg)
}

func orDefault(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}
