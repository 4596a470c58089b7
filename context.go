package smol

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/phanxgames/smol/config"
)

// Context carries the engine-wide configuration and logger. Create one at
// startup and hand it to every Scene and Renderer; there are no package
// globals, so independent contexts can coexist (tests, tools).
type Context struct {
	Config *config.Config
	Log    *zap.Logger
}

// NewContext builds a logger from cfg.Logging. A nil cfg uses
// config.Default().
func NewContext(cfg *config.Config) (*Context, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	log, err := NewLogger(cfg.Logging)
	if err != nil {
		return nil, err
	}
	return &Context{Config: cfg, Log: log}, nil
}

// NewTestContext returns a context with default settings and the given
// logger (zap.NewNop when nil).
func NewTestContext(log *zap.Logger) *Context {
	if log == nil {
		log = zap.NewNop()
	}
	return &Context{Config: config.Default(), Log: log}
}

// Close flushes the logger.
func (c *Context) Close() error {
	return c.Log.Sync()
}

// NewLogger builds a zap logger. Output goes to stderr, or to a rotating
// file when cfg.File is set.
func NewLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var encCfg zapcore.EncoderConfig
	var enc zapcore.Encoder
	switch cfg.Format {
	case "json":
		encCfg = zap.NewProductionEncoderConfig()
		encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		enc = zapcore.NewJSONEncoder(encCfg)
	case "console", "":
		encCfg = zap.NewDevelopmentEncoderConfig()
		encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		encCfg.ConsoleSeparator = "  "
		if cfg.File == "" {
			encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		}
		enc = zapcore.NewConsoleEncoder(encCfg)
	default:
		return nil, fmt.Errorf("smol: unknown log format %q", cfg.Format)
	}

	var sink zapcore.WriteSyncer
	if cfg.File != "" {
		sink = zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			Compress:   cfg.Compress,
		})
	} else {
		sink = zapcore.Lock(os.Stderr)
	}

	return zap.New(zapcore.NewCore(enc, sink, level)).Named("smol"), nil
}
