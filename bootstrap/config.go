package bootstrap

import (
	"fmt"
	"os"

	"ctb/config"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// InitLogger builds the process logger. The console format uses colored
// levels for terminals; json is meant for log shippers.
func InitLogger(level, format string) (*zap.Logger, *zap.SugaredLogger, error) {
	lvl := zapcore.InfoLevel
	if level != "" {
		parsed, err := zapcore.ParseLevel(level)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid log level %q: %w", level, err)
		}
		lvl = parsed
	}

	var encoder zapcore.Encoder
	switch format {
	case "", "console":
		encoderConfig := zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		encoderConfig.EncodeCaller = zapcore.ShortCallerEncoder
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	case "json":
		encoderConfig := zap.NewProductionEncoderConfig()
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	default:
		return nil, nil, fmt.Errorf("invalid log format %q (want console or json)", format)
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(os.Stdout), lvl)
	logger := zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	return logger, logger.Sugar(), nil
}

// InitConfig loads the configuration from path, or from config.yaml in the
// default search paths when path is empty. Failures are returned, not
// printed; the caller reports them once.
func InitConfig(path string, sugar *zap.SugaredLogger) (*config.Config, error) {
	if sugar == nil {
		sugar = zap.NewNop().Sugar()
	}

	cfg, used, err := config.LoadConfig(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if used == "" {
		sugar.Info("No config file found, using defaults and env vars")
	} else {
		sugar.Infow("Config file loaded", "path", used)
	}

	sugar.Infow("Config loaded",
		"app", cfg.App.Name,
		"addr", cfg.API.Addr(),
		"sqlite_path", cfg.Database.SQLitePath,
		"redis_enabled", cfg.Redis.Enabled,
		"metrics_enabled", cfg.Metrics.Enabled,
		"allowed_origins", cfg.API.AllowedOrigins)

	return cfg, nil
}
