package log

import (
	"io"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
	"moul.io/zapfilter"
)

// Config describes the log setup read from the file passed via --log-config.
// Filters uses the zapfilter rule syntax, for example
// "debug:timing,protocol info:*" enables debug output for the named loggers
// only.
type Config struct {
	DefaultLevel string `yaml:"defaultLevel"`
	Filters      string `yaml:"filters"`
}

func DefaultConfig() *Config {
	return &Config{DefaultLevel: "info"}
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	ret := DefaultConfig()
	if err := yaml.Unmarshal(data, ret); err != nil {
		return nil, err
	}
	return ret, nil
}

// NewWithConfig creates a json logger honoring the filter rules of cfg.
// Without filter rules it behaves like New with cfg.DefaultLevel.
func NewWithConfig(w io.Writer, cfg *Config, opts ...Option) (*Logger, error) {
	if w == nil {
		w = os.Stderr
	}
	level, err := ParseLevel(cfg.DefaultLevel)
	if err != nil {
		level = InfoLevel
	}
	if cfg.Filters == "" {
		return New(w, level, opts...), nil
	}
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(t.Format(time.RFC3339Nano))
	}
	// the filter rules decide per namespace; the underlying core must not
	// cut off entries beforehand
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encCfg),
		zapcore.AddSync(w),
		DebugLevel,
	)
	rules, err := zapfilter.ParseRules(cfg.Filters)
	if err != nil {
		return nil, err
	}
	filtered := zapfilter.NewFilteringCore(core, rules)
	return &Logger{l: zap.New(filtered, opts...), level: level}, nil
}
