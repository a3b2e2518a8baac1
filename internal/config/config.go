// Package config assembles the runtime configuration from flag defaults, an optional
// YAML file, RIPEN_* environment variables and explicitly set flags, in increasing
// order of precedence.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/conorfennell/ripen/internal/domain"
	"github.com/conorfennell/ripen/internal/schedule"
)

const (
	envPrefix  = "RIPEN_"
	configFlag = "config"
)

// Config is the validated runtime configuration.
type Config struct {
	Database  string      `koanf:"database" validate:"required"`
	ReposDir  string      `koanf:"repos_dir" validate:"required"`
	Addr      string      `koanf:"addr" validate:"required,hostname_port"`
	LogLevel  string      `koanf:"log_level" validate:"oneof=debug info warn error"`
	LogFormat string      `koanf:"log_format" validate:"oneof=text json"`
	Study     StudyConfig `koanf:"study"`
}

// StudyConfig holds the defaults for collections that carry no settings of their own.
type StudyConfig struct {
	InitialInterval        string  `koanf:"initial_interval" validate:"required,interval"`
	RememberedInterval     string  `koanf:"remembered_interval" validate:"required,interval"`
	ForgottenInterval      string  `koanf:"forgotten_interval" validate:"required,interval"`
	LengtheningFactor      float64 `koanf:"lengthening_factor" validate:"gt=0"`
	MaximumInterval        string  `koanf:"maximum_interval" validate:"omitempty,interval"`
	SessionSize            int     `koanf:"session_size" validate:"gte=0"`
	IdealSuccessPercentage float64 `koanf:"ideal_success_percentage" validate:"gt=0,lte=100"`
	DefaultPriority        int     `koanf:"default_priority" validate:"min=1,max=10"`
}

// studyFlags maps the short study flag names onto their configuration keys.
var studyFlags = map[string]string{
	"initial-interval":         "study.initial_interval",
	"remembered-interval":      "study.remembered_interval",
	"forgotten-interval":       "study.forgotten_interval",
	"lengthening-factor":       "study.lengthening_factor",
	"maximum-interval":         "study.maximum_interval",
	"session-size":             "study.session_size",
	"ideal-success-percentage": "study.ideal_success_percentage",
	"default-priority":         "study.default_priority",
}

// RegisterFlags adds every configuration flag, with its default, to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	d := schedule.DefaultSettings()

	fs.String(configFlag, "", "path to a YAML configuration file")
	fs.String("database", "ripen.db", "path to the SQLite database")
	fs.String("repos-dir", "repos", "directory that holds clones of git sources")
	fs.String("addr", "localhost:8080", "listen address of the web interface")
	fs.String("log-level", "info", "log level: debug, info, warn or error")
	fs.String("log-format", "text", "log format: text or json")

	fs.String("initial-interval", d.Intervals.Initial.String(), "wait before the first review of a new card")
	fs.String("remembered-interval", d.Intervals.Remembered.String(), "wait after the first successful review")
	fs.String("forgotten-interval", d.Intervals.Forgotten.String(), "wait after a failed review")
	fs.Float64("lengthening-factor", d.Intervals.LengtheningFactor, "growth of the wait per extra successful review")
	fs.String("maximum-interval", "", "upper bound of the wait; empty for none")
	fs.Int("session-size", d.SessionSize, "cards per review session; 0 for all due cards")
	fs.Float64("ideal-success-percentage", d.IdealSuccessPercentage, "success rate the analyzer aims for")
	fs.Int("default-priority", d.DefaultPriority, "priority of cards that do not set one")
}

func flagKey(f *pflag.Flag) string {
	if f.Name == configFlag {
		return ""
	}
	if key, ok := studyFlags[f.Name]; ok {
		return key
	}
	return strings.ReplaceAll(f.Name, "-", "_")
}

func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "__", ".")
}

// Load reads the configuration. fs must have been set up with RegisterFlags and parsed.
func Load(fs *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	path, err := fs.GetString(configFlag)
	if err != nil {
		return nil, err
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	flags := posflag.ProviderWithFlag(fs, ".", k, func(f *pflag.Flag) (string, interface{}) {
		return flagKey(f), posflag.FlagVal(fs, f)
	})
	if err := k.Load(flags, nil); err != nil {
		return nil, fmt.Errorf("load flags: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the field constraints.
func Validate(cfg *Config) error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.RegisterValidation("interval", func(fl validator.FieldLevel) bool {
		_, err := domain.ParseTimeInterval(fl.Field().String())
		return err == nil
	}); err != nil {
		return err
	}
	if err := v.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, len(verrs))
			for i, fe := range verrs {
				msgs[i] = fmt.Sprintf("%s: failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value())
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Settings converts the study defaults into schedule settings.
func (s StudyConfig) Settings() (schedule.Settings, error) {
	var (
		out schedule.Settings
		err error
	)
	if out.Intervals.Initial, err = domain.ParseTimeInterval(s.InitialInterval); err != nil {
		return out, fmt.Errorf("initial interval: %w", err)
	}
	if out.Intervals.Remembered, err = domain.ParseTimeInterval(s.RememberedInterval); err != nil {
		return out, fmt.Errorf("remembered interval: %w", err)
	}
	if out.Intervals.Forgotten, err = domain.ParseTimeInterval(s.ForgottenInterval); err != nil {
		return out, fmt.Errorf("forgotten interval: %w", err)
	}
	if s.MaximumInterval != "" {
		if out.Intervals.MaximumInterval, err = domain.ParseTimeInterval(s.MaximumInterval); err != nil {
			return out, fmt.Errorf("maximum interval: %w", err)
		}
	}
	out.Intervals.LengtheningFactor = s.LengtheningFactor
	out.SessionSize = s.SessionSize
	out.IdealSuccessPercentage = s.IdealSuccessPercentage
	out.DefaultPriority = s.DefaultPriority
	return out, out.Validate()
}

// Logger builds the process logger described by the configuration.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
