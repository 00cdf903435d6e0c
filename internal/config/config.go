package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "BUZZER"

type Config struct {
	Bind            string        `mapstructure:"bind"`
	Port            int           `mapstructure:"port"`
	ClientURL       string        `mapstructure:"client-url"`
	DatabaseURL     string        `mapstructure:"database-url"`
	LogLevel        string        `mapstructure:"log-level"`
	LogFormat       string        `mapstructure:"log-format"`
	SweepInterval   time.Duration `mapstructure:"sweep-interval"`
	SendBuffer      int           `mapstructure:"send-buffer"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown-timeout"`
}

func (c Config) Addr() string {
	return net.JoinHostPort(c.Bind, strconv.Itoa(c.Port))
}

// RegisterFlags declares every setting on fs with its default.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringP("bind", "b", "0.0.0.0", "address to bind to (env: BUZZER_BIND)")
	fs.IntP("port", "p", 3001, "port to listen on (env: BUZZER_PORT, PORT)")
	fs.String("client-url", "http://localhost:3000", "browser origin allowed to connect, also the base of join links (env: BUZZER_CLIENT_URL, CLIENT_URL)")
	fs.String("database-url", "", "PostgreSQL DSN for the room archive, empty to disable (env: BUZZER_DATABASE_URL, DATABASE_URL)")
	fs.String("log-level", "info", "one of debug, info, warn, error (env: BUZZER_LOG_LEVEL)")
	fs.String("log-format", "json", "json or console (env: BUZZER_LOG_FORMAT)")
	fs.Duration("sweep-interval", 5*time.Minute, "how often empty rooms are swept, 0 to disable (env: BUZZER_SWEEP_INTERVAL)")
	fs.Int("send-buffer", 64, "outbound messages queued per connection before it is dropped (env: BUZZER_SEND_BUFFER)")
	fs.Duration("shutdown-timeout", 10*time.Second, "time allowed for graceful shutdown (env: BUZZER_SHUTDOWN_TIMEOUT)")
	fs.StringP("config", "c", "", "optional YAML config file (env: BUZZER_CONFIG)")
}

// NewViper binds the flags in fs and the environment to a fresh viper.
func NewViper(fs *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	var errs []error
	fs.VisitAll(func(f *pflag.Flag) {
		errs = append(errs, v.BindPFlag(f.Name, f))
	})

	// Unprefixed names kept for existing deployments.
	errs = append(errs,
		v.BindEnv("port", envPrefix+"_PORT", "PORT"),
		v.BindEnv("client-url", envPrefix+"_CLIENT_URL", "CLIENT_URL"),
		v.BindEnv("database-url", envPrefix+"_DATABASE_URL", "DATABASE_URL"),
	)
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("binding flags: %w", err)
	}
	return v, nil
}

// Load reads the optional config file named by the "config" key, then
// decodes and validates the result.
func Load(v *viper.Viper) (Config, error) {
	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []string

	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Sprintf("port must be 1-65535, got %d", c.Port))
	}
	if u, err := url.Parse(c.ClientURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Sprintf("client-url must be an absolute URL, got %q", c.ClientURL))
	}
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.LogLevel] {
		errs = append(errs, fmt.Sprintf("log-level must be one of [debug, info, warn, error], got %q", c.LogLevel))
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[c.LogFormat] {
		errs = append(errs, fmt.Sprintf("log-format must be one of [json, console], got %q", c.LogFormat))
	}
	if c.SweepInterval < 0 {
		errs = append(errs, "sweep-interval must not be negative")
	}
	if c.SendBuffer < 1 {
		errs = append(errs, fmt.Sprintf("send-buffer must be >= 1, got %d", c.SendBuffer))
	}
	if c.ShutdownTimeout <= 0 {
		errs = append(errs, "shutdown-timeout must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
