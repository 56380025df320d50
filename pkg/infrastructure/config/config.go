package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. TANDAS_BACKEND_URL
const EnvPrefix = "TANDAS"

// Config is the runtime configuration of the tools in this module
type Config struct {
	Backend BackendConfig `mapstructure:"backend"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Log     LogConfig     `mapstructure:"log"`
}

// BackendConfig selects the production backend. Scenario, when set, replaces
// the remote backend with an in-memory one seeded from CSV files.
type BackendConfig struct {
	URL      string        `mapstructure:"url" validate:"omitempty,url"`
	Timeout  time.Duration `mapstructure:"timeout" validate:"gt=0"`
	Scenario string        `mapstructure:"scenario"`
}

// HTTPConfig configures the API server. Composition sessions idle for
// longer than SessionTTL are dropped, and at most MaxSessions are kept.
type HTTPConfig struct {
	Addr        string        `mapstructure:"addr" validate:"required"`
	CORSOrigins []string      `mapstructure:"cors_origins"`
	SessionTTL  time.Duration `mapstructure:"session_ttl" validate:"gt=0"`
	MaxSessions int           `mapstructure:"max_sessions" validate:"gt=0"`
}

// RedisConfig enables the shared per-line guard when Address is set.
// LockTTL must outlast Backend.Timeout so a lock never expires under a
// transition the backend is still processing.
type RedisConfig struct {
	Address string        `mapstructure:"address" validate:"omitempty,hostname_port"`
	LockTTL time.Duration `mapstructure:"lock_ttl" validate:"gt=0"`
}

type LogConfig struct {
	Level string `mapstructure:"level" validate:"oneof=panic fatal error warn warning info debug trace"`
}

var validate = validator.New()

// Load reads configuration from defaults, an optional file, a .env file and
// TANDAS_* environment variables, later sources winning. configFile may be
// empty, in which case tandas.yaml is looked up in the working directory.
func Load(configFile string) (*Config, error) {
	return LoadWithOverrides(configFile, nil)
}

// LoadWithOverrides is Load with explicit values, keyed like "backend.url",
// that win over every other source. Empty string overrides are ignored.
func LoadWithOverrides(configFile string, overrides map[string]interface{}) (*Config, error) {
	// A missing .env file is fine
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	} else {
		v.SetConfigName("tandas")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	for key, value := range overrides {
		if str, ok := value.(string); ok && str == "" {
			continue
		}
		v.Set(key, value)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	// Comma separated lists from the environment
	if len(cfg.HTTP.CORSOrigins) == 1 && strings.Contains(cfg.HTTP.CORSOrigins[0], ",") {
		cfg.HTTP.CORSOrigins = splitList(cfg.HTTP.CORSOrigins[0])
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration
func (c *Config) Validate() error {
	if c.Backend.URL == "" && c.Backend.Scenario == "" {
		return errors.New("invalid config: backend.url or backend.scenario is required")
	}
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Redis.Address != "" && c.Redis.LockTTL <= c.Backend.Timeout {
		return fmt.Errorf("invalid config: redis.lock_ttl (%s) must be longer than backend.timeout (%s)",
			c.Redis.LockTTL, c.Backend.Timeout)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("backend.url", "")
	v.SetDefault("backend.timeout", 30*time.Second)
	v.SetDefault("backend.scenario", "")
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.cors_origins", []string{"*"})
	v.SetDefault("http.session_ttl", 30*time.Minute)
	v.SetDefault("http.max_sessions", 1000)
	v.SetDefault("redis.address", "")
	v.SetDefault("redis.lock_ttl", time.Minute)
	v.SetDefault("log.level", "info")
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
