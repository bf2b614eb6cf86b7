package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ClientConfig configures quillctl. Values come from an optional YAML file
// and QUILL_* environment variables, environment taking precedence.
type ClientConfig struct {
	APIURL         string `mapstructure:"api_url"`
	SessionToken   string `mapstructure:"session_token"`
	UserToken      string `mapstructure:"user_token"`
	UserID         string `mapstructure:"user_id"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

func (c *ClientConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// LoadClient reads the client config. An empty path skips the file.
func LoadClient(path string) (*ClientConfig, error) {
	v := viper.New()

	v.SetDefault("api_url", "http://localhost:8080")
	v.SetDefault("session_token", "")
	v.SetDefault("user_token", "")
	v.SetDefault("user_id", "")
	v.SetDefault("timeout_seconds", 120)

	v.SetEnvPrefix("QUILL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var cfg ClientConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")
	if cfg.APIURL == "" {
		return nil, fmt.Errorf("api_url must not be empty")
	}
	if cfg.TimeoutSeconds <= 0 {
		cfg.TimeoutSeconds = 120
	}
	return &cfg, nil
}
