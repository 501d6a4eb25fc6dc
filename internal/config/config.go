// Package config loads the client configuration from the environment.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/pkg/errors"
)

// Config is the configuration surface of the session core: where the API
// lives, how eagerly tokens are renewed, how long requests may take, and
// where persistent sessions are stored.
type Config struct {
	BaseURL        string        `env:"AIDOCK_BASE_URL" envDefault:"http://localhost:8000"`
	DataDir        string        `env:"AIDOCK_DATA_DIR"`
	RefreshMargin  time.Duration `env:"AIDOCK_REFRESH_MARGIN" envDefault:"2m"`
	RequestTimeout time.Duration `env:"AIDOCK_REQUEST_TIMEOUT" envDefault:"30s"`
	LogLevel       string        `env:"AIDOCK_LOG_LEVEL" envDefault:"info"`
}

// Load reads the configuration from the environment. DataDir defaults to an
// "aidock" directory under the user config dir.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, errors.Wrap(err, "[config.Load]")
	}
	if cfg.DataDir == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			return Config{}, errors.Wrap(err, "[config.Load] resolving user config dir")
		}
		cfg.DataDir = filepath.Join(base, "aidock")
	}
	return cfg, nil
}
