package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/electionneedle/needle/internal/model"
	"github.com/electionneedle/needle/internal/socketrpc"
)

// cliConfig holds only dashboard-relevant configuration. It reads the same
// config file as needled so the angle range stays in sync.
type cliConfig struct {
	RefreshInterval time.Duration `mapstructure:"refresh-interval"`
	SocketPath      string        `mapstructure:"socket-path"`
	MinAngle        int           `mapstructure:"min-angle"`
	MaxAngle        int           `mapstructure:"max-angle"`
}

func loadCLIConfig(configPath string) (cliConfig, error) {
	var cfg cliConfig

	home, err := os.UserHomeDir()
	if err != nil {
		return cfg, fmt.Errorf("finding home directory: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix("NEEDLE")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	v.SetDefault("refresh-interval", model.DefaultDashboardRefresh)
	v.SetDefault("socket-path", socketrpc.DefaultSocketPath())
	v.SetDefault("min-angle", model.DefaultMinAngle)
	v.SetDefault("max-angle", model.DefaultMaxAngle)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigFile(filepath.Join(home, ".config", "needle", "config.yml"))
	}

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFound) && !os.IsNotExist(err) {
			return cfg, err
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, err
	}

	if strings.HasPrefix(cfg.SocketPath, "~/") {
		cfg.SocketPath = filepath.Join(home, cfg.SocketPath[2:])
	}

	return cfg, nil
}
