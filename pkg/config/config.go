package config

import (
	"errors"
	"fmt"
	"strings"

	"epub-streamer/pkg/appdir"

	"github.com/spf13/viper"
)

// Hosting modes understood by the hosting package.
const (
	HostingAuto     = "auto"
	HostingListener = "listener"
	HostingLambda   = "lambda"
)

type Config struct {
	ListenAddr        string `mapstructure:"listen_address"`
	LibraryDir        string `mapstructure:"library_dir"`
	HostingMode       string `mapstructure:"hosting_mode"`
	Local             bool   `mapstructure:"local"`
	CompressResponses bool   `mapstructure:"compress_responses"`
	LogLevel          string `mapstructure:"log_level"`
	LogPretty         bool   `mapstructure:"log_pretty"`
	LogDB             string `mapstructure:"log_db"`
	ConfigFile        string `mapstructure:"-"`
}

func DefaultConfig() *Config {
	return &Config{
		ListenAddr:  ":3000",
		LibraryDir:  "./publications",
		HostingMode: HostingAuto,
		LogLevel:    "info",
	}
}

// Load reads configuration from the given file (or streamer.yaml in the
// usual search paths when empty) and from STREAMER_* environment variables.
// IS_LOCAL is not read here, see hosting.ResolveMode.
func Load(configFile string) (*Config, error) {
	cfg := DefaultConfig()
	v := viper.New()

	v.SetDefault("listen_address", cfg.ListenAddr)
	v.SetDefault("library_dir", cfg.LibraryDir)
	v.SetDefault("hosting_mode", cfg.HostingMode)
	v.SetDefault("local", cfg.Local)
	v.SetDefault("compress_responses", cfg.CompressResponses)
	v.SetDefault("log_level", cfg.LogLevel)
	v.SetDefault("log_pretty", cfg.LogPretty)
	v.SetDefault("log_db", cfg.LogDB)

	v.SetEnvPrefix("STREAMER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("streamer")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/epub-streamer/")
		v.AddConfigPath(appdir.AppDir())
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || configFile != "" {
			return nil, fmt.Errorf("config: read %s: %w", configFile, err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	cfg.ConfigFile = v.ConfigFileUsed()
	return cfg, cfg.Validate()
}

func (c *Config) Validate() error {
	switch c.HostingMode {
	case HostingAuto, HostingListener, HostingLambda:
	default:
		return fmt.Errorf("config: unknown hosting_mode %q", c.HostingMode)
	}
	if c.LibraryDir == "" {
		return errors.New("config: library_dir must not be empty")
	}
	return nil
}
