package config

import (
	"fmt"
	"strings"

	internal "github.com/lifespan-research/wearkit/wearkit"

	"github.com/spf13/viper"
)

// Config stores all configuration of the toolkit.
// The values are read by viper from a config file or environment variables.
type Config struct {
	Data     DataConfig     `mapstructure:"data"`
	Analysis AnalysisConfig `mapstructure:"analysis"`
}

// DataConfig stores settings related to the on-disk export.
type DataConfig struct {
	// Path is the root folder of the wearable-platform export,
	// structured as {user}_{device}/{metric}/file.csv.
	Path string `mapstructure:"path"`
	// ScanWorkers bounds the number of goroutines used while the
	// time index is built. Zero selects a CPU-based default.
	ScanWorkers int `mapstructure:"scanWorkers"`
	// IgnoreFile is the name of an optional gitignore-style file at the
	// export root listing paths to exclude from indexing.
	IgnoreFile string `mapstructure:"ignoreFile"`
}

// AnalysisConfig stores analysis-wide defaults.
type AnalysisConfig struct {
	// Chronotypes maps a user id to its habitual ["HH:MM", "HH:MM"]
	// (sleep time, wake time) pair, used by sleep regularity metrics.
	Chronotypes map[string][]string `mapstructure:"chronotypes"`
	// Timezone is the IANA zone assumed when a data row carries no
	// timezone information of its own.
	Timezone string `mapstructure:"timezone"`
}

var AppConfig Config

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(configPath string) (*Config, error) {
	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath(internal.DefaultConfigPath)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	// Set default values
	viper.SetDefault("data.path", "")
	viper.SetDefault("data.scanWorkers", 0)
	viper.SetDefault("data.ignoreFile", ".wearkitignore")
	viper.SetDefault("analysis.timezone", "UTC")

	viper.AutomaticEnv()                                   // Read in environment variables that match
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_")) // data.path becomes DATA_PATH

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found; defaults will be used.
	}

	if err := viper.Unmarshal(&AppConfig); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	return &AppConfig, nil
}
