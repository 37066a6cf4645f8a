package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
// Values are read by Viper from a config file or environment variables.
type Config struct {
	Server ServerConfig `mapstructure:"server"`
	Data   DataConfig   `mapstructure:"data"`
	JWT    JWTConfig    `mapstructure:"jwt"`
	Export ExportConfig `mapstructure:"export"`
	Seed   SeedConfig   `mapstructure:"seed"`
}

type ServerConfig struct {
	Address   string `mapstructure:"address"`
	StaticDir string `mapstructure:"static_dir"`
}

// DataConfig locates the indexed store. SchemaVersion only ever goes up;
// configuring a lower version than the installed one wipes all data
// (development escape hatch).
type DataConfig struct {
	Dir           string `mapstructure:"dir"`
	SchemaVersion uint64 `mapstructure:"schema_version"`
}

// JWTConfig defines visitor token settings.
type JWTConfig struct {
	Secret     string        `mapstructure:"secret"`
	Expiration time.Duration `mapstructure:"expiration"`
}

// ExportConfig configures the optional S3 snapshot target.
type ExportConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	Endpoint        string `mapstructure:"endpoint"`
	Region          string `mapstructure:"region"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	BucketName      string `mapstructure:"bucket_name"`
	UseSSL          bool   `mapstructure:"use_ssl"`
}

type SeedConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.AutomaticEnv()
	// Nested keys map to env vars: data.schema_version -> DATA_SCHEMA_VERSION
	viper.SetEnvKeyReplacer(strings.NewReplacer(`.`, `_`))

	viper.SetDefault("server.address", ":8080")
	viper.SetDefault("server.static_dir", "./frontend")
	viper.SetDefault("data.dir", "./data/gymtrack")
	viper.SetDefault("data.schema_version", 100)
	viper.SetDefault("jwt.expiration", "12h")
	viper.SetDefault("export.use_ssl", true)
	viper.SetDefault("seed.enabled", false)

	err = viper.ReadInConfig()
	if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		// No config file is fine; env vars and defaults carry it.
		err = nil
	} else if err != nil {
		return
	}

	err = viper.Unmarshal(&config)
	return
}
