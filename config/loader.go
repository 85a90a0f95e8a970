// Package config loads service configuration from a YAML file, a .env file,
// and environment variables, in increasing order of precedence.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load reads configuration for the service into cfg. The YAML file is the
// base; a .env file (if present) and process environment variables override
// it. Env keys are derived from config keys by upper-casing and replacing
// dots with underscores (server.port -> SERVER_PORT).
func Load(cfg interface{}, opts ...Option) error {
	var lo loaderOptions
	for _, opt := range opts {
		opt(&lo)
	}

	configFile := lo.configFile
	if configFile == "" {
		configFile = findConfigFile()
	}
	envFile := lo.envFile
	if envFile == "" {
		envFile = findEnvFile()
	}

	v := viper.New()

	if configFile != "" && fileExists(configFile) {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config file %s: %w", configFile, err)
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvKeys(v)

	if envFile != "" && fileExists(envFile) {
		if err := godotenv.Load(envFile); err != nil {
			fmt.Fprintf(os.Stderr, "[config] warning: failed to load %s: %v\n", envFile, err)
		} else {
			bindEnvKeys(v)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}
	return nil
}

// Option configures the loader.
type Option func(*loaderOptions)

type loaderOptions struct {
	configFile string
	envFile    string
}

// WithConfigFile sets an explicit config file path.
func WithConfigFile(path string) Option {
	return func(lo *loaderOptions) { lo.configFile = path }
}

// WithEnvFile sets an explicit .env file path.
func WithEnvFile(path string) Option {
	return func(lo *loaderOptions) { lo.envFile = path }
}

// bindEnvKeys explicitly binds every known key so AutomaticEnv resolves keys
// absent from the YAML file.
func bindEnvKeys(v *viper.Viper) {
	for _, key := range configKeys {
		_ = v.BindEnv(key)
	}
}

func findConfigFile() string {
	for _, path := range []string{
		"./cmd/assessd/config.yml",
		"./config/config.yml",
		"./config.yml",
	} {
		if fileExists(path) {
			return path
		}
	}
	return ""
}

func findEnvFile() string {
	for _, path := range []string{".env.assessd", ".env"} {
		if fileExists(path) {
			return path
		}
	}
	return ""
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
