// Package config loads the stackdock tool settings.
//
// Settings configure the tool itself, not a stack: which descriptor
// file to load by default, how to reach the Docker daemon, and whether
// to run the host port preflight before deploying. They come from an
// optional .stackdock.yaml (current directory first, then the home
// directory) overlaid by STACKDOCK_* environment variables; flags on
// the command line override both.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/viper"
)

// Settings holds the resolved tool configuration.
type Settings struct {
	// File is the stack descriptor path. Empty means discover
	// stackdock.yaml/.yml/.json in the working directory.
	File string `mapstructure:"file"`

	// Project overrides the stack name from the descriptor. Empty means
	// use the descriptor's name.
	Project string `mapstructure:"project"`

	// DockerHost overrides Docker socket detection, same syntax as
	// DOCKER_HOST (e.g., "unix:///var/run/docker.sock").
	DockerHost string `mapstructure:"docker_host"`

	// Preflight controls the host port availability check before a
	// deploy. On by default.
	Preflight bool `mapstructure:"preflight"`
}

// configName is the settings file base name, looked up with viper's
// usual extension handling (.yaml, .yml, .json, ...).
const configName = ".stackdock"

// envPrefix namespaces environment overrides: STACKDOCK_FILE,
// STACKDOCK_PROJECT, STACKDOCK_DOCKER_HOST, STACKDOCK_PREFLIGHT.
const envPrefix = "STACKDOCK"

// Load resolves the tool settings. A missing settings file is not an
// error; defaults and environment variables still apply. When path is
// non-empty, that exact file is read and its absence is an error.
func Load(path string) (*Settings, error) {
	v := viper.New()

	v.SetDefault("file", "")
	v.SetDefault("project", "")
	v.SetDefault("docker_host", "")
	v.SetDefault("preflight", true)

	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading settings file %s: %w", path, err)
		}
	} else {
		v.SetConfigName(configName)
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("error reading settings file: %w", err)
			}
			// No settings file anywhere is the common case.
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("unable to decode settings: %w", err)
	}

	return &s, nil
}
