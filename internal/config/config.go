// Package config provides functionality for managing configuration options
// for the storefront client using command-line flags, environment variables
// and an optional JSON config file.
package config

import (
	"encoding/json"
	"flag"
	"log"
	"os"
)

// Options holds the configuration values for the client.
type Options struct {
	// BaseURL is the storefront API base URL.
	BaseURL string

	// AddressURL is the base URL of the address-suggestion service.
	AddressURL string

	// StateDir is the directory holding persisted client state
	// (credentials, anonymous cart, checkout attempt, profile draft).
	StateDir string

	// LogLevel is the zap log level name.
	LogLevel string

	// Config is the path to the Config file.
	Config string
}

// options holds the current configuration values.
var options = &Options{}

// init initializes command-line flags and sets default values.
func init() {
	flag.StringVar(&options.BaseURL, "url", "https://localhost:8443", "storefront API base URL")
	flag.StringVar(&options.AddressURL, "address-url", "", "address suggestion service URL")
	flag.StringVar(&options.StateDir, "state", ".storefront", "directory for persisted client state")
	flag.StringVar(&options.LogLevel, "log", "info", "log level")
	flag.StringVar(&options.Config, "config", "config.json", "path to config file")
	flag.StringVar(&options.Config, "c", "config.json", "path to config file (shorthand)")
}

// Parse parses the command-line flags and environment variables to set
// configuration values. It returns a pointer to the Options struct containing
// the parsed configuration values.
func Parse() *Options {
	flag.Parse()

	// Override flags with environment variables if set
	if configPath := os.Getenv("CONFIG"); configPath != "" {
		options.Config = configPath
	}

	if options.Config != "" {
		if _, err := os.Stat(options.Config); err == nil {
			data, err := os.ReadFile(options.Config)
			if err != nil {
				log.Fatalf("error while reading config file: %v", err)
			}
			if err := json.Unmarshal(data, options); err != nil {
				log.Fatalf("error while parsing config file: %v", err)
			}
		}
	}

	if baseURL := os.Getenv("STOREFRONT_URL"); baseURL != "" {
		options.BaseURL = baseURL
	}
	if stateDir := os.Getenv("STOREFRONT_STATE"); stateDir != "" {
		options.StateDir = stateDir
	}

	return options
}
