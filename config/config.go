// Package config loads the skill's configuration from environment
// variables, an optional .env file, and CLI flag overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration values
type Config struct {
	Spotify  SpotifyConfig
	Cache    CacheConfig
	LogLevel string
}

// SpotifyConfig holds Spotify API and playback configuration
type SpotifyConfig struct {
	ClientID      string
	ClientSecret  string
	RedirectURI   string
	TokenFile     string // Where the OAuth token is persisted
	DefaultDevice string // Preferred playback device name, matched fuzzily
	DeviceName    string // Name identifying the host device, defaults to hostname
	Country       string // Market for top-tracks lookups
}

// CacheConfig holds the TTLs for the cached Spotify collections
type CacheConfig struct {
	PlaylistTTL    time.Duration
	SavedTracksTTL time.Duration
	DeviceTTL      time.Duration
}

// Load loads configuration following the specified order:
// 1. Start with default values
// 2. Load from OS environment variables (only if they exist)
// 3. Load from .env file (only if it exists and values exist)
func Load() (*Config, error) {
	return LoadWithOverrides(nil)
}

// LoadWithOverrides loads configuration and applies CLI flag overrides as a
// final step.
func LoadWithOverrides(overrides map[string]string) (*Config, error) {
	config := &Config{}

	// Step 1: Initialize with default values
	config.initializeDefaults()

	// Step 2: Load from OS environment variables (only if they exist)
	config.applyEnv()

	// Step 3: Load from .env file (only if it exists and values exist)
	if err := godotenv.Load(); err == nil {
		config.applyEnv()
	}

	// Step 4: Apply CLI flag overrides (only if they exist)
	config.applyOverrides(overrides)

	// Validate required configuration after all sources have been loaded
	if err := config.validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// initializeDefaults sets up the initial configuration with default values
func (c *Config) initializeDefaults() {
	hostname, _ := os.Hostname()

	c.Spotify = SpotifyConfig{
		ClientID:      "",
		ClientSecret:  "",
		RedirectURI:   "http://localhost:8080/callback",
		TokenFile:     defaultTokenFile(),
		DefaultDevice: "",
		DeviceName:    hostname,
		Country:       "US",
	}
	c.Cache = CacheConfig{
		PlaylistTTL:    5 * time.Minute,
		SavedTracksTTL: 4 * time.Hour,
		DeviceTTL:      60 * time.Second,
	}
	c.LogLevel = "info"
}

// defaultTokenFile places the token under the user config directory, falling
// back to the working directory when none is available.
func defaultTokenFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".spotify-token.json"
	}
	return filepath.Join(dir, "spotify-skill", "token.json")
}

// applyEnv loads configuration from environment variables (only if they exist)
func (c *Config) applyEnv() {
	if value := os.Getenv("SPOTIFY_CLIENT_ID"); value != "" {
		c.Spotify.ClientID = value
	}
	if value := os.Getenv("SPOTIFY_CLIENT_SECRET"); value != "" {
		c.Spotify.ClientSecret = value
	}
	if value := os.Getenv("SPOTIFY_REDIRECT_URI"); value != "" {
		c.Spotify.RedirectURI = value
	}
	if value := os.Getenv("SPOTIFY_TOKEN_FILE"); value != "" {
		c.Spotify.TokenFile = value
	}
	if value := os.Getenv("SPOTIFY_DEFAULT_DEVICE"); value != "" {
		c.Spotify.DefaultDevice = value
	}
	if value := os.Getenv("SPOTIFY_DEVICE_NAME"); value != "" {
		c.Spotify.DeviceName = value
	}
	if value := os.Getenv("SPOTIFY_COUNTRY"); value != "" {
		c.Spotify.Country = value
	}
	if value := os.Getenv("SPOTIFY_PLAYLIST_CACHE_TTL"); value != "" {
		if ttl, err := parseSeconds(value); err == nil {
			c.Cache.PlaylistTTL = ttl
		}
	}
	if value := os.Getenv("SPOTIFY_SAVED_TRACKS_CACHE_TTL"); value != "" {
		if ttl, err := parseSeconds(value); err == nil {
			c.Cache.SavedTracksTTL = ttl
		}
	}
	if value := os.Getenv("SPOTIFY_DEVICE_CACHE_TTL"); value != "" {
		if ttl, err := parseSeconds(value); err == nil {
			c.Cache.DeviceTTL = ttl
		}
	}
	if value := os.Getenv("LOG_LEVEL"); value != "" {
		c.LogLevel = value
	}
}

// applyOverrides applies CLI flag overrides to the configuration (only if they exist)
func (c *Config) applyOverrides(overrides map[string]string) {
	for key, value := range overrides {
		if value == "" {
			continue
		}

		switch key {
		case "SPOTIFY_CLIENT_ID":
			c.Spotify.ClientID = value
		case "SPOTIFY_CLIENT_SECRET":
			c.Spotify.ClientSecret = value
		case "SPOTIFY_REDIRECT_URI":
			c.Spotify.RedirectURI = value
		case "SPOTIFY_TOKEN_FILE":
			c.Spotify.TokenFile = value
		case "SPOTIFY_DEFAULT_DEVICE":
			c.Spotify.DefaultDevice = value
		case "SPOTIFY_DEVICE_NAME":
			c.Spotify.DeviceName = value
		case "SPOTIFY_COUNTRY":
			c.Spotify.Country = value
		case "LOG_LEVEL":
			c.LogLevel = value
		}
	}
}

// parseSeconds parses a TTL given as a number of seconds.
func parseSeconds(value string) (time.Duration, error) {
	seconds, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid TTL '%s': %w", value, err)
	}
	if seconds <= 0 {
		return 0, fmt.Errorf("invalid TTL '%s': must be positive", value)
	}
	return time.Duration(seconds) * time.Second, nil
}

// validate checks that all required configuration values are present
func (c *Config) validate() error {
	var missingFields []string

	if c.Spotify.ClientID == "" {
		missingFields = append(missingFields, "SPOTIFY_CLIENT_ID")
	}
	if c.Spotify.ClientSecret == "" {
		missingFields = append(missingFields, "SPOTIFY_CLIENT_SECRET")
	}

	if len(missingFields) > 0 {
		return fmt.Errorf("missing required configuration values:\n%s\n\nSet these values via environment variables, .env file, or CLI flags", strings.Join(missingFields, "\n"))
	}

	return nil
}
