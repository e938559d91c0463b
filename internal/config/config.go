package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
)

const defaultAPIBaseURL = "https://api.prismnews.app/v1"

// Config holds runtime settings for the CLI app. An empty APIToken
// means guest tier: the balanced feed stays gated behind login.
type Config struct {
	APIBaseURL     string
	APIToken       string
	DBPath         string
	PageSize       int
	SwipeThreshold float64
}

func LoadFromEnv() (Config, error) {
	cfg := Config{
		APIBaseURL: os.Getenv("PRISM_API_BASE_URL"),
		APIToken:   os.Getenv("PRISM_API_TOKEN"),
		DBPath:     os.Getenv("PRISM_DB_PATH"),
	}

	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = defaultAPIBaseURL
	}
	if cfg.DBPath == "" {
		cfg.DBPath = "prism.db"
	}

	cfg.PageSize = 20
	if raw := os.Getenv("PRISM_PAGE_SIZE"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return Config{}, fmt.Errorf("PRISM_PAGE_SIZE must be an integer: %q", raw)
		}
		cfg.PageSize = n
	}

	cfg.SwipeThreshold = 24
	if raw := os.Getenv("PRISM_SWIPE_THRESHOLD"); raw != "" {
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return Config{}, fmt.Errorf("PRISM_SWIPE_THRESHOLD must be a number: %q", raw)
		}
		cfg.SwipeThreshold = f
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.APIBaseURL == "" {
		return errors.New("APIBaseURL is required")
	}
	if c.APIBaseURL[len(c.APIBaseURL)-1] == '/' {
		return fmt.Errorf("APIBaseURL must not end with '/': %s", c.APIBaseURL)
	}
	if c.DBPath == "" {
		return errors.New("DBPath is required")
	}
	if c.PageSize < 1 || c.PageSize > 100 {
		return fmt.Errorf("PageSize must be between 1 and 100: %d", c.PageSize)
	}
	if c.SwipeThreshold <= 0 {
		return fmt.Errorf("SwipeThreshold must be positive: %v", c.SwipeThreshold)
	}
	return nil
}
