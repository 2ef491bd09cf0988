// Package config holds run configuration for the lead scraper.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds scraper configuration for a single run.
type Config struct {
	Site             string        // site id, e.g. "tezbazar.az"
	MaxPages         int           // stop after this many catalog pages (0 = unlimited)
	MaxListings      int           // stop after this many listings (0 = unlimited)
	MaxConcurrent    int           // global in-flight fetch bound
	RequestDelay     time.Duration // delay between dispatching successive listings
	FetchTimeout     time.Duration // per-attempt HTTP timeout
	RetryMaxAttempts int           // attempts per request, including the first
	RetryBaseDelay   time.Duration // backoff before the first retry
	RetryMaxDelay    time.Duration // backoff cap
	DatabaseURL      string        // postgres DSN; empty disables the DB sink
	OutputFile       string
	OutputFormat     string // csv, json, dual, or none
	UserAgent        string
	MetricsAddr      string
	Verbose          bool
}

// DefaultConfig returns the settings the original nightly jobs ran with.
func DefaultConfig() *Config {
	return &Config{
		Site:             "tezbazar.az",
		MaxPages:         3,
		MaxListings:      100,
		MaxConcurrent:    15,
		RequestDelay:     300 * time.Millisecond,
		FetchTimeout:     30 * time.Second,
		RetryMaxAttempts: 3,
		RetryBaseDelay:   500 * time.Millisecond,
		RetryMaxDelay:    10 * time.Second,
		DatabaseURL:      "",
		OutputFile:       "output/leads.csv",
		OutputFormat:     "csv",
		UserAgent:        "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
		MetricsAddr:      "",
		Verbose:          false,
	}
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.Site == "" {
		return fmt.Errorf("site cannot be empty")
	}
	if c.MaxPages < 0 {
		return fmt.Errorf("max pages cannot be negative")
	}
	if c.MaxListings < 0 {
		return fmt.Errorf("max listings cannot be negative")
	}
	if c.MaxConcurrent <= 0 {
		return fmt.Errorf("max concurrent must be positive")
	}
	if c.RequestDelay < 0 {
		return fmt.Errorf("request delay cannot be negative")
	}
	if c.FetchTimeout <= 0 {
		return fmt.Errorf("fetch timeout must be positive")
	}
	if c.RetryMaxAttempts <= 0 {
		return fmt.Errorf("retry max attempts must be positive")
	}
	if c.RetryBaseDelay < 0 {
		return fmt.Errorf("retry base delay cannot be negative")
	}
	if c.RetryMaxDelay < 0 {
		return fmt.Errorf("retry max delay cannot be negative")
	}
	if c.RetryMaxDelay > 0 && c.RetryBaseDelay > c.RetryMaxDelay {
		return fmt.Errorf("retry base delay (%s) cannot exceed retry max delay (%s)", c.RetryBaseDelay, c.RetryMaxDelay)
	}
	switch c.OutputFormat {
	case "csv", "json", "dual", "none":
	default:
		return fmt.Errorf("output format must be csv, json, dual, or none")
	}
	if c.OutputFormat != "none" && c.OutputFile == "" {
		return fmt.Errorf("output file cannot be empty")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}
	return nil
}

// LoadDotenv reads a .env file if one is present. A missing file is not an
// error; the environment simply stays as-is.
func LoadDotenv() error {
	if err := godotenv.Load(); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

// DatabaseURLFromEnv assembles a postgres DSN from the DB_* variables the
// deployment uses, or returns SCRAPER_DATABASE_URL verbatim when set.
func DatabaseURLFromEnv() string {
	if dsn, ok := EnvString("SCRAPER_DATABASE_URL"); ok {
		return dsn
	}
	host, ok := EnvString("DB_HOST")
	if !ok {
		return ""
	}
	port := os.Getenv("DB_PORT")
	if port == "" {
		port = "5432"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s",
		os.Getenv("DB_USER"), os.Getenv("DB_PASSWORD"), host, port, os.Getenv("DB_NAME"))
}

// EnvString returns the value of an environment variable and whether it was
// set to a non-empty value.
func EnvString(key string) (string, bool) {
	value := os.Getenv(key)
	return value, value != ""
}

// EnvInt parses an integer environment variable. The second return reports
// whether the variable was set.
func EnvInt(key string) (int, bool, error) {
	raw, ok := EnvString(key)
	if !ok {
		return 0, false, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", key, err)
	}
	return value, true, nil
}
