package config

import (
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// SearchQuery holds the fixed query parameters sent with every page request.
type SearchQuery struct {
	Query      string
	ICID       string
	Department string
	ViewAll    string
}

// Config holds scraper configuration.
type Config struct {
	Endpoint     string
	Search       SearchQuery
	ResourceHash string
	StartPage    int
	MaxPages     int
	DelayMin     time.Duration
	DelayMax     time.Duration
	Timeout      time.Duration
	OutputFile   string
	OutputFormat string // json, csv, or dual
	UserAgent    string
	// Headers are sent verbatim on every request. They carry the session
	// cookie and CSRF token; refreshing them when they expire is up to the
	// caller.
	Headers       http.Header
	// DedupeMaxSize bounds the product IDs remembered for dropping repeats.
	// Zero, the default, keeps every item.
	DedupeMaxSize int
	PreviewCount  int
	MetricsAddr   string
	Verbose       bool
}

// DefaultConfig returns the settings used for the Tesco wine department.
func DefaultConfig() *Config {
	return &Config{
		Endpoint: "https://www.tesco.ie/groceries/en-IE/resources",
		Search: SearchQuery{
			Query:      "wine",
			ICID:       "tescohp_sws-1_m-ft_in-wine_out-wine",
			Department: "Wine",
			ViewAll:    "department",
		},
		ResourceHash:  "8924798660881233",
		StartPage:     1,
		MaxPages:      20,
		DelayMin:      4 * time.Second,
		DelayMax:      8 * time.Second,
		Timeout:       30 * time.Second,
		OutputFile:    "tesco_wines_scraped.json",
		OutputFormat:  "json",
		UserAgent:     "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/135.0.0.0 Safari/537.36 Edg/135.0.0.0",
		Headers:       DefaultHeaders(),
		PreviewCount:  5,
	}
}

// LastPage is the highest page number the crawl may request.
func (c *Config) LastPage() int {
	return c.StartPage + c.MaxPages - 1
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return fmt.Errorf("endpoint cannot be empty")
	}

	parsedURL, err := url.Parse(c.Endpoint)
	if err != nil {
		return fmt.Errorf("invalid endpoint: %w", err)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("endpoint must include a host")
	}

	if c.Search.Query == "" {
		return fmt.Errorf("search query cannot be empty")
	}
	if c.ResourceHash == "" {
		return fmt.Errorf("resource hash cannot be empty")
	}
	if c.StartPage < 1 {
		return fmt.Errorf("start page must be at least 1")
	}
	if c.MaxPages <= 0 {
		return fmt.Errorf("max pages must be positive")
	}
	if c.DelayMin < 0 {
		return fmt.Errorf("delay min cannot be negative")
	}
	if c.DelayMax < c.DelayMin {
		return fmt.Errorf("delay max (%s) cannot be below delay min (%s)", c.DelayMax, c.DelayMin)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.OutputFile == "" {
		return fmt.Errorf("output file cannot be empty")
	}
	if c.OutputFormat != "csv" && c.OutputFormat != "json" && c.OutputFormat != "dual" {
		return fmt.Errorf("output format must be csv, json, or dual")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}
	if c.DedupeMaxSize < 0 {
		return fmt.Errorf("dedupe max size cannot be negative")
	}
	if c.PreviewCount < 0 {
		return fmt.Errorf("preview count cannot be negative")
	}

	return nil
}

// MissingCredentials lists the session headers that are not set.
func (c *Config) MissingCredentials() []string {
	var missing []string
	for _, key := range []string{"Cookie", "X-Csrf-Token"} {
		if c.Headers.Get(key) == "" {
			missing = append(missing, key)
		}
	}
	return missing
}
