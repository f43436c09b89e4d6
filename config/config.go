// Package config loads environment variables and provides a typed Config used
// across the service. Bot and search credentials are required; everything else
// has sensible defaults so the binary can run locally with minimal setup.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

type Config struct {
	// Credentials
	TelegramToken string
	YouTubeAPIKey string

	// Storage
	DataDir     string
	DownloadDir string

	// HTTP
	HTTPAddr string

	// Filtering. An empty whitelist allows every chat; the blacklist drops
	// links whose URL contains any listed domain.
	WhitelistedChatIDs map[int64]struct{}
	IgnoredDomains     []string
}

// Load reads environment variables and applies defaults. Missing credentials
// are a fatal configuration error: the bot cannot run without them.
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.TelegramToken = os.Getenv("TELEGRAM_API_KEY")
	if cfg.TelegramToken == "" {
		return nil, fmt.Errorf("TELEGRAM_API_KEY environment variable is not set")
	}
	cfg.YouTubeAPIKey = os.Getenv("YOUTUBE_API_KEY")
	if cfg.YouTubeAPIKey == "" {
		return nil, fmt.Errorf("YOUTUBE_API_KEY environment variable is not set")
	}

	cfg.DataDir = os.Getenv("DATA_DIR")
	if cfg.DataDir == "" {
		cfg.DataDir = "data"
	}
	cfg.DownloadDir = os.Getenv("DOWNLOAD_DIR")
	if cfg.DownloadDir == "" {
		cfg.DownloadDir = filepath.Join(cfg.DataDir, "downloads")
	}

	cfg.HTTPAddr = os.Getenv("HTTP_ADDR")
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}

	cfg.WhitelistedChatIDs = map[int64]struct{}{}
	for _, raw := range strings.Split(os.Getenv("WHITELISTED_CHAT_IDS"), ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid chat id %q in WHITELISTED_CHAT_IDS: %w", raw, err)
		}
		cfg.WhitelistedChatIDs[id] = struct{}{}
	}

	for _, d := range strings.Split(os.Getenv("IGNORED_DOMAINS"), ";") {
		d = strings.TrimSpace(d)
		if d != "" {
			cfg.IgnoredDomains = append(cfg.IgnoredDomains, d)
		}
	}

	return cfg, nil
}

// LedgerPath returns the path of the share ledger file.
func (c *Config) LedgerPath() string {
	return filepath.Join(c.DataDir, "bangers.json")
}

// ChatAllowed reports whether messages from the chat should be handled.
func (c *Config) ChatAllowed(chatID int64) bool {
	if len(c.WhitelistedChatIDs) == 0 {
		return true
	}
	_, ok := c.WhitelistedChatIDs[chatID]
	return ok
}

// DomainIgnored reports whether the URL matches the domain blacklist.
func (c *Config) DomainIgnored(url string) bool {
	for _, d := range c.IgnoredDomains {
		if strings.Contains(url, d) {
			return true
		}
	}
	return false
}
