package config

import (
	"path/filepath"
	"testing"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("TELEGRAM_API_KEY", "tg-token")
	t.Setenv("YOUTUBE_API_KEY", "yt-key")
}

func TestLoadRequiresCredentials(t *testing.T) {
	t.Setenv("TELEGRAM_API_KEY", "")
	t.Setenv("YOUTUBE_API_KEY", "yt-key")
	if _, err := Load(); err == nil {
		t.Error("expected error when TELEGRAM_API_KEY missing")
	}

	t.Setenv("TELEGRAM_API_KEY", "tg-token")
	t.Setenv("YOUTUBE_API_KEY", "")
	if _, err := Load(); err == nil {
		t.Error("expected error when YOUTUBE_API_KEY missing")
	}
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)
	t.Setenv("DATA_DIR", "")
	t.Setenv("DOWNLOAD_DIR", "")
	t.Setenv("HTTP_ADDR", "")
	t.Setenv("WHITELISTED_CHAT_IDS", "")
	t.Setenv("IGNORED_DOMAINS", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.DataDir != "data" {
		t.Errorf("DataDir = %q, want data", cfg.DataDir)
	}
	if cfg.DownloadDir != filepath.Join("data", "downloads") {
		t.Errorf("DownloadDir = %q", cfg.DownloadDir)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr = %q, want :8080", cfg.HTTPAddr)
	}
	if cfg.LedgerPath() != filepath.Join("data", "bangers.json") {
		t.Errorf("LedgerPath = %q", cfg.LedgerPath())
	}
}

func TestWhitelist(t *testing.T) {
	setRequired(t)
	t.Setenv("WHITELISTED_CHAT_IDS", " -100123, 456 ")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if !cfg.ChatAllowed(-100123) || !cfg.ChatAllowed(456) {
		t.Error("whitelisted chats should be allowed")
	}
	if cfg.ChatAllowed(789) {
		t.Error("non-whitelisted chat should be rejected")
	}

	t.Setenv("WHITELISTED_CHAT_IDS", "")
	cfg, _ = Load()
	if !cfg.ChatAllowed(789) {
		t.Error("empty whitelist should allow every chat")
	}

	t.Setenv("WHITELISTED_CHAT_IDS", "abc")
	if _, err := Load(); err == nil {
		t.Error("expected error for non-numeric chat id")
	}
}

func TestIgnoredDomains(t *testing.T) {
	setRequired(t)
	t.Setenv("IGNORED_DOMAINS", "spam.example;ads.example")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if !cfg.DomainIgnored("https://spam.example/track/1") {
		t.Error("blacklisted domain should be ignored")
	}
	if cfg.DomainIgnored("https://music.apple.com/us/album/x") {
		t.Error("unlisted domain should not be ignored")
	}
}
