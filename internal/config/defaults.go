package config

import (
	"os"
	"path/filepath"

	"github.com/hyperjump/docchat/internal/fetch"
	"github.com/hyperjump/docchat/internal/llm"
)

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Model.BaseURL == "" {
		cfg.Model.BaseURL = llm.DefaultBaseURL
	}
	if cfg.Model.Name == "" {
		cfg.Model.Name = llm.DefaultModel
	}
	if cfg.Model.TimeoutSeconds == 0 {
		cfg.Model.TimeoutSeconds = 60
	}
	if cfg.Model.MaxTokens == 0 {
		cfg.Model.MaxTokens = 1024
	}
	if cfg.Fetch.UserAgent == "" {
		cfg.Fetch.UserAgent = fetch.DefaultUserAgent
	}
	if cfg.Fetch.TimeoutSeconds == 0 {
		cfg.Fetch.TimeoutSeconds = 30
	}
	if cfg.Fetch.MaxBodyBytes == 0 {
		cfg.Fetch.MaxBodyBytes = 10 << 20
	}
	if cfg.Upload.Dir == "" {
		cfg.Upload.Dir = filepath.Join(os.TempDir(), "docchat", "uploads")
	}
	if cfg.Upload.MaxBytes == 0 {
		cfg.Upload.MaxBytes = 50 << 20
	}
	if cfg.Session.IdleTimeoutMinutes == 0 {
		cfg.Session.IdleTimeoutMinutes = 60
	}
	if cfg.Preview.SnippetChars == 0 {
		cfg.Preview.SnippetChars = 500
	}
	if cfg.Preview.HeadRows == 0 {
		cfg.Preview.HeadRows = 5
	}
	if cfg.Log.File != "" {
		if cfg.Log.MaxSizeMB == 0 {
			cfg.Log.MaxSizeMB = 100
		}
		if cfg.Log.MaxBackups == 0 {
			cfg.Log.MaxBackups = 3
		}
		if cfg.Log.MaxAgeDays == 0 {
			cfg.Log.MaxAgeDays = 28
		}
	}
}
