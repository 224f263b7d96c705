// Package config loads metasync configuration from config.yaml and the
// environment via viper.
//
// Precedence is environment over file over defaults. Environment
// variables use the METASYNC_ prefix with dots replaced by underscores,
// so github.token becomes METASYNC_GITHUB_TOKEN.
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Configuration keys.
const (
	KeyGitHubToken      = "github.token"
	KeyGitHubAPIURL     = "github.api-url"
	KeyMetaRepo         = "meta.repo"
	KeyWebhookAddr      = "webhook.addr"
	KeyWebhookSecret    = "webhook.secret"
	KeyMappingDB        = "mapping.db"
	KeyTelemetryEnabled = "telemetry.enabled"
	KeyLabelsFile       = "labels.file"
)

// v is the package-level viper instance. It is nil until Initialize is
// called; accessors are nil-safe and return zero values before that.
var v *viper.Viper

// Initialize sets up the viper instance: defaults, optional config.yaml
// in the working directory or ~/.config/metasync/, and METASYNC_*
// environment variables.
func Initialize() error {
	nv := viper.New()

	nv.SetDefault(KeyGitHubAPIURL, "https://api.github.com")
	nv.SetDefault(KeyWebhookAddr, ":8080")
	nv.SetDefault(KeyMappingDB, defaultMappingDBPath())
	nv.SetDefault(KeyTelemetryEnabled, false)

	nv.SetConfigName("config")
	nv.SetConfigType("yaml")
	nv.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		nv.AddConfigPath(filepath.Join(home, ".config", "metasync"))
	}

	nv.SetEnvPrefix("METASYNC")
	nv.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	nv.AutomaticEnv()

	if err := nv.ReadInConfig(); err != nil {
		// A missing config file is fine; everything can come from
		// environment variables.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v = nv
	return nil
}

// InitializeForTest replaces the viper instance with a fresh one that
// reads nothing from disk or the environment. Tests set values directly
// with Set.
func InitializeForTest() {
	v = viper.New()
}

// Set sets a configuration value on the current instance.
func Set(key string, value interface{}) {
	if v == nil {
		return
	}
	v.Set(key, value)
}

// GetString returns the string value for key, or "" if uninitialized.
func GetString(key string) string {
	if v == nil {
		return ""
	}
	return v.GetString(key)
}

// GetBool returns the bool value for key, or false if uninitialized.
func GetBool(key string) bool {
	if v == nil {
		return false
	}
	return v.GetBool(key)
}

// GetDuration returns the duration value for key. Unparseable values
// are logged and return zero rather than aborting startup.
func GetDuration(key string) time.Duration {
	if v == nil {
		return 0
	}
	d := v.GetDuration(key)
	if d == 0 && v.GetString(key) != "" && v.GetString(key) != "0" {
		log.Printf("config: invalid duration for %s: %q, using 0", key, v.GetString(key))
	}
	return d
}

// GitHubToken returns the configured GitHub API token, falling back to
// the conventional GITHUB_TOKEN variable.
func GitHubToken() string {
	if t := GetString(KeyGitHubToken); t != "" {
		return t
	}
	return os.Getenv("GITHUB_TOKEN")
}

// MetaRepo returns the configured meta repository in owner/repo form.
// Returns an error when unset or malformed, since the sync engine
// cannot operate without it.
func MetaRepo() (string, error) {
	repo := GetString(KeyMetaRepo)
	if repo == "" {
		return "", fmt.Errorf("meta.repo is not configured (set METASYNC_META_REPO or meta.repo in config.yaml)")
	}
	if strings.Count(repo, "/") != 1 {
		return "", fmt.Errorf("meta.repo must be in owner/repo form, got %q", repo)
	}
	return repo, nil
}

// MappingDBPath returns the SQLite mapping database path.
func MappingDBPath() string {
	if p := GetString(KeyMappingDB); p != "" {
		return p
	}
	return defaultMappingDBPath()
}

func defaultMappingDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "metasync.db"
	}
	return filepath.Join(home, ".local", "share", "metasync", "mappings.db")
}
