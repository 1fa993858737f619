package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix prefixes the environment variables that override stored browser
// settings, for example BROWSERPOOL_MAX_SESSIONS=3.
const EnvPrefix = "BROWSERPOOL"

// browserEnv lists the overridable settings; names derive from the field
// names, e.g. SessionTimeoutSeconds is BROWSERPOOL_SESSION_TIMEOUT_SECONDS.
// Unset variables leave their field nil so the stored value is kept.
type browserEnv struct {
	MaxSessions           *int     `split_words:"true"`
	SessionTimeoutSeconds *int     `split_words:"true"`
	AllowedDomains        []string `split_words:"true"`
	OperationTimeoutMs    *int     `split_words:"true"`
	Headless              *bool
	Engine                *string
	Stealth               *bool
	ScreenshotsDir        *string `split_words:"true"`
	SweepInterval         *string `split_words:"true"`
}

// ApplyEnv overrides section with any BROWSERPOOL_* variables that are set.
// An empty BROWSERPOOL_ALLOWED_DOMAINS clears the allow-list.
func ApplyEnv(section *BrowserSection) error {
	var env browserEnv
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return fmt.Errorf("failed to read environment overrides: %w", err)
	}

	data := make(map[string]interface{})
	if env.MaxSessions != nil {
		data["max_sessions"] = *env.MaxSessions
	}
	if env.SessionTimeoutSeconds != nil {
		data["session_timeout_seconds"] = *env.SessionTimeoutSeconds
	}
	if env.AllowedDomains != nil {
		data["allowed_domains"] = env.AllowedDomains
	}
	if env.OperationTimeoutMs != nil {
		data["default_operation_timeout_ms"] = *env.OperationTimeoutMs
	}
	if env.Headless != nil {
		data["headless"] = *env.Headless
	}
	if env.Engine != nil {
		data["engine"] = *env.Engine
	}
	if env.Stealth != nil {
		data["stealth"] = *env.Stealth
	}
	if env.ScreenshotsDir != nil {
		data["screenshots_dir"] = *env.ScreenshotsDir
	}
	if env.SweepInterval != nil {
		data["sweep_interval"] = *env.SweepInterval
	}

	if len(data) == 0 {
		return nil
	}
	return section.SetData(data)
}
