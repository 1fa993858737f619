package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/entrhq/browserpool/pkg/sessionpool"
)

const (
	// SectionIDBrowser is the identifier for the browser pool section
	SectionIDBrowser = "browser"

	defaultEngine   = "playwright"
	defaultHeadless = true

	maxOperationTimeout = 10 * time.Minute
)

var validEngines = map[string]bool{
	"playwright": true,
	"rod":        true,
}

// BrowserSection configures the session pool and the engine behind it.
type BrowserSection struct {
	MaxSessions      int           `json:"max_sessions"`
	SessionTimeout   time.Duration `json:"session_timeout_seconds"`
	AllowedDomains   []string      `json:"allowed_domains"`
	OperationTimeout time.Duration `json:"default_operation_timeout_ms"`
	Headless         bool          `json:"headless"`
	Engine           string        `json:"engine"`
	Stealth          bool          `json:"stealth"`
	ScreenshotsDir   string        `json:"screenshots_dir"`
	SweepInterval    time.Duration `json:"sweep_interval"`
	mu               sync.RWMutex
}

// NewBrowserSection creates a browser section with default settings.
func NewBrowserSection() *BrowserSection {
	s := &BrowserSection{}
	s.Reset()
	return s
}

// ID returns the section identifier.
func (s *BrowserSection) ID() string {
	return SectionIDBrowser
}

// Title returns the section title.
func (s *BrowserSection) Title() string {
	return "Browser Sessions"
}

// Description returns the section description.
func (s *BrowserSection) Description() string {
	return "Configure the browser session pool: capacity, idle timeout, navigation allow-list and engine."
}

// Data returns the current configuration data.
func (s *BrowserSection) Data() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	domains := make([]interface{}, len(s.AllowedDomains))
	for i, d := range s.AllowedDomains {
		domains[i] = d
	}

	return map[string]interface{}{
		"max_sessions":                 s.MaxSessions,
		"session_timeout_seconds":      int(s.SessionTimeout / time.Second),
		"allowed_domains":              domains,
		"default_operation_timeout_ms": int(s.OperationTimeout / time.Millisecond),
		"headless":                     s.Headless,
		"engine":                       s.Engine,
		"stealth":                      s.Stealth,
		"screenshots_dir":              s.ScreenshotsDir,
		"sweep_interval":               s.SweepInterval.String(),
	}
}

// SetData updates the configuration from the provided data.
func (s *BrowserSection) SetData(data map[string]interface{}) error {
	if data == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for key, value := range data {
		switch key {
		case "max_sessions":
			n, err := intValue(key, value)
			if err != nil {
				return err
			}
			s.MaxSessions = n

		case "session_timeout_seconds":
			n, err := intValue(key, value)
			if err != nil {
				return err
			}
			s.SessionTimeout = time.Duration(n) * time.Second

		case "default_operation_timeout_ms":
			n, err := intValue(key, value)
			if err != nil {
				return err
			}
			s.OperationTimeout = time.Duration(n) * time.Millisecond

		case "allowed_domains":
			domains, err := stringList(key, value)
			if err != nil {
				return err
			}
			s.AllowedDomains = domains

		case "headless":
			b, ok := value.(bool)
			if !ok {
				return fmt.Errorf("invalid value type for headless: expected bool, got %T", value)
			}
			s.Headless = b

		case "stealth":
			b, ok := value.(bool)
			if !ok {
				return fmt.Errorf("invalid value type for stealth: expected bool, got %T", value)
			}
			s.Stealth = b

		case "engine":
			str, ok := value.(string)
			if !ok {
				return fmt.Errorf("invalid value type for engine: expected string, got %T", value)
			}
			s.Engine = strings.ToLower(strings.TrimSpace(str))

		case "screenshots_dir":
			str, ok := value.(string)
			if !ok {
				return fmt.Errorf("invalid value type for screenshots_dir: expected string, got %T", value)
			}
			s.ScreenshotsDir = str

		case "sweep_interval":
			switch v := value.(type) {
			case string:
				d, err := time.ParseDuration(v)
				if err != nil {
					return fmt.Errorf("invalid duration string for sweep_interval: %w", err)
				}
				s.SweepInterval = d
			case float64:
				s.SweepInterval = time.Duration(v)
			case int:
				s.SweepInterval = time.Duration(v)
			default:
				return fmt.Errorf("invalid value type for sweep_interval: expected string or number, got %T", value)
			}

		default:
			// Ignore unknown keys for forward compatibility
			continue
		}
	}

	return nil
}

// Validate validates the current configuration.
func (s *BrowserSection) Validate() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.MaxSessions < 1 {
		return fmt.Errorf("max_sessions must be at least 1, got %d", s.MaxSessions)
	}
	if s.SessionTimeout < time.Second {
		return fmt.Errorf("session_timeout_seconds must be at least 1, got %v", s.SessionTimeout)
	}
	if s.OperationTimeout <= 0 || s.OperationTimeout > maxOperationTimeout {
		return fmt.Errorf("default_operation_timeout_ms must be between 1ms and %v, got %v", maxOperationTimeout, s.OperationTimeout)
	}
	if !validEngines[s.Engine] {
		return fmt.Errorf("engine must be 'playwright' or 'rod', got %q", s.Engine)
	}
	if s.SweepInterval < time.Second {
		return fmt.Errorf("sweep_interval must be at least 1s, got %v", s.SweepInterval)
	}
	if _, err := sessionpool.NewDomainGuard(s.AllowedDomains); err != nil {
		return fmt.Errorf("allowed_domains: %w", err)
	}
	return nil
}

// Reset resets the section to default configuration.
func (s *BrowserSection) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.MaxSessions = sessionpool.DefaultMaxSessions
	s.SessionTimeout = sessionpool.DefaultSessionTimeout
	s.AllowedDomains = nil
	s.OperationTimeout = sessionpool.DefaultOperationTimeout
	s.Headless = defaultHeadless
	s.Engine = defaultEngine
	s.Stealth = false
	s.ScreenshotsDir = ""
	s.SweepInterval = sessionpool.DefaultSweepInterval
}

// PoolOptions converts the section into session pool options. Clock, id,
// logger and metrics hooks are left for the caller.
func (s *BrowserSection) PoolOptions() sessionpool.Options {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return sessionpool.Options{
		MaxSessions:      s.MaxSessions,
		SessionTimeout:   s.SessionTimeout,
		AllowedDomains:   append([]string(nil), s.AllowedDomains...),
		OperationTimeout: s.OperationTimeout,
	}
}

// GetEngine returns the configured engine name.
func (s *BrowserSection) GetEngine() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Engine
}

// IsHeadless reports whether browsers run without a window.
func (s *BrowserSection) IsHeadless() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Headless
}

// UseStealth reports whether stealth pages are requested.
func (s *BrowserSection) UseStealth() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Stealth
}

// GetSweepInterval returns the period of the background idle sweep.
func (s *BrowserSection) GetSweepInterval() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.SweepInterval
}

// ResolveScreenshotsDir returns the screenshot directory, defaulting to
// ~/.browserpool/screenshots.
func (s *BrowserSection) ResolveScreenshotsDir() (string, error) {
	s.mu.RLock()
	dir := s.ScreenshotsDir
	s.mu.RUnlock()

	if dir != "" {
		return dir, nil
	}
	root, err := DefaultDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(root, "screenshots"), nil
}

// intValue accepts the numeric types produced by the JSON and YAML decoders.
func intValue(key string, value interface{}) (int, error) {
	switch v := value.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		if v != float64(int(v)) {
			return 0, fmt.Errorf("invalid value for %s: expected whole number, got %v", key, v)
		}
		return int(v), nil
	default:
		return 0, fmt.Errorf("invalid value type for %s: expected number, got %T", key, value)
	}
}

func stringList(key string, value interface{}) ([]string, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case []string:
		return append([]string(nil), v...), nil
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			str, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("invalid entry in %s: expected string, got %T", key, item)
			}
			out = append(out, str)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("invalid value type for %s: expected list of strings, got %T", key, value)
	}
}
