package sessionpool

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Default values for pool configuration.
const (
	DefaultMaxSessions      = 5
	DefaultSessionTimeout   = 300 * time.Second // 5 minutes
	DefaultOperationTimeout = 30 * time.Second
	DefaultSweepInterval    = time.Minute

	// generatedIDLength is the length of pool-generated session ids.
	generatedIDLength = 8
)

// Options configures a Pool.
type Options struct {
	// MaxSessions is the hard cap on concurrently live sessions.
	MaxSessions int

	// SessionTimeout is the idle threshold after which Sweep reclaims a session.
	SessionTimeout time.Duration

	// AllowedDomains is the navigation allow-list. Empty allows every host.
	AllowedDomains []string

	// OperationTimeout is the default bound for a single page-level operation.
	OperationTimeout time.Duration

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time

	// NewID generates ids for sessions acquired without one.
	NewID func() string

	// Logger receives lifecycle events. Defaults to a no-op logger.
	Logger Logger

	// Metrics is optional.
	Metrics *Metrics
}

// Normalize fills zero values with defaults.
func (o *Options) Normalize() {
	if o.MaxSessions == 0 {
		o.MaxSessions = DefaultMaxSessions
	}
	if o.SessionTimeout == 0 {
		o.SessionTimeout = DefaultSessionTimeout
	}
	if o.OperationTimeout == 0 {
		o.OperationTimeout = DefaultOperationTimeout
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.NewID == nil {
		o.NewID = newSessionID
	}
	if o.Logger == nil {
		o.Logger = nopLogger{}
	}
}

// Validate checks that the options describe a usable pool.
func (o *Options) Validate() error {
	if o.MaxSessions < 1 {
		return fmt.Errorf("max sessions must be positive, got %d", o.MaxSessions)
	}
	if o.SessionTimeout <= 0 {
		return fmt.Errorf("session timeout must be positive, got %v", o.SessionTimeout)
	}
	if o.OperationTimeout <= 0 {
		return fmt.Errorf("operation timeout must be positive, got %v", o.OperationTimeout)
	}
	return nil
}

func newSessionID() string {
	return uuid.NewString()[:generatedIDLength]
}
