package core

import "time"

// Attempt outcome values used in logs, the console, and the history store
const (
	OutcomeSuccess  = "ok"
	OutcomeSkipped  = "skipped"
	OutcomeTimedOut = "timeout"
	OutcomeFailed   = "error"
)

// Adaptive deadline defaults
const (
	// DefaultDeadlineGrace is added to the floored mean of prior durations.
	DefaultDeadlineGrace = 5 * time.Second
	// DefaultDeadlineUnit is the unit the mean is floored to.
	DefaultDeadlineUnit = time.Second
	// MinObservations is the number of samples needed before a deadline is armed.
	MinObservations = 3
	// ObservationWindow bounds how many recent samples inform the deadline.
	ObservationWindow = 10
)

// Timeout defaults for browser-driven uploads and probes
const (
	DefaultBrowserTimeout = 2 * time.Minute
	DefaultProbeTimeout   = 10 * time.Second
	DefaultSettleDelay    = 500 * time.Millisecond
)

// Resource limits
const (
	MaxResponseSize = 1 << 20 // 1MiB
	BytesPerMB      = 1e6
)

// HTTP client configuration
const (
	UserAgent          = "Mozilla/5.0 (compatible; mirrorup/1.0)"
	RequestsPerSecond  = 2.0
	RequestBurst       = 2
	DefaultLogFile     = "mirrorup.log"
	DefaultBrowserPool = 2
)

// History defaults
const (
	DefaultHistoryDB    = "mirrorup.db"
	DefaultHistoryLimit = 20
)
