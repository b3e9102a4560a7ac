package usbip

import (
	"github.com/behrlich/go-usbip/internal/logging"
	"github.com/behrlich/go-usbip/internal/session"
)

// KeepaliveConfig tunes the TCP keepalive probe timing applied to a
// session's connection (spec.md section 5, "TCP keep-alive (idle seconds,
// probe count, probe interval) is an exposed configuration").
type KeepaliveConfig = session.KeepaliveConfig

// DefaultKeepaliveConfig returns the keepalive tuning applied when the
// caller doesn't override it with WithKeepalive.
func DefaultKeepaliveConfig() KeepaliveConfig {
	return KeepaliveConfig{
		Idle:     DefaultKeepaliveIdle,
		Interval: DefaultKeepaliveInterval,
		Count:    DefaultKeepaliveCount,
	}
}

// options collects the configuration a Session is built with. It has far
// fewer knobs than the teacher's ublk Device, so it is collapsed into
// functional options rather than a standalone Params struct.
type options struct {
	logger      *logging.Logger
	observer    Observer
	keepalive   KeepaliveConfig
	cpuAffinity []int
}

func defaultOptions() *options {
	return &options{
		logger:    logging.Default(),
		observer:  NoOpObserver{},
		keepalive: DefaultKeepaliveConfig(),
	}
}

// Option configures a Session at construction time.
type Option func(*options)

// WithLogger overrides the session's logger. The default is the package's
// global logger (internal/logging.Default()).
func WithLogger(logger *logging.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithObserver attaches an Observer for submit/complete/cancel/error
// metrics. The default is NoOpObserver{}.
func WithObserver(observer Observer) Option {
	return func(o *options) {
		if observer != nil {
			o.observer = observer
		}
	}
}

// WithKeepalive overrides the TCP keepalive tuning applied to the
// session's connection when it is backed by a *net.TCPConn.
func WithKeepalive(cfg KeepaliveConfig) Option {
	return func(o *options) {
		o.keepalive = cfg
	}
}

// WithCPUAffinity pins the session's sender and receiver goroutines' host
// OS thread to the given CPU set, for callers running a high-rate session
// that wants deterministic core placement. Linux only: the session
// package's affinity and keepalive code calls Linux system interfaces and
// has no implementation for other platforms.
func WithCPUAffinity(cpus []int) Option {
	return func(o *options) {
		o.cpuAffinity = cpus
	}
}
