package fluxgraph

import "github.com/fluxgraph/fluxgraph/feature"

type options struct {
	multigraph bool
	nodeInit   feature.Initializer
	edgeInit   feature.Initializer
	logger     *Logger
	metrics    MetricsCollector
}

func defaultOptions() options {
	return options{
		logger:  NoopLogger(),
		metrics: NoopMetrics(),
	}
}

// Option configures graph construction. Configuration is per instance;
// there is no package-level mutable state.
type Option func(*options)

// WithMultigraph permits multiple edges between the same (source,
// destination) pair. Endpoint-based lookup on a multigraph returns
// AmbiguousEdgeError when more than one edge matches.
func WithMultigraph() Option {
	return func(o *options) { o.multigraph = true }
}

// WithNodeInitializer overrides the default-fill behavior (zero) for
// node feature rows that are created without an explicit value.
func WithNodeInitializer(init feature.Initializer) Option {
	return func(o *options) { o.nodeInit = init }
}

// WithEdgeInitializer overrides the default-fill behavior (zero) for
// edge feature rows that are created without an explicit value.
func WithEdgeInitializer(init feature.Initializer) Option {
	return func(o *options) { o.edgeInit = init }
}

// WithLogger configures structured logging. If l is nil the no-op
// logger is kept.
func WithLogger(l *Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetricsCollector configures metrics. If mc is nil the no-op
// collector is kept.
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc != nil {
			o.metrics = mc
		}
	}
}
