// Package loom provides a top-level convenience entry point for the
// orchestration core: a workflow registry and an equilibrium selector wired
// together from one configuration.
//
// Usage:
//
//	import "github.com/loomworks/loom"
//
//	core, err := loom.New()
//	core, err := loom.New(loom.WithConfigFile("loom.yaml"))
//	core, err := loom.New(loom.WithLogger(logger), loom.WithEventSink(bus))
//
// Use the workflow and equilibrium packages directly when you need finer
// control over construction.
package loom

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/loomworks/loom/config"
	"github.com/loomworks/loom/equilibrium"
	"github.com/loomworks/loom/internal/metrics"
	"github.com/loomworks/loom/workflow"
)

// metricsNamespace prefixes all Prometheus metric names.
const metricsNamespace = "loom"

// Core bundles the workflow registry and the equilibrium selector.
type Core struct {
	Registry *workflow.Registry
	Selector *equilibrium.Selector

	logger *zap.Logger
}

// Option configures the core created by [New].
type Option func(*options)

type options struct {
	configPath string
	config     *config.Config
	logger     *zap.Logger
	sink       workflow.EventSink
	registerer prometheus.Registerer
}

// WithConfigFile loads configuration from a YAML file.
func WithConfigFile(path string) Option {
	return func(o *options) { o.configPath = path }
}

// WithConfig uses an already-built configuration, skipping file loading.
func WithConfig(cfg *config.Config) Option {
	return func(o *options) { o.config = cfg }
}

// WithLogger uses the given logger instead of building one from config.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithEventSink routes workflow lifecycle events to the sink.
func WithEventSink(sink workflow.EventSink) Option {
	return func(o *options) { o.sink = sink }
}

// WithMetrics registers the core's metrics on the given Prometheus
// registerer.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(o *options) { o.registerer = reg }
}

// New creates a Core with minimal configuration. Without options it runs on
// built-in defaults, environment overrides included.
func New(opts ...Option) (*Core, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	cfg := o.config
	if cfg == nil {
		loaded, err := config.Load(o.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	logger := o.logger
	if logger == nil {
		built, err := cfg.Log.BuildLogger()
		if err != nil {
			return nil, err
		}
		logger = built
	}

	registry := workflow.NewRegistry(workflow.RegistryConfig{
		DefaultStepTimeout: cfg.Engine.DefaultStepTimeout,
		MaxHistoryEntries:  cfg.Engine.MaxHistoryEntries,
		MaxConcurrentSteps: cfg.Engine.MaxConcurrentSteps,
	}, o.sink, logger)
	selector := equilibrium.NewSelector(cfg.Selector, logger)

	if o.registerer != nil {
		collector := metrics.NewCollector(metricsNamespace, o.registerer, logger)
		registry.SetMetrics(collector)
		selector.SetMetrics(collector)
	}

	return &Core{
		Registry: registry,
		Selector: selector,
		logger:   logger,
	}, nil
}

// Close flushes the logger. Call when the core is no longer needed.
func (c *Core) Close() error {
	return c.logger.Sync()
}
