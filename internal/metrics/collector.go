package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Collector records workflow and selector metrics.
type Collector struct {
	// Workflow metrics
	workflowExecutionsTotal   *prometheus.CounterVec
	workflowExecutionDuration *prometheus.HistogramVec
	workflowStepsTotal        *prometheus.CounterVec
	workflowStepDuration      *prometheus.HistogramVec
	workflowRollbacksTotal    *prometheus.CounterVec
	historyEvictionsTotal     prometheus.Counter

	// Equilibrium selector metrics
	equilibriumRunsTotal  *prometheus.CounterVec
	equilibriumIterations prometheus.Histogram

	logger *zap.Logger
}

// NewCollector creates a metrics collector registered against reg.
// A nil reg falls back to the default Prometheus registerer.
func NewCollector(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	factory := promauto.With(reg)

	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	c.workflowExecutionsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflow_executions_total",
			Help:      "Total number of workflow executions by terminal status",
		},
		[]string{"workflow_id", "status"},
	)

	c.workflowExecutionDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "workflow_execution_duration_seconds",
			Help:      "Workflow execution duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
		},
		[]string{"workflow_id"},
	)

	c.workflowStepsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflow_steps_total",
			Help:      "Total number of workflow steps executed by terminal status",
		},
		[]string{"workflow_id", "status"},
	)

	c.workflowStepDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "workflow_step_duration_seconds",
			Help:      "Workflow step duration in seconds",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
		},
		[]string{"workflow_id"},
	)

	c.workflowRollbacksTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflow_rollbacks_total",
			Help:      "Total number of compensating rollback invocations by outcome",
		},
		[]string{"workflow_id", "outcome"},
	)

	c.historyEvictionsTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "history_evictions_total",
			Help:      "Total number of execution records evicted from the bounded history",
		},
	)

	c.equilibriumRunsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "equilibrium_runs_total",
			Help:      "Total number of equilibrium computations by convergence outcome",
		},
		[]string{"converged"},
	)

	c.equilibriumIterations = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "equilibrium_iterations",
			Help:      "Iterations taken per equilibrium computation",
			Buckets:   []float64{1, 2, 5, 10, 20, 50, 100},
		},
	)

	logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// RecordExecution records a terminal workflow execution.
func (c *Collector) RecordExecution(workflowID, status string, duration time.Duration) {
	if c == nil {
		return
	}
	c.workflowExecutionsTotal.WithLabelValues(workflowID, status).Inc()
	c.workflowExecutionDuration.WithLabelValues(workflowID).Observe(duration.Seconds())
}

// RecordStep records a terminal step execution.
func (c *Collector) RecordStep(workflowID, status string, duration time.Duration) {
	if c == nil {
		return
	}
	c.workflowStepsTotal.WithLabelValues(workflowID, status).Inc()
	c.workflowStepDuration.WithLabelValues(workflowID).Observe(duration.Seconds())
}

// RecordRollback records one compensating rollback invocation and its outcome.
func (c *Collector) RecordRollback(workflowID, outcome string) {
	if c == nil {
		return
	}
	c.workflowRollbacksTotal.WithLabelValues(workflowID, outcome).Inc()
}

// RecordHistoryEviction records one eviction from the bounded history store.
func (c *Collector) RecordHistoryEviction() {
	if c == nil {
		return
	}
	c.historyEvictionsTotal.Inc()
}

// RecordEquilibrium records one equilibrium computation.
func (c *Collector) RecordEquilibrium(converged bool, iterations int) {
	if c == nil {
		return
	}
	c.equilibriumRunsTotal.WithLabelValues(strconv.FormatBool(converged)).Inc()
	c.equilibriumIterations.Observe(float64(iterations))
}
