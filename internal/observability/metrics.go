package observability

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// CollisionCollector bundles Prometheus metrics for the pose engine and the
// collision scheduler and provides a ready-made /metrics handler.
type CollisionCollector struct {
	gatherer prometheus.Gatherer

	EvaluationsTotal    *prometheus.CounterVec
	EvaluationDuration  prometheus.Histogram
	InFlightEvaluations prometheus.Gauge
	CollidingPairs      prometheus.Gauge
	PoseUpdatesTotal    prometheus.Counter
	ClampedInputsTotal  prometheus.Counter
	ScissorFallbacks    prometheus.Counter
}

// NewCollisionCollector registers the collision metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
func NewCollisionCollector(reg prometheus.Registerer) (*CollisionCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	evaluations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "collision_evaluations_total",
		Help: "Completed collision evaluations, labeled by resulting verdict.",
	}, []string{"verdict"})
	evaluations, err := registerCounterVec(reg, evaluations, "collision_evaluations_total")
	if err != nil {
		return nil, err
	}

	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "collision_evaluation_duration_seconds",
		Help:    "Wall time of a single pair overlap evaluation.",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	})
	duration, err = registerHistogram(reg, duration, "collision_evaluation_duration_seconds")
	if err != nil {
		return nil, err
	}

	inflight, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "collision_evaluations_in_flight",
		Help: "Number of overlap evaluations currently running on the worker pool.",
	}), "collision_evaluations_in_flight")
	if err != nil {
		return nil, err
	}

	colliding, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "collision_colliding_pairs",
		Help: "Number of monitored pairs whose last verdict is colliding.",
	}), "collision_colliding_pairs")
	if err != nil {
		return nil, err
	}

	poses, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pose_updates_total",
		Help: "Pose transitions committed by the engine.",
	}), "pose_updates_total")
	if err != nil {
		return nil, err
	}

	clamped, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pose_clamped_inputs_total",
		Help: "Pose inputs that exceeded a parameter bound and were clamped.",
	}), "pose_clamped_inputs_total")
	if err != nil {
		return nil, err
	}

	fallbacks, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scissor_unreachable_fallbacks_total",
		Help: "Scissor-lift solves that hit the unreachable-distance park pose.",
	}), "scissor_unreachable_fallbacks_total")
	if err != nil {
		return nil, err
	}

	return &CollisionCollector{
		gatherer:            gatherer,
		EvaluationsTotal:    evaluations,
		EvaluationDuration:  duration,
		InFlightEvaluations: inflight,
		CollidingPairs:      colliding,
		PoseUpdatesTotal:    poses,
		ClampedInputsTotal:  clamped,
		ScissorFallbacks:    fallbacks,
	}, nil
}

// Handler exposes a ready-to-use /metrics handler.
func (c *CollisionCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(hist); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return hist, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
