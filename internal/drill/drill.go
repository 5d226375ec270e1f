// Package drill runs hypothesis-driven experiments against a live
// bedplanner deployment.
package drill

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Experiment describes one drill.
type Experiment struct {
	Name       string
	Hypothesis string
	// Setup prepares fixtures; a failing setup aborts the run.
	Setup       []Action
	SteadyState []Probe
	Method      []Action
	Rollback    []Action
	Validation  []Assertion
}

// Probe measures one property of the system.
type Probe struct {
	Name      string
	Query     func(context.Context) (float64, error)
	Threshold Threshold
}

type Threshold struct {
	Operator string // >, <, >=, <=, ==
	Value    float64
}

// Action is a step executed against the system.
type Action struct {
	Name    string
	Target  string
	Execute func(context.Context) error
}

// Assertion checks a probe's final observation.
type Assertion struct {
	Probe     string
	Condition func(float64) bool
	Message   string
}

type Result struct {
	Experiment       string             `json:"experiment"`
	StartTime        time.Time          `json:"start_time"`
	EndTime          time.Time          `json:"end_time"`
	Duration         time.Duration      `json:"duration"`
	HypothesisHeld   bool               `json:"hypothesis_held"`
	SteadyStateValid bool               `json:"steady_state_valid"`
	Violations       []Violation        `json:"violations"`
	Observations     map[string]float64 `json:"observations"`
	Failures         []string           `json:"failures"`
	ErrorEvents      []ErrorEvent       `json:"error_events"`
}

type Violation struct {
	Probe    string  `json:"probe"`
	Expected float64 `json:"expected"`
	Actual   float64 `json:"actual"`
}

type ErrorEvent struct {
	Timestamp time.Time `json:"timestamp"`
	Error     string    `json:"error"`
	Component string    `json:"component"`
}

// ErrSteadyState is returned when the system is unhealthy before the method runs.
var ErrSteadyState = errors.New("steady state invalid, aborting experiment")

// Engine runs experiments and keeps their results.
type Engine struct {
	tracer  trace.Tracer
	logger  *zap.Logger
	mu      sync.Mutex
	results []Result
}

func NewEngine(logger *zap.Logger) *Engine {
	return &Engine{
		tracer: otel.Tracer("bedplanner/drill"),
		logger: logger,
	}
}

// Run executes setup, steady-state check, method, observation, rollback and
// validation in that order.
func (e *Engine) Run(ctx context.Context, exp Experiment) (*Result, error) {
	ctx, span := e.tracer.Start(ctx, "drill.run",
		trace.WithAttributes(attribute.String("experiment.name", exp.Name)),
	)
	defer span.End()

	log := e.logger.With(zap.String("experiment", exp.Name))
	result := &Result{
		Experiment:   exp.Name,
		StartTime:    time.Now(),
		Observations: make(map[string]float64),
	}

	span.AddEvent("setup")
	for _, action := range exp.Setup {
		if err := action.Execute(ctx); err != nil {
			span.RecordError(err)
			return result, err
		}
	}
	defer e.rollback(ctx, exp, result)

	span.AddEvent("validating_steady_state")
	for _, probe := range exp.SteadyState {
		value, err := probe.Query(ctx)
		if err != nil {
			result.record(probe.Name, err)
			result.Violations = append(result.Violations, Violation{Probe: probe.Name, Expected: probe.Threshold.Value, Actual: -1})
			continue
		}
		if !probe.Threshold.holds(value) {
			result.Violations = append(result.Violations, Violation{Probe: probe.Name, Expected: probe.Threshold.Value, Actual: value})
		}
	}
	if len(result.Violations) > 0 {
		log.Warn("steady state invalid", zap.Int("violations", len(result.Violations)))
		return result, ErrSteadyState
	}
	result.SteadyStateValid = true

	span.AddEvent("running_method")
	for _, action := range exp.Method {
		if err := action.Execute(ctx); err != nil {
			result.record(action.Target, err)
			span.RecordError(err)
		}
	}

	span.AddEvent("observing_system")
	for _, probe := range exp.SteadyState {
		value, err := probe.Query(ctx)
		if err != nil {
			result.record(probe.Name, err)
			continue
		}
		result.Observations[probe.Name] = value
		if !probe.Threshold.holds(value) {
			result.Violations = append(result.Violations, Violation{Probe: probe.Name, Expected: probe.Threshold.Value, Actual: value})
		}
	}

	span.AddEvent("validating_assertions")
	result.HypothesisHeld = true
	for _, a := range exp.Validation {
		value, ok := result.Observations[a.Probe]
		if !ok || !a.Condition(value) {
			result.HypothesisHeld = false
			result.Failures = append(result.Failures, a.Message)
		}
	}
	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(result.StartTime)

	e.mu.Lock()
	e.results = append(e.results, *result)
	e.mu.Unlock()

	span.SetAttributes(
		attribute.Bool("hypothesis_held", result.HypothesisHeld),
		attribute.Int("violations", len(result.Violations)),
	)
	log.Info("experiment finished",
		zap.Bool("hypothesis_held", result.HypothesisHeld),
		zap.Any("observations", result.Observations),
		zap.Strings("failures", result.Failures),
		zap.Duration("duration", result.Duration),
	)
	return result, nil
}

// Results returns every completed run.
func (e *Engine) Results() []Result {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Result(nil), e.results...)
}

func (e *Engine) rollback(ctx context.Context, exp Experiment, result *Result) {
	for _, action := range exp.Rollback {
		if err := action.Execute(ctx); err != nil {
			result.record(action.Target, err)
			e.logger.Warn("rollback action failed", zap.String("action", action.Name), zap.Error(err))
		}
	}
}

func (r *Result) record(component string, err error) {
	r.ErrorEvents = append(r.ErrorEvents, ErrorEvent{
		Timestamp: time.Now(),
		Error:     err.Error(),
		Component: component,
	})
}

func (t Threshold) holds(value float64) bool {
	switch t.Operator {
	case ">":
		return value > t.Value
	case "<":
		return value < t.Value
	case ">=":
		return value >= t.Value
	case "<=":
		return value <= t.Value
	case "==":
		return value == t.Value
	default:
		return false
	}
}
