// Package orchestrator chains several gateway operations into one logical
// operation (verify = authorize then void, for example) and selects which
// step's response is reported. Steps run strictly in order on the caller's
// goroutine; nothing is retried, and no step error or panic escapes: every run
// ends with a Response.
package orchestrator

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/yourorg/payment-gateway/internal/response"
)

// Policy selects the reported response of a run.
type Policy int

const (
	// First stops at the first failing (non-ignored) step and reports it;
	// otherwise the last non-ignored step is reported.
	First Policy = iota
	// UseFirstResponse runs every step and reports the first non-ignored one.
	UseFirstResponse
)

func (p Policy) String() string {
	switch p {
	case First:
		return "first"
	case UseFirstResponse:
		return "use_first_response"
	default:
		return fmt.Sprintf("Policy(%d)", int(p))
	}
}

// State is the lifecycle of a run.
type State int

const (
	StatePending State = iota
	StateRunning
	StateCompleted
	StateAborted
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateAborted:
		return "aborted"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Results is the read-only view of a run that later steps receive.
type Results interface {
	All() []response.Response
	Last() (response.Response, bool)
	Primary() (response.Response, bool)
	// Authorization is the token of the currently selected response.
	Authorization() string
}

// StepFunc performs one deferred operation. Errors are contained by the run.
type StepFunc func(ctx context.Context, prior Results) (response.Response, error)

// Step is a unit of a run.
type Step struct {
	Name         string
	Run          StepFunc
	IgnoreResult bool // Executes, but never aborts the run nor becomes the reported response
}

// Process is shorthand for a normal step.
func Process(name string, fn StepFunc) Step {
	return Step{Name: name, Run: fn}
}

// Ignore is shorthand for a step flagged IgnoreResult.
func Ignore(name string, fn StepFunc) Step {
	return Step{Name: name, Run: fn, IgnoreResult: true}
}

// MultiResponse records a run: every executed response plus the selection.
type MultiResponse struct {
	Policy    Policy
	State     State
	Responses []response.Response
	primary   int
}

var _ Results = (*MultiResponse)(nil)

func newMultiResponse(p Policy) *MultiResponse {
	return &MultiResponse{Policy: p, State: StatePending, primary: -1}
}

// All returns a copy of the executed responses in order.
func (m *MultiResponse) All() []response.Response {
	out := make([]response.Response, len(m.Responses))
	copy(out, m.Responses)
	return out
}

// Last returns the most recently executed response.
func (m *MultiResponse) Last() (response.Response, bool) {
	if len(m.Responses) == 0 {
		return response.Response{}, false
	}
	return m.Responses[len(m.Responses)-1], true
}

// Primary returns the selected response so far.
func (m *MultiResponse) Primary() (response.Response, bool) {
	if m.primary < 0 {
		return response.Response{}, false
	}
	return m.Responses[m.primary], true
}

// Authorization returns the selected response's token, or "".
func (m *MultiResponse) Authorization() string {
	r, _ := m.Primary()
	return r.Authorization
}

// Executed is the number of steps that ran.
func (m *MultiResponse) Executed() int {
	return len(m.Responses)
}

// Response is the single response reported to the caller. An empty run
// reports success.
func (m *MultiResponse) Response() response.Response {
	if r, ok := m.Primary(); ok {
		return r
	}
	if r, ok := m.Last(); ok {
		return r
	}
	return response.Response{Success: true, Params: map[string]any{}}
}

// Success reports whether the selected response succeeded.
func (m *MultiResponse) Success() bool {
	return m.Response().Success
}

// Orchestrator runs step sequences. It holds no per-run state.
type Orchestrator struct {
	logger *zap.Logger
	tracer trace.Tracer
}

// NewOrchestrator creates an orchestrator; a nil logger disables logging.
func NewOrchestrator(logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		logger: logger,
		tracer: otel.Tracer("orchestrator"),
	}
}

// Run executes steps and returns only the reported response.
func (o *Orchestrator) Run(ctx context.Context, policy Policy, steps ...Step) response.Response {
	return o.Execute(ctx, policy, steps...).Response()
}

// Execute executes steps in order under policy.
func (o *Orchestrator) Execute(ctx context.Context, policy Policy, steps ...Step) *MultiResponse {
	ctx, span := o.tracer.Start(ctx, "Orchestrator.Execute",
		trace.WithAttributes(
			attribute.String("policy", policy.String()),
			attribute.Int("steps", len(steps)),
		))
	defer span.End()

	mr := newMultiResponse(policy)
	mr.State = StateRunning

	for i, step := range steps {
		name := step.Name
		if name == "" {
			name = fmt.Sprintf("step-%d", i)
		}

		res := o.invoke(ctx, name, step, mr)
		mr.Responses = append(mr.Responses, res)

		o.logger.Debug("step finished",
			zap.String("step", name),
			zap.Bool("success", res.Success),
			zap.Bool("ignore_result", step.IgnoreResult),
			zap.String("error_code", string(res.ErrorCode)))

		if step.IgnoreResult {
			continue
		}

		switch policy {
		case UseFirstResponse:
			if mr.primary < 0 {
				mr.primary = i
			}
		default:
			mr.primary = i
			if !res.Success {
				mr.State = StateAborted
			}
		}
		if mr.State == StateAborted {
			o.logger.Info("run aborted", zap.String("step", name), zap.Int("executed", i+1), zap.Int("steps", len(steps)))
			break
		}
	}

	if mr.primary < 0 && len(mr.Responses) > 0 {
		mr.primary = len(mr.Responses) - 1
	}
	if mr.State != StateAborted {
		mr.State = StateCompleted
	}

	span.SetAttributes(
		attribute.String("state", mr.State.String()),
		attribute.Int("executed", mr.Executed()),
		attribute.Bool("success", mr.Success()),
	)
	return mr
}

// invoke runs a single step, turning errors and panics into failing responses.
func (o *Orchestrator) invoke(ctx context.Context, name string, step Step, prior Results) (res response.Response) {
	ctx, span := o.tracer.Start(ctx, "step "+name)
	defer func() {
		if rec := recover(); rec != nil {
			o.logger.Error("step panicked", zap.String("step", name), zap.Any("panic", rec))
			res = response.Failure(fmt.Sprintf("step %s failed: %v", name, rec), response.ProcessingError,
				map[string]any{"panic": fmt.Sprint(rec)})
		}
		span.SetAttributes(attribute.Bool("success", res.Success))
		span.End()
	}()

	if step.Run == nil {
		return response.Failure(fmt.Sprintf("step %s has no operation", name), response.ProcessingError, nil)
	}

	r, err := step.Run(ctx, prior)
	if err != nil {
		span.RecordError(err)
		o.logger.Warn("step returned error", zap.String("step", name), zap.Error(err))
		return response.FromError(err)
	}
	return r.Normalized()
}
