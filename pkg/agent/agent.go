// Package agent runs fixed-sequence reasoning pipelines. Every stage makes
// one structured provider call and falls back to a stage-local default when
// the call fails or the response does not validate, so a pipeline always
// completes with a fully populated result.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/bio-nexus/backend/pkg/ai"
	"github.com/bio-nexus/backend/pkg/common"
	"github.com/bio-nexus/backend/pkg/logger"
)

// DefaultStageTimeout bounds a single stage.
const DefaultStageTimeout = 60 * time.Second

var errNoProvider = errors.New("no reasoning provider configured")

// Outcome is the tagged result of one stage: either a parsed value or a
// fallback default together with the raw response that was rejected.
type Outcome[T any] struct {
	Value  T
	Parsed bool
	Raw    string
	Err    error
}

func Parsed[T any](v T, raw string) Outcome[T] {
	return Outcome[T]{Value: v, Parsed: true, Raw: raw}
}

func Fallback[T any](def T, raw string, err error) Outcome[T] {
	return Outcome[T]{Value: def, Raw: raw, Err: err}
}

// StageReport records how a stage resolved.
type StageReport struct {
	Stage  string `json:"stage"`
	Parsed bool   `json:"parsed"`
	Raw    string `json:"raw,omitempty"`
	Error  string `json:"error,omitempty"`
}

func report[T any](stage string, o Outcome[T]) StageReport {
	r := StageReport{Stage: stage, Parsed: o.Parsed, Raw: o.Raw}
	if o.Err != nil {
		r.Error = o.Err.Error()
		logger.Debug("[Agent][Stage] Using default", "stage", stage, "err", o.Err)
	}
	return r
}

// Stage is one step of a pipeline over state S.
type Stage[S any] struct {
	Name string
	Run  func(ctx context.Context, s S) S
}

// Runner applies its stages strictly in order. Each stage runs under its
// own deadline.
type Runner[S any] struct {
	stages  []Stage[S]
	timeout time.Duration
}

func NewRunner[S any](timeout time.Duration, stages ...Stage[S]) *Runner[S] {
	if timeout <= 0 {
		timeout = DefaultStageTimeout
	}
	return &Runner[S]{stages: stages, timeout: timeout}
}

func (r *Runner[S]) Run(ctx context.Context, s S) S {
	for _, st := range r.stages {
		sCtx, cancel := context.WithTimeout(ctx, r.timeout)
		s = st.Run(sCtx, s)
		cancel()
	}
	return s
}

// Stages returns the stage names in execution order.
func (r *Runner[S]) Stages() []string {
	out := make([]string, len(r.stages))
	for i, st := range r.stages {
		out[i] = st.Name
	}
	return out
}

// call issues one structured request and validates the decoded value.
func call[T any](
	ctx context.Context,
	client ai.ReasoningClient,
	stage string,
	description string,
	prompt string,
	validate func(*T) error,
	def func() T,
) Outcome[T] {
	if client == nil {
		return Fallback(def(), "", errNoProvider)
	}

	var out T
	if err := client.GenerateCompletionWithFormat(ctx, stage, description, prompt, &out); err != nil {
		var pe *common.ParseError
		if errors.As(err, &pe) {
			return Fallback(def(), pe.Raw, err)
		}
		return Fallback(def(), "", err)
	}

	raw, _ := json.Marshal(out)
	if validate != nil {
		if err := validate(&out); err != nil {
			return Fallback(def(), string(raw), &common.ParseError{Stage: stage, Raw: string(raw), Err: err})
		}
	}
	return Parsed(out, string(raw))
}

func parsedCount(reports []StageReport) int {
	n := 0
	for _, r := range reports {
		if r.Parsed {
			n++
		}
	}
	return n
}

func inUnit(v float64) bool {
	return v >= 0 && v <= 1
}
