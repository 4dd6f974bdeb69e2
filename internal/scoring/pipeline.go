package scoring

import (
	"context"
	"fmt"
)

// PipelineStep represents a single step in the scoring pipeline.
type PipelineStep interface {
	Execute(ctx context.Context, state *PipelineState) error
}

// PipelineState holds the per-call state shared by all scoring steps.
// It is created for one batch and discarded afterwards.
type PipelineState struct {
	Table   Table
	Options Options

	Rows                []*Transaction
	DepartmentStats     map[string]DepartmentStats
	TimeFallbackApplied bool
	Summary             *Summary
}

// Step 1: NormalizeStep validates the schema and coerces raw cells.
type NormalizeStep struct{}

func (s *NormalizeStep) Execute(ctx context.Context, state *PipelineState) error {
	rows, degraded, err := normalize(ctx, state.Table, state.Options.TimeFallback)
	if err != nil {
		return err
	}
	state.Rows = rows
	state.TimeFallbackApplied = degraded
	return nil
}

// Step 2: DeriveFeaturesStep computes z-scores, calendar flags and vendor
// window counts, leaving Rows in canonical order.
type DeriveFeaturesStep struct{}

func (s *DeriveFeaturesStep) Execute(ctx context.Context, state *PipelineState) error {
	state.DepartmentStats = departmentStats(state.Rows)
	deriveFeatures(state.Rows, state.DepartmentStats)
	sortCanonical(state.Rows)
	countVendorWindows(state.Rows)
	return nil
}

// Step 3: ComposeRiskStep combines features into a score and band.
type ComposeRiskStep struct{}

func (s *ComposeRiskStep) Execute(ctx context.Context, state *PipelineState) error {
	for _, tx := range state.Rows {
		tx.RiskScore = RiskScore(tx.AmountZScore, tx.IsWeekend, tx.IsOddHour, tx.VendorCount7d)
		tx.RiskLabel = LabelFor(tx.RiskScore)
	}
	return nil
}

// Step 4: SummarizeStep aggregates the scored rows.
type SummarizeStep struct{}

func (s *SummarizeStep) Execute(ctx context.Context, state *PipelineState) error {
	state.Summary = Summarize(state.Rows)
	state.Summary.TimeFallbackApplied = state.TimeFallbackApplied
	return nil
}

// Pipeline executes a sequence of steps in order.
type Pipeline struct {
	steps []PipelineStep
}

// NewPipeline creates a new pipeline with the given steps.
func NewPipeline(steps ...PipelineStep) *Pipeline {
	return &Pipeline{steps: steps}
}

// Execute runs all steps in the pipeline sequentially, stopping at the first
// failure.
func (p *Pipeline) Execute(ctx context.Context, state *PipelineState) error {
	for i, step := range p.steps {
		if err := step.Execute(ctx, state); err != nil {
			return fmt.Errorf("scoring step %d failed: %w", i+1, err)
		}
	}
	return nil
}

// NewScoringPipeline creates the standard four-step scoring pipeline.
func NewScoringPipeline() *Pipeline {
	return NewPipeline(
		&NormalizeStep{},
		&DeriveFeaturesStep{},
		&ComposeRiskStep{},
		&SummarizeStep{},
	)
}

// Score runs the scoring pipeline over one batch. The table is only read;
// every returned row is freshly allocated, so concurrent calls on distinct
// tables share nothing.
func Score(ctx context.Context, table Table, opts Options) (*Result, error) {
	state := &PipelineState{Table: table, Options: opts}
	if err := NewScoringPipeline().Execute(ctx, state); err != nil {
		return nil, err
	}
	return &Result{Scored: state.Rows, Summary: state.Summary}, nil
}
