package process

import (
	"context"
	"errors"
	"fmt"

	"github.com/webharvest/harvester/pkg/models"
)

// ErrPipelineFailed marks a processing run that could not complete.
var ErrPipelineFailed = errors.New("process: pipeline failed")

// Report aggregates the stats of one pipeline run.
type Report struct {
	Validation    ValidationStats
	Normalization Stats
}

// Pipeline runs the canonical stage order: validate, then normalize
// (which folds in currency annotation, deduplication, and the optional
// AI enrichment).
type Pipeline struct {
	normalizer *Normalizer
}

// NewPipeline creates a Pipeline around the given normalizer.
func NewPipeline(normalizer *Normalizer) *Pipeline {
	return &Pipeline{normalizer: normalizer}
}

// Run processes records through every stage. Cancellation between
// stages aborts the run; per-record problems only shrink the output.
func (p *Pipeline) Run(ctx context.Context, records []models.Record) ([]models.Record, Report, error) {
	var report Report

	if err := ctx.Err(); err != nil {
		return nil, report, fmt.Errorf("%w: %v", ErrPipelineFailed, err)
	}

	valid, vstats := Validate(records)
	report.Validation = vstats

	if err := ctx.Err(); err != nil {
		return nil, report, fmt.Errorf("%w: %v", ErrPipelineFailed, err)
	}

	out, nstats := p.normalizer.Normalize(ctx, valid)
	report.Normalization = nstats

	return out, report, nil
}
