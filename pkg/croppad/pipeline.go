package croppad

import (
	"fmt"

	"github.com/pzaffino/MONAI/pkg/sampling"
)

// Pipeline chains dictionary stages in order. Patch samplers fan each
// sample out, so one input sample can come out as many.
type Pipeline struct {
	stages []DictTransform
}

// NewPipeline builds a pipeline over the given stages.
func NewPipeline(stages ...DictTransform) *Pipeline {
	return &Pipeline{stages: stages}
}

// Stages returns the stages in application order.
func (p *Pipeline) Stages() []DictTransform {
	out := make([]DictTransform, len(p.stages))
	copy(out, p.stages)
	return out
}

// Apply runs a sample through every stage, fanning out wherever a stage
// produces several samples.
func (p *Pipeline) Apply(s Sample) ([]Sample, error) {
	current := []Sample{s}
	for i, stage := range p.stages {
		next := make([]Sample, 0, len(current))
		for _, cs := range current {
			outs, err := stage.Apply(cs)
			if err != nil {
				return nil, fmt.Errorf("failed to apply stage %d: %v", i, err)
			}
			next = append(next, outs...)
		}
		current = next
	}
	return current, nil
}

// Inverse undoes the stages in reverse order on one output sample. Every
// stage must be invertible.
func (p *Pipeline) Inverse(s Sample) (Sample, error) {
	out := s
	for i := len(p.stages) - 1; i >= 0; i-- {
		inv, ok := p.stages[i].(InvertibleDictTransform)
		if !ok {
			return nil, fmt.Errorf("stage %d (%T) is not invertible", i, p.stages[i])
		}
		var err error
		out, err = inv.Inverse(out)
		if err != nil {
			return nil, fmt.Errorf("failed to invert stage %d: %v", i, err)
		}
	}
	return out, nil
}

// Seed derives one sub-seed per random stage from a master seed.
// Reseeding with the same value reproduces every draw of the pipeline.
func (p *Pipeline) Seed(seed uint64) {
	master := sampling.NewState(seed)
	for _, stage := range p.stages {
		if s, ok := stage.(Seedable); ok {
			s.Seed(master.SubSeed())
		}
	}
}
