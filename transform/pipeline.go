// Package transform lowers raw rules into the subset of features an engine
// understands. Every stage is a pure function of rule and descriptor.
package transform

import (
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"cvstyle/capability"
	"cvstyle/common"
	"cvstyle/rules"
)

// Stage is a position in the per rule lowering sequence.
type Stage int

const (
	StagePending Stage = iota
	StageLogicalBoxLowered
	StageColorLowered
	StageFontFeatureLowered
	StageFinal
)

func (s Stage) String() string {
	switch s {
	case StagePending:
		return "pending"
	case StageLogicalBoxLowered:
		return "logical-box-lowered"
	case StageColorLowered:
		return "color-lowered"
	case StageFontFeatureLowered:
		return "font-feature-lowered"
	case StageFinal:
		return "final"
	}
	return "unknown"
}

// Func rewrites single rule for engine.
type Func func(rules.RawRule, capability.Descriptor) (rules.RawRule, error)

// Step is a lowering stage. Steps with Feature set are skipped when engine
// supports the feature natively, steps without Feature always run.
type Step struct {
	Stage   Stage
	Feature common.Feature
	Fn      Func
}

// DefaultSteps returns standard lowering sequence. Order matters: logical box
// lowering goes first so later stages see physical properties.
func DefaultSteps() []Step {
	return []Step{
		{Stage: StageLogicalBoxLowered, Feature: common.FeatureLogicalBox, Fn: LowerLogicalBox},
		{Stage: StageColorLowered, Feature: common.FeatureColorMix, Fn: LowerColor},
		{Stage: StageFontFeatureLowered, Feature: common.FeatureFontFeatures, Fn: LowerFontFeatures},
		{Stage: StageFinal, Fn: Finalize},
	}
}

// Pipeline runs steps over rules.
type Pipeline struct {
	log   *zap.Logger
	steps []Step
}

// New creates pipeline with given steps, DefaultSteps when none given.
func New(log *zap.Logger, steps ...Step) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	if len(steps) == 0 {
		steps = DefaultSteps()
	}
	return &Pipeline{log: log.Named("transform"), steps: steps}
}

// Run lowers single rule.
func (p *Pipeline) Run(r rules.RawRule, d capability.Descriptor) (rules.RawRule, error) {
	if err := p.checkCoverage(r, d); err != nil {
		return rules.RawRule{}, err
	}

	stage := StagePending
	for _, step := range p.steps {
		if step.Feature != "" && d.Supports(step.Feature) {
			continue
		}
		if step.Feature == common.FeatureFontFeatures {
			p.logOverridden(r)
		}
		out, err := step.Fn(r, d)
		if err != nil {
			return rules.RawRule{}, err
		}
		r, stage = out, step.Stage
	}
	p.log.Debug("Rule lowered",
		zap.Stringer("engine", d.Engine()), zap.String("selector", r.Selector()), zap.Stringer("stage", stage))
	return r, nil
}

func (p *Pipeline) logOverridden(r rules.RawRule) {
	v, ok := r.Get(rules.FontFeatureSettings)
	if !ok {
		return
	}
	if _, dropped := resolveFeatures(v.Features); len(dropped) > 0 {
		p.log.Debug("Conflicting font features, later ones win",
			zap.String("selector", r.Selector()), zap.Strings("dropped", dropped))
	}
}

// RunAll lowers rules in order. All failures are reported together, no rules
// are returned when any of them fails.
func (p *Pipeline) RunAll(rs []rules.RawRule, d capability.Descriptor) ([]rules.RawRule, error) {
	out := make([]rules.RawRule, 0, len(rs))
	var errs error
	for _, r := range rs {
		lowered, err := p.Run(r, d)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		out = append(out, lowered)
	}
	if errs != nil {
		return nil, errs
	}
	return out, nil
}

// checkCoverage makes sure every feature rule uses is either native to the
// engine or has a step lowering it.
func (p *Pipeline) checkCoverage(r rules.RawRule, d capability.Descriptor) error {
	for _, f := range Uses(r) {
		if d.Supports(f) {
			continue
		}
		covered := false
		for _, step := range p.steps {
			if step.Feature == f {
				covered = true
				break
			}
		}
		if !covered {
			return &UnsupportedFeatureError{Engine: d.Engine(), Feature: f, Selector: r.Selector(), Detail: "no lowering stage registered"}
		}
	}
	return nil
}

// Uses lists features rule relies on.
func Uses(r rules.RawRule) []common.Feature {
	var logical, mix, features bool
	for _, prop := range r.Properties() {
		v, _ := r.Get(prop)
		logical = logical || prop.IsLogical()
		mix = mix || v.Kind == rules.KindColorMix
		features = features || prop == rules.FontFeatureSettings
	}
	var out []common.Feature
	if logical {
		out = append(out, common.FeatureLogicalBox)
	}
	if mix {
		out = append(out, common.FeatureColorMix)
	}
	if features {
		out = append(out, common.FeatureFontFeatures)
	}
	return out
}
