// Package capability describes what each rendering engine understands
// natively. Descriptors are static and safe to share.
package capability

import (
	"fmt"
	"maps"

	"cvstyle/common"
	"cvstyle/units"
)

// Descriptor declares native features of one engine.
type Descriptor struct {
	engine     common.Engine
	supports   map[common.Feature]bool
	nativeUnit units.Unit
	direction  common.Direction
}

func (d Descriptor) Engine() common.Engine { return d.engine }

// Supports reports whether engine understands feature without lowering.
func (d Descriptor) Supports(f common.Feature) bool { return d.supports[f] }

// NativeUnit is the length unit engine wants, units.None means lengths are
// passed through unconverted.
func (d Descriptor) NativeUnit() units.Unit { return d.nativeUnit }

// Direction is the inline base direction used to map logical properties.
func (d Descriptor) Direction() common.Direction { return d.direction }

// WithDirection returns descriptor copy with different inline direction.
func (d Descriptor) WithDirection(dir common.Direction) Descriptor {
	out := d
	out.supports = maps.Clone(d.supports)
	out.direction = dir
	return out
}

func (d Descriptor) String() string {
	return fmt.Sprintf("%s(unit=%q dir=%s logical-box=%t color-mix=%t font-features=%t)",
		d.engine, d.nativeUnit, d.direction,
		d.Supports(common.FeatureLogicalBox), d.Supports(common.FeatureColorMix), d.Supports(common.FeatureFontFeatures))
}

var table = map[common.Engine]Descriptor{
	common.EngineInteractivePreview: {
		engine: common.EngineInteractivePreview,
		supports: map[common.Feature]bool{
			common.FeatureLogicalBox:   true,
			common.FeatureColorMix:     true,
			common.FeatureFontFeatures: true,
		},
		nativeUnit: units.None,
		direction:  common.DirectionLtr,
	},
	common.EnginePrintRaster: {
		engine:     common.EnginePrintRaster,
		supports:   map[common.Feature]bool{},
		nativeUnit: units.Px,
		direction:  common.DirectionLtr,
	},
	common.EngineWordProcessing: {
		engine:     common.EngineWordProcessing,
		supports:   map[common.Feature]bool{},
		nativeUnit: units.Twip,
		direction:  common.DirectionLtr,
	},
}

// Lookup returns descriptor for engine.
func Lookup(e common.Engine) (Descriptor, error) {
	d, ok := table[e]
	if !ok {
		return Descriptor{}, fmt.Errorf("no capability descriptor for engine %q", e)
	}
	return d, nil
}

// All returns descriptors for every known engine in enum order.
func All() []Descriptor {
	out := make([]Descriptor, 0, len(table))
	for _, e := range common.EngineValues() {
		out = append(out, table[e])
	}
	return out
}
