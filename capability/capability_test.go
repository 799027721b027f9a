package capability_test

import (
	"testing"

	"cvstyle/capability"
	"cvstyle/common"
	"cvstyle/units"
)

func TestLookup(t *testing.T) {
	tests := []struct {
		engine  common.Engine
		unit    units.Unit
		logical bool
	}{
		{common.EngineInteractivePreview, units.None, true},
		{common.EnginePrintRaster, units.Px, false},
		{common.EngineWordProcessing, units.Twip, false},
	}
	for _, tt := range tests {
		t.Run(tt.engine.String(), func(t *testing.T) {
			d, err := capability.Lookup(tt.engine)
			if err != nil {
				t.Fatalf("Lookup() error = %v", err)
			}
			if d.Engine() != tt.engine {
				t.Errorf("Engine() = %s", d.Engine())
			}
			if d.NativeUnit() != tt.unit {
				t.Errorf("NativeUnit() = %q, want %q", d.NativeUnit(), tt.unit)
			}
			if d.Supports(common.FeatureLogicalBox) != tt.logical {
				t.Errorf("Supports(logical-box) = %v", d.Supports(common.FeatureLogicalBox))
			}
			if d.Direction() != common.DirectionLtr {
				t.Errorf("Direction() = %s", d.Direction())
			}
		})
	}
}

func TestLookupUnknown(t *testing.T) {
	if _, err := capability.Lookup("teletype"); err == nil {
		t.Error("expected error")
	}
}

func TestWithDirectionDoesNotLeak(t *testing.T) {
	d, _ := capability.Lookup(common.EnginePrintRaster)
	rtl := d.WithDirection(common.DirectionRtl)
	if rtl.Direction() != common.DirectionRtl {
		t.Error("copy direction not changed")
	}
	again, _ := capability.Lookup(common.EnginePrintRaster)
	if again.Direction() != common.DirectionLtr {
		t.Error("shared descriptor was modified")
	}
}

func TestAll(t *testing.T) {
	if n := len(capability.All()); n != len(common.EngineValues()) {
		t.Errorf("All() returned %d descriptors", n)
	}
}
