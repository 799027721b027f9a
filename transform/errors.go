package transform

import (
	"errors"
	"fmt"

	"cvstyle/common"
)

// ErrUnsupportedFeatureNoFallback is returned when rule uses a feature
// engine does not support and there is no way to lower it.
var ErrUnsupportedFeatureNoFallback = errors.New("unsupported feature without fallback")

// UnsupportedFeatureError carries details of ErrUnsupportedFeatureNoFallback.
type UnsupportedFeatureError struct {
	Engine   common.Engine
	Feature  common.Feature
	Selector string
	Detail   string
}

func (e *UnsupportedFeatureError) Error() string {
	msg := fmt.Sprintf("%s: engine %s cannot express %s in %s", ErrUnsupportedFeatureNoFallback, e.Engine, e.Feature, e.Selector)
	if e.Detail != "" {
		msg += " (" + e.Detail + ")"
	}
	return msg
}

func (e *UnsupportedFeatureError) Is(target error) bool {
	return target == ErrUnsupportedFeatureNoFallback
}
