// Package emit serializes lowered rules into engine native stylesheets.
package emit

import (
	"fmt"

	"go.uber.org/zap"

	"cvstyle/common"
	"cvstyle/rules"
)

// Payload is a compiled stylesheet ready for its consumer.
type Payload struct {
	Engine    common.Engine
	MediaType string
	Name      string
	Data      []byte
}

// Emitter serializes final stage rules of one engine. Rules are emitted in
// the order given, identical input produces identical bytes.
type Emitter interface {
	Emit(rs []rules.RawRule, tokensKey string) (Payload, error)
}

// For returns emitter for engine.
func For(e common.Engine, log *zap.Logger) (Emitter, error) {
	if log == nil {
		log = zap.NewNop()
	}
	switch e {
	case common.EngineInteractivePreview, common.EnginePrintRaster:
		return &CSS{engine: e, log: log.Named("css-emitter")}, nil
	case common.EngineWordProcessing:
		return &Word{log: log.Named("word-emitter")}, nil
	}
	return nil, fmt.Errorf("no emitter for engine %q", e)
}
