package emit

import (
	"fmt"

	"go.uber.org/zap"

	"cvstyle/common"
	"cvstyle/css"
	"cvstyle/rules"
)

// CSS writes stylesheet text for browser like engines.
type CSS struct {
	engine common.Engine
	log    *zap.Logger
}

func (e *CSS) Emit(rs []rules.RawRule, tokensKey string) (Payload, error) {
	sheet := &css.Stylesheet{}
	sheet.AddComment(fmt.Sprintf("%s stylesheet, tokens %s", e.engine, tokensKey))

	for _, r := range rs {
		props := make(map[string]css.Value, r.Len())
		for _, p := range r.Properties() {
			v, _ := r.Get(p)
			props[string(p)] = css.Raw(v.String())
		}
		if r.IsPage() {
			if e.engine != common.EnginePrintRaster {
				e.log.Debug("Page rule is only meaningful for print, skipping", zap.String("group", r.Group()))
				continue
			}
			sheet.AddPage(&css.PageRule{Properties: props})
			continue
		}
		rule := css.NewRule(r.Selector())
		rule.Properties = props
		sheet.AddRule(rule)
	}

	return Payload{
		Engine:    e.engine,
		MediaType: "text/css",
		Name:      e.engine.String() + e.engine.Ext(),
		Data:      []byte(sheet.String()),
	}, nil
}
