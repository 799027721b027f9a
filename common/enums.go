// Package common keeps enums shared by configuration and the compilation
// packages. They live apart from config so leaf packages do not have to
// import the whole configuration machinery.
package common

//go:generate go tool go-enum --marshal --names --values

// Target rendering engine a stylesheet is compiled for.
// ENUM(interactive-preview, print-raster, word-processing)
type Engine string

// Stylesheet feature an engine may or may not understand natively.
// ENUM(logical-box, color-mix, font-features)
type Feature string

// Writing direction used when lowering logical box properties.
// ENUM(ltr, rtl)
type Direction string

// UsesCSS reports whether engine consumes CSS text.
func (e Engine) UsesCSS() bool {
	return e == EngineInteractivePreview || e == EnginePrintRaster
}

// Ext returns the file extension of the stylesheet payload for the engine.
func (e Engine) Ext() string {
	switch e {
	case EngineInteractivePreview, EnginePrintRaster:
		return ".css"
	case EngineWordProcessing:
		return ".xml"
	default:
		// this should never happen
		panic("unsupported engine requested")
	}
}
