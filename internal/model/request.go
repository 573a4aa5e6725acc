package model

// CompileRequest bundles a SankeyDefinition with the measure and display
// configuration that shape a WeaverSpec's Measures/Display fields but aren't
// themselves part of the graph structure SankeyDefinition describes.
type CompileRequest struct {
	Definition *SankeyDefinition
	Measures   []MeasureSpec
	Display    DisplaySpec
}
