package colour

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rendis/weaver/internal/model"
)

func TestResolve_Categorical(t *testing.T) {
	spec := model.ColorSpec{
		Kind:    model.ColorKindCategorical,
		Lookup:  map[string]string{"steel": "#ff0000", "wood": "#00ff00"},
		Default: "#888888",
	}

	assert.Equal(t, "#ff0000", Resolve(spec, "steel", nil))
	assert.Equal(t, "#00ff00", Resolve(spec, "wood", nil))
	assert.Equal(t, "#888888", Resolve(spec, "plastic", nil))
}

func TestResolve_Quantitative(t *testing.T) {
	spec := model.ColorSpec{
		Kind:      model.ColorKindQuantitative,
		QuantAttr: "value",
		DomainMin: 0,
		DomainMax: 100,
		Palette:   []string{"#000000", "#ffffff"},
	}

	assert.Equal(t, "#000000", Resolve(spec, "", map[string]float64{"value": 0}))
	assert.Equal(t, "#ffffff", Resolve(spec, "", map[string]float64{"value": 100}))
	assert.Equal(t, "#7f7f7f", Resolve(spec, "", map[string]float64{"value": 50}))
}

func TestResolve_QuantitativeWithIntensity(t *testing.T) {
	intensity := "count"
	spec := model.ColorSpec{
		Kind:      model.ColorKindQuantitative,
		QuantAttr: "value",
		Intensity: &intensity,
		DomainMin: 0,
		DomainMax: 10,
		Palette:   []string{"#000000", "#ffffff"},
	}

	got := Resolve(spec, "", map[string]float64{"value": 20, "count": 2})
	assert.Equal(t, "#ffffff", got, "20/2=10 maxes out the domain")
}

func TestResolve_QuantitativeZeroIntensityFallsBack(t *testing.T) {
	intensity := "count"
	spec := model.ColorSpec{
		Kind:      model.ColorKindQuantitative,
		QuantAttr: "value",
		Intensity: &intensity,
		DomainMin: 0,
		DomainMax: 10,
		Palette:   []string{"#000000", "#ffffff"},
	}

	got := Resolve(spec, "", map[string]float64{"value": 5, "count": 0})
	assert.Equal(t, "#7f7f7f", got, "zero divisor should not divide, value stays 5 of 10")
}

func TestResolve_DegenerateDomainFallsBackToMidpoint(t *testing.T) {
	spec := model.ColorSpec{
		Kind:      model.ColorKindQuantitative,
		QuantAttr: "value",
		DomainMin: 5,
		DomainMax: 5,
		Palette:   []string{"#000000", "#ffffff"},
	}

	got := Resolve(spec, "", map[string]float64{"value": 5})
	assert.Equal(t, "#7f7f7f", got)
}

func TestResolve_EmptyPalette(t *testing.T) {
	spec := model.ColorSpec{Kind: model.ColorKindQuantitative, DomainMin: 0, DomainMax: 1}
	assert.Equal(t, "#000000", Resolve(spec, "", map[string]float64{}))
}

func TestResolve_SinglePalette(t *testing.T) {
	spec := model.ColorSpec{Kind: model.ColorKindQuantitative, DomainMin: 0, DomainMax: 1, Palette: []string{"#123456"}}
	assert.Equal(t, "#123456", Resolve(spec, "", map[string]float64{"value": 0.5}))
}

func TestResolve_ThreeStopPalette(t *testing.T) {
	spec := model.ColorSpec{
		Kind:      model.ColorKindQuantitative,
		QuantAttr: "value",
		DomainMin: 0,
		DomainMax: 1,
		Palette:   []string{"#000000", "#808080", "#ffffff"},
	}
	assert.Equal(t, "#808080", Resolve(spec, "", map[string]float64{"value": 0.5}))
}

func TestResolve_UnknownKind(t *testing.T) {
	assert.Equal(t, "#000000", Resolve(model.ColorSpec{}, "x", nil))
}
