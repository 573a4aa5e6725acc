// Package colour implements spec.md §4.7: categorical lookup and
// quantitative palette interpolation for a compiled link's display colour.
// No palette library is used — palettes are literal hex colour lists
// supplied by the DisplaySpec, per spec.md §1's Non-goals.
package colour

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/rendis/weaver/internal/model"
)

// Resolve computes a link's colour from spec, given the resolved attribute
// value used for categorical lookup (attrValue) and the aggregated measure
// data used for quantitative interpolation.
func Resolve(spec model.ColorSpec, attrValue string, data map[string]float64) string {
	switch spec.Kind {
	case model.ColorKindCategorical:
		return categorical(spec, attrValue)
	case model.ColorKindQuantitative:
		return quantitative(spec, data)
	default:
		return "#000000"
	}
}

func categorical(spec model.ColorSpec, value string) string {
	if hex, ok := spec.Lookup[value]; ok {
		return hex
	}
	return spec.Default
}

// quantitative normalises the chosen attribute's value into [0,1] over
// spec's domain (optionally dividing by an intensity measure first),
// clamps, and linearly interpolates between the two nearest palette
// anchors. Degenerate domains and zero intensity divisors fall back rather
// than raising, per spec.md §7's "degenerate numerics" error class.
func quantitative(spec model.ColorSpec, data map[string]float64) string {
	value := data[spec.QuantAttr]
	if spec.Intensity != nil {
		if div := data[*spec.Intensity]; div != 0 {
			value /= div
		}
	}

	t := normalize(value, spec.DomainMin, spec.DomainMax)
	return interpolate(spec.Palette, t)
}

func normalize(value, min, max float64) float64 {
	if max <= min {
		return 0.5
	}
	t := (value - min) / (max - min)
	if t < 0 {
		return 0
	}
	if t > 1 {
		return 1
	}
	return t
}

// interpolate linearly blends the two palette anchors t (in [0,1]) falls
// between, truncating each RGB channel with floor rather than rounding, so
// the result is bit-identical to other language implementations of the
// same algorithm (spec.md §9).
func interpolate(palette []string, t float64) string {
	switch len(palette) {
	case 0:
		return "#000000"
	case 1:
		return palette[0]
	}

	k := len(palette)
	scaled := t * float64(k-1)
	lo := int(math.Floor(scaled))
	if lo >= k-1 {
		lo = k - 2
	}
	hi := lo + 1
	frac := scaled - float64(lo)

	r0, g0, b0 := parseHex(palette[lo])
	r1, g1, b1 := parseHex(palette[hi])

	r := math.Floor(lerp(r0, r1, frac))
	g := math.Floor(lerp(g0, g1, frac))
	b := math.Floor(lerp(b0, b1, frac))

	return fmt.Sprintf("#%02x%02x%02x", clampByte(r), clampByte(g), clampByte(b))
}

func lerp(a, b, t float64) float64 { return a + (b-a)*t }

func clampByte(v float64) int {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return int(v)
}

func parseHex(hex string) (r, g, b float64) {
	hex = strings.TrimPrefix(hex, "#")
	if len(hex) != 6 {
		return 0, 0, 0
	}
	ri, _ := strconv.ParseInt(hex[0:2], 16, 32)
	gi, _ := strconv.ParseInt(hex[2:4], 16, 32)
	bi, _ := strconv.ParseInt(hex[4:6], 16, 32)
	return float64(ri), float64(gi), float64(bi)
}
