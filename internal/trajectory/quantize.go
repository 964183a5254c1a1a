package trajectory

import (
	"math"

	"github.com/flickfooty/backend/internal/protocol"
)

// DefaultPrecision is the number of decimals kept per body field.
const DefaultPrecision = 2

func round(v float64, precision int) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	p := math.Pow10(precision)
	return math.Round(v*p) / p
}

// Quantize rounds every field of every body to precision decimals. The
// input map is not modified.
func Quantize(bodies map[string]protocol.BodyState, precision int) map[string]protocol.BodyState {
	out := make(map[string]protocol.BodyState, len(bodies))
	for id, b := range bodies {
		out[id] = protocol.BodyState{
			X:     round(b.X, precision),
			Y:     round(b.Y, precision),
			Angle: round(b.Angle, precision),
			VX:    round(b.VX, precision),
			VY:    round(b.VY, precision),
		}
	}
	return out
}
