package prediction

import "math"

// Display holds the presentation values layered on top of the scorer output.
type Display struct {
	RiskScore        int
	Confidence       int
	TimeHorizonHours int
}

// Fluctuation turns the deterministic score into the displayed figures.
type Fluctuation func(score int) Display

// JitterFluctuation nudges the score by up to ±2.5 points, confidence around
// 85 by up to ±5, and picks a 24 to 72 hour horizon.
func JitterFluctuation(rng RandomSource) Fluctuation {
	return func(score int) Display {
		shown := math.Round(float64(score) + (rng.Float64()-0.5)*5)
		shown = math.Max(0, math.Min(100, shown))
		return Display{
			RiskScore:        int(shown),
			Confidence:       int(math.Round(85 + (rng.Float64()-0.5)*10)),
			TimeHorizonHours: 24 + int(math.Round(rng.Float64()*48)),
		}
	}
}

// NoFluctuation publishes the scorer output untouched.
func NoFluctuation(score int) Display {
	return Display{RiskScore: score, Confidence: 85, TimeHorizonHours: 48}
}
