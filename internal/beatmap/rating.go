package beatmap

import (
	"fmt"
	"math"
)

// Mods is a bit set of gameplay modifiers.
type Mods uint32

// NoMods selects the unmodified difficulty.
const NoMods Mods = 0

// RatingCalculator computes a star rating for a parsed descriptor.
type RatingCalculator interface {
	Calculate(d *Descriptor, mods Mods) (float64, error)
}

// RatingFunc adapts a function to RatingCalculator.
type RatingFunc func(d *Descriptor, mods Mods) (float64, error)

func (f RatingFunc) Calculate(d *Descriptor, mods Mods) (float64, error) { return f(d, mods) }

// roundRating rounds to two decimals, halves away from zero. Non-finite
// values have no rating.
func roundRating(value float64) (float64, bool) {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, false
	}
	return math.Round(value*100) / 100, true
}

func calculateSafely(calc RatingCalculator, d *Descriptor) (rating float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("rating calculator panic: %v", r)
		}
	}()
	return calc.Calculate(d, NoMods)
}
