package optimize

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrInvalidBounds is returned when the search interval is empty or not finite.
	ErrInvalidBounds = errors.New("invalid search bounds")
	// ErrInvalidConfig is returned for population or weight settings DE cannot run with.
	ErrInvalidConfig = errors.New("invalid optimizer config")
	// ErrNoFiniteValue is returned when the objective was never finite.
	ErrNoFiniteValue = errors.New("objective has no finite value in bounds")
)

// Scale selects the coordinate the population lives in.
type Scale int

const (
	// ScaleLinear searches the domain directly.
	ScaleLinear Scale = iota
	// ScaleLog searches u in [0, ln(1+Upper-Lower)] with x = Lower + e^u - 1, giving
	// every order of magnitude of a wide domain the same share of the population.
	ScaleLog
)

// ParseScale maps "linear" and "log" to a Scale.
func ParseScale(value string) (Scale, error) {
	switch value {
	case "linear":
		return ScaleLinear, nil
	case "log", "":
		return ScaleLog, nil
	default:
		return 0, fmt.Errorf("%w: unknown scale %q", ErrInvalidConfig, value)
	}
}

func (s Scale) String() string {
	if s == ScaleLinear {
		return "linear"
	}
	return "log"
}

// Config controls a differential evolution run.
type Config struct {
	Lower float64
	Upper float64
	Scale Scale

	// Population is the number of candidates per generation (NP).
	Population int
	// WeightMin and WeightMax bound the dithered differential weight F.
	WeightMin float64
	WeightMax float64

	// MaxGenerations caps the run; hitting it returns a non-converged result.
	MaxGenerations int
	// StallGenerations is how many generations the best value may improve by
	// no more than Tolerance (relative) before the run counts as converged.
	StallGenerations int
	Tolerance        float64

	// X0 is an optional starting point injected into the first generation.
	X0    float64
	HasX0 bool
}

// DefaultConfig returns the settings used for round-trip search: a domain far
// larger than any pool could absorb, 40 candidates, and a 1e-8 tolerance.
func DefaultConfig() Config {
	return Config{
		Lower:            0,
		Upper:            1e22,
		Scale:            ScaleLog,
		Population:       40,
		WeightMin:        0.5,
		WeightMax:        1.0,
		MaxGenerations:   1000,
		StallGenerations: 30,
		Tolerance:        1e-8,
	}
}

func (c Config) validate() error {
	if math.IsNaN(c.Lower) || math.IsNaN(c.Upper) || math.IsInf(c.Lower, 0) || math.IsInf(c.Upper, 0) {
		return fmt.Errorf("%w: [%v, %v]", ErrInvalidBounds, c.Lower, c.Upper)
	}
	if c.Lower > c.Upper {
		return fmt.Errorf("%w: lower %v > upper %v", ErrInvalidBounds, c.Lower, c.Upper)
	}
	if c.Population < 4 {
		return fmt.Errorf("%w: population %d < 4", ErrInvalidConfig, c.Population)
	}
	if c.WeightMin <= 0 || c.WeightMax > 2 || c.WeightMin > c.WeightMax {
		return fmt.Errorf("%w: weight range [%v, %v]", ErrInvalidConfig, c.WeightMin, c.WeightMax)
	}
	if c.MaxGenerations <= 0 {
		return fmt.Errorf("%w: max generations %d", ErrInvalidConfig, c.MaxGenerations)
	}
	if c.StallGenerations <= 0 {
		return fmt.Errorf("%w: stall generations %d", ErrInvalidConfig, c.StallGenerations)
	}
	if c.Tolerance < 0 || math.IsNaN(c.Tolerance) {
		return fmt.Errorf("%w: tolerance %v", ErrInvalidConfig, c.Tolerance)
	}
	return nil
}

// searchSpace maps between the domain and the population coordinate.
type searchSpace struct {
	scale Scale
	lower float64
	lo    float64
	hi    float64
}

func newSearchSpace(c Config) searchSpace {
	if c.Scale == ScaleLog {
		return searchSpace{scale: ScaleLog, lower: c.Lower, lo: 0, hi: math.Log1p(c.Upper - c.Lower)}
	}
	return searchSpace{scale: ScaleLinear, lower: c.Lower, lo: c.Lower, hi: c.Upper}
}

func (s searchSpace) toDomain(u float64) float64 {
	if s.scale == ScaleLog {
		return s.lower + math.Expm1(u)
	}
	return u
}

func (s searchSpace) fromDomain(x float64) float64 {
	if s.scale == ScaleLog {
		return math.Log1p(x - s.lower)
	}
	return x
}

func (s searchSpace) contains(u float64) bool {
	return u >= s.lo && u <= s.hi
}
