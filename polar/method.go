package polar

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Method evaluates the polarization of one spectral element.
// e and a hold the canonical per-exposure fluxes of the E and A beams
// (length 2 or 4); ve and va hold their variances.
type Method interface {
	Name() string
	// Code is the legacy numeric identifier (1 Difference, 2 Ratio,
	// 3 DifferenceWithBeamSwap).
	Code() int
	Element(e, a, ve, va []float64) ElementPolarization
}

// ElementPolarization is the per-element output of a Method. The null
// fields are NaN when fewer than four exposures were combined.
type ElementPolarization struct {
	Degree         float64
	DegreeVariance float64
	FirstNull      float64
	SecondNull     float64
}

// Difference implements the difference method (Bagnulo et al. 2009, eq. 12-20).
type Difference struct{}

func (Difference) Name() string { return MethodDifference }
func (Difference) Code() int    { return 1 }

func (Difference) Element(e, a, ve, va []float64) ElementPolarization {
	var g, gv [4]float64
	n := len(e)
	for i := 0; i < n; i++ {
		g[i], gv[i] = normalizedDifference(e[i], a[i], ve[i], va[i])
	}
	return combineDifferences(g[:n], gv[:n])
}

// Ratio implements the ratio method (Bagnulo et al. 2009, eq. 23-26).
type Ratio struct{}

func (Ratio) Name() string { return MethodRatio }
func (Ratio) Code() int    { return 2 }

func (Ratio) Element(e, a, ve, va []float64) ElementPolarization {
	var r [4]float64
	var logVariance float64
	n := len(e)
	for i := 0; i < n; i++ {
		r[i] = ratio(e[i], a[i])
		logVariance += relativeVariance(e[i], ve[i]) + relativeVariance(a[i], va[i])
	}

	pairs := float64(n / 2)
	exponent := 1.0 / (2.0 * pairs)
	out := ElementPolarization{FirstNull: math.NaN(), SecondNull: math.NaN()}

	var bigR float64
	r1 := ratio(r[0], r[1])
	if n == 2 {
		bigR = math.Pow(r1, exponent)
	} else {
		r2 := ratio(r[2], r[3])
		r1s := ratio(r[0], r[3])
		r2s := ratio(r[2], r[1])

		bigR = math.Pow(r1*r2, exponent)

		rn1 := math.Pow(ratio(r1, r2), exponent)
		out.FirstNull = (rn1 - 1.0) / (rn1 + 1.0)

		rn2 := math.Pow(ratio(r1s, r2s), exponent)
		out.SecondNull = (rn2 - 1.0) / (rn2 + 1.0)
	}
	out.Degree = (bigR - 1.0) / (bigR + 1.0)

	// P = tanh(ln R / 2), so dP/d(ln R) = (1 - P^2) / 2.
	slope := (1.0 - out.Degree*out.Degree) / 2.0
	out.DegreeVariance = slope * slope * exponent * exponent * logVariance
	return out
}

// DifferenceWithBeamSwap is the difference method with G formed across the
// two exposures of a pair instead of across the two beams of one exposure.
type DifferenceWithBeamSwap struct{}

func (DifferenceWithBeamSwap) Name() string { return MethodDifferenceWithBeamSwap }
func (DifferenceWithBeamSwap) Code() int    { return 3 }

func (DifferenceWithBeamSwap) Element(e, a, ve, va []float64) ElementPolarization {
	var g, gv [4]float64
	n := len(e)
	for pair := 0; pair < n/2; pair++ {
		i, j := 2*pair, 2*pair+1
		g[i], gv[i] = normalizedDifference(e[i], e[j], ve[i], ve[j])
		g[j], gv[j] = normalizedDifference(a[i], a[j], va[i], va[j])
	}
	return combineDifferences(g[:n], gv[:n])
}

// normalizedDifference returns (x - y) / (x + y) and its propagated variance.
func normalizedDifference(x, y, vx, vy float64) (float64, float64) {
	sum := x + y
	if sum == 0 {
		return math.NaN(), math.NaN()
	}
	sum2 := sum * sum
	return (x - y) / sum, 4.0 * (y*y*vx + x*x*vy) / (sum2 * sum2)
}

// combineDifferences turns the per-exposure G values into P/I and, for four
// exposures, the two null spectra. Exposures 2 and 4 are exchanged for the
// second null.
func combineDifferences(g, gv []float64) ElementPolarization {
	pairs := float64(len(g) / 2)

	var varianceSum float64
	for _, v := range gv {
		varianceSum += v
	}
	out := ElementPolarization{
		DegreeVariance: varianceSum / ((2.0 * pairs) * (2.0 * pairs)),
		FirstNull:      math.NaN(),
		SecondNull:     math.NaN(),
	}

	d1 := g[0] - g[1]
	if len(g) == 2 {
		out.Degree = d1 / (2.0 * pairs)
		return out
	}
	d2 := g[2] - g[3]

	d1s := g[0] - g[3]
	d2s := g[2] - g[1]

	out.Degree = (d1 + d2) / (2.0 * pairs)
	out.FirstNull = (d1 - d2) / (2.0 * pairs)
	out.SecondNull = (d1s - d2s) / (2.0 * pairs)
	return out
}

func ratio(x, y float64) float64 {
	if y == 0 {
		return math.NaN()
	}
	return x / y
}

// relativeVariance is the variance of ln(x).
func relativeVariance(x, v float64) float64 {
	if v == 0 {
		return 0
	}
	if x == 0 {
		return math.NaN()
	}
	return v / (x * x)
}

// Registered method names.
const (
	MethodDifference             = "difference"
	MethodRatio                  = "ratio"
	MethodDifferenceWithBeamSwap = "difference-beam-swap"
)

var methodRegistry = map[string]func() Method{
	MethodDifference:             func() Method { return Difference{} },
	MethodRatio:                  func() Method { return Ratio{} },
	MethodDifferenceWithBeamSwap: func() Method { return DifferenceWithBeamSwap{} },
}

// methodAliases accepts the spellings used by older pipeline scripts.
var methodAliases = map[string]string{
	"differencewithbeamswap":    MethodDifferenceWithBeamSwap,
	"differencewithbeamswapped": MethodDifferenceWithBeamSwap,
	"beam-swap":                 MethodDifferenceWithBeamSwap,
}

// ValidMethodNames returns the registered method names, sorted.
func ValidMethodNames() []string {
	names := make([]string, 0, len(methodRegistry))
	for name := range methodRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewMethod creates a Method by name or legacy numeric code.
func NewMethod(name string) (Method, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if code, err := strconv.Atoi(key); err == nil {
		for _, ctor := range methodRegistry {
			if m := ctor(); m.Code() == code {
				return m, nil
			}
		}
		return nil, fmt.Errorf("%w: code %d; valid: 1, 2, 3", ErrInvalidMethod, code)
	}
	if alias, ok := methodAliases[key]; ok {
		key = alias
	}
	ctor, ok := methodRegistry[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q; valid: %s", ErrInvalidMethod, name, strings.Join(ValidMethodNames(), ", "))
	}
	return ctor(), nil
}
