package polar

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-vecmath"
)

// Result is the polarimetry record of one spectral order.
type Result struct {
	Method    string
	Parameter StokesParameter
	Exposures int

	StokesI FluxVector // mean total intensity across exposures
	Stokes  FluxVector // flux of the requested parameter, Degree * StokesI
	Degree  FluxVector // P/I of the requested parameter

	// Null spectra are nil when only two exposures were combined.
	FirstNull  []float64
	SecondNull []float64

	CrossCorrelation []float64 // mean across exposures
}

// Len returns the number of spectral elements.
func (r *Result) Len() int {
	return len(r.Degree)
}

// HasNullSpectra reports whether the null spectra are defined.
func (r *Result) HasNullSpectra() bool {
	return r.FirstNull != nil && r.SecondNull != nil
}

// NonFiniteElements counts elements whose degree of polarization is NaN or
// infinite, i.e. elements hit by a zero denominator.
func (r *Result) NonFiniteElements() int {
	count := 0
	for _, s := range r.Degree {
		if math.IsNaN(s.Flux) || math.IsInf(s.Flux, 0) {
			count++
		}
	}
	return count
}

// Engine computes polarimetry for one requested Stokes parameter with one
// Method. An Engine holds no mutable state and is safe for concurrent use.
type Engine struct {
	method    Method
	parameter StokesParameter
}

// NewEngine creates an Engine. The parameter must be Q, U or V.
func NewEngine(method Method, parameter StokesParameter) (*Engine, error) {
	if method == nil {
		return nil, fmt.Errorf("%w: nil method", ErrInvalidMethod)
	}
	if !parameter.Requestable() {
		return nil, fmt.Errorf("%w: %v cannot be requested; valid: Q, U, V", ErrInvalidParameter, parameter)
	}
	return &Engine{method: method, parameter: parameter}, nil
}

// Method returns the engine's method.
func (e *Engine) Method() Method { return e.method }

// Parameter returns the requested Stokes parameter.
func (e *Engine) Parameter() StokesParameter { return e.parameter }

// Compute canonicalizes a raw exposure set and evaluates it.
func (e *Engine) Compute(raw BeamExposureSet) (*Result, error) {
	if err := raw.Validate(); err != nil {
		return nil, err
	}
	set, err := Canonicalize(raw)
	if err != nil {
		return nil, err
	}
	return e.ComputeCanonical(set)
}

// ComputeCanonical evaluates an exposure set that is already in canonical
// order.
func (e *Engine) ComputeCanonical(set BeamExposureSet) (*Result, error) {
	if err := set.Validate(); err != nil {
		return nil, err
	}
	n := set.Len()
	exposures := len(set)
	res := &Result{
		Method:           e.method.Name(),
		Parameter:        e.parameter,
		Exposures:        exposures,
		StokesI:          make(FluxVector, n),
		Stokes:           make(FluxVector, n),
		Degree:           make(FluxVector, n),
		CrossCorrelation: make([]float64, n),
	}
	if exposures == 4 {
		res.FirstNull = make([]float64, n)
		res.SecondNull = make([]float64, n)
	}

	var ef, af, ev, av [4]float64
	count := float64(exposures)
	for i := 0; i < n; i++ {
		var sum, sumVariance, xcorr float64
		for k, exp := range set {
			ef[k], ev[k] = exp.E[i].Flux, exp.E[i].Variance
			af[k], av[k] = exp.A[i].Flux, exp.A[i].Variance
			sum += ef[k] + af[k]
			sumVariance += ev[k] + av[k]
			xcorr += exp.xcorrAt(i) / count
		}
		res.StokesI[i] = FluxSample{Flux: sum / count, Variance: sumVariance / (count * count)}
		res.CrossCorrelation[i] = xcorr

		p := e.method.Element(ef[:exposures], af[:exposures], ev[:exposures], av[:exposures])
		res.Degree[i] = FluxSample{Flux: p.Degree, Variance: p.DegreeVariance}
		if exposures == 4 {
			res.FirstNull[i] = p.FirstNull
			res.SecondNull[i] = p.SecondNull
		}
	}

	fillStokesFlux(res)
	return res, nil
}

// fillStokesFlux sets Stokes = Degree * StokesI with first-order variance
// (I*sigmaP)^2 + (P*sigmaI)^2.
func fillStokesFlux(res *Result) {
	n := res.Len()
	intensity := res.StokesI.Fluxes()
	degree := res.Degree.Fluxes()
	sigmaI := sqrtAll(res.StokesI.Variances())
	sigmaP := sqrtAll(res.Degree.Variances())

	flux := make([]float64, n)
	vecmath.MulBlock(flux, degree, intensity)

	re := make([]float64, n)
	im := make([]float64, n)
	variance := make([]float64, n)
	vecmath.MulBlock(re, intensity, sigmaP)
	vecmath.MulBlock(im, degree, sigmaI)
	vecmath.Power(variance, re, im)

	for i := range res.Stokes {
		res.Stokes[i] = FluxSample{Flux: flux[i], Variance: variance[i]}
	}
}

func sqrtAll(values []float64) []float64 {
	for i, v := range values {
		values[i] = math.Sqrt(v)
	}
	return values
}
