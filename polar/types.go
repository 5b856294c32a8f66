package polar

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Configuration error classes. Wrapped by the concrete validation messages.
var (
	ErrInvalidParameter     = errors.New("invalid stokes parameter")
	ErrInvalidMethod        = errors.New("invalid polarimetry method")
	ErrInvalidExposureCount = errors.New("invalid number of exposures")
	ErrLengthMismatch       = errors.New("flux vector length mismatch")
)

// FluxSample is one spectroscopic measurement. A zero variance means no
// propagated uncertainty.
type FluxSample struct {
	Flux     float64
	Variance float64
}

// FluxVector is the ordered sequence of samples of one beam along an order.
type FluxVector []FluxSample

// NewFluxVector builds a vector from parallel flux and variance slices.
// A nil variances slice yields zero variances.
func NewFluxVector(fluxes, variances []float64) (FluxVector, error) {
	if variances != nil && len(variances) != len(fluxes) {
		return nil, fmt.Errorf("%w: %d fluxes, %d variances", ErrLengthMismatch, len(fluxes), len(variances))
	}
	v := make(FluxVector, len(fluxes))
	for i, f := range fluxes {
		v[i].Flux = f
		if variances != nil {
			v[i].Variance = variances[i]
		}
	}
	return v, nil
}

// Fluxes returns a copy of the flux values.
func (v FluxVector) Fluxes() []float64 {
	out := make([]float64, len(v))
	for i, s := range v {
		out[i] = s.Flux
	}
	return out
}

// Variances returns a copy of the variance values.
func (v FluxVector) Variances() []float64 {
	out := make([]float64, len(v))
	for i, s := range v {
		out[i] = s.Variance
	}
	return out
}

// ExposureBeams holds one exposure's perpendicular (E) and parallel (A)
// beams. XCorrelation is optional; a nil slice reads as zero.
type ExposureBeams struct {
	E            FluxVector
	A            FluxVector
	XCorrelation []float64
}

// xcorrAt returns the exposure's cross-correlation at element i.
func (b ExposureBeams) xcorrAt(i int) float64 {
	if i < len(b.XCorrelation) {
		return b.XCorrelation[i]
	}
	return 0
}

// BeamExposureSet is the ordered sequence of exposures combined into one
// polarization measurement.
type BeamExposureSet []ExposureBeams

// Len returns the number of spectral elements shared by every beam.
// Only meaningful after Validate succeeded.
func (s BeamExposureSet) Len() int {
	if len(s) == 0 {
		return 0
	}
	return len(s[0].E)
}

// Validate checks the exposure count and that every beam of every exposure
// has the same length.
func (s BeamExposureSet) Validate() error {
	if err := ValidateExposureCount(len(s)); err != nil {
		return err
	}
	n := len(s[0].E)
	for i, exp := range s {
		if len(exp.E) != n || len(exp.A) != n {
			return fmt.Errorf("%w: exposure %d has E=%d A=%d elements, want %d",
				ErrLengthMismatch, i+1, len(exp.E), len(exp.A), n)
		}
		if exp.XCorrelation != nil && len(exp.XCorrelation) != n {
			return fmt.Errorf("%w: exposure %d has %d cross-correlation values, want %d",
				ErrLengthMismatch, i+1, len(exp.XCorrelation), n)
		}
	}
	return nil
}

// ValidateExposureCount accepts only 2 or 4 exposures.
func ValidateExposureCount(n int) error {
	if n != 2 && n != 4 {
		return fmt.Errorf("%w: %d; valid: 2, 4", ErrInvalidExposureCount, n)
	}
	return nil
}

// StokesParameter identifies one of the four Stokes parameters.
type StokesParameter int

const (
	StokesI StokesParameter = iota
	StokesQ
	StokesU
	StokesV
)

var stokesNames = map[StokesParameter]string{
	StokesI: "I",
	StokesQ: "Q",
	StokesU: "U",
	StokesV: "V",
}

func (p StokesParameter) String() string {
	if name, ok := stokesNames[p]; ok {
		return name
	}
	return fmt.Sprintf("StokesParameter(%d)", int(p))
}

// Requestable reports whether p may be requested from the engine. Stokes I
// is always produced and cannot be the requested parameter.
func (p StokesParameter) Requestable() bool {
	return p == StokesQ || p == StokesU || p == StokesV
}

// ParseStokesParameter accepts a letter (Q, u, ...) or the numeric code
// 0..3. Stokes I parses but is rejected by Config.Validate.
func ParseStokesParameter(s string) (StokesParameter, error) {
	s = strings.TrimSpace(s)
	if code, err := strconv.Atoi(s); err == nil {
		p := StokesParameter(code)
		if _, ok := stokesNames[p]; ok {
			return p, nil
		}
		return 0, fmt.Errorf("%w: code %d; valid: 1 (Q), 2 (U), 3 (V)", ErrInvalidParameter, code)
	}
	for p, name := range stokesNames {
		if strings.EqualFold(s, name) {
			return p, nil
		}
	}
	return 0, fmt.Errorf("%w: %q; valid: Q, U, V", ErrInvalidParameter, s)
}
