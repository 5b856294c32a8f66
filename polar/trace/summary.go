package trace

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Statistics describes the finite values of one per-element spectrum.
type Statistics struct {
	Count     int // finite values
	NonFinite int
	Mean      float64
	StdDev    float64 // unbiased; zero with fewer than two finite values
	RMS       float64
}

// Describe computes Statistics over the finite entries of values.
// A nil slice yields the zero value.
func Describe(values []float64) Statistics {
	finite := make([]float64, 0, len(values))
	var s Statistics
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			s.NonFinite++
			continue
		}
		finite = append(finite, v)
	}
	s.Count = len(finite)
	if s.Count == 0 {
		return s
	}
	s.Mean = stat.Mean(finite, nil)
	if s.Count > 1 {
		s.StdDev = stat.StdDev(finite, nil)
	}
	var sumSquares float64
	for _, v := range finite {
		sumSquares += v * v
	}
	s.RMS = math.Sqrt(sumSquares / float64(s.Count))
	return s
}

// ReductionSummary aggregates statistics from a ReductionTrace.
type ReductionSummary struct {
	TotalOrders       int
	StoredCount       int
	SkippedCount      int
	FailedCount       int
	TotalElements     int
	NonFiniteElements int
	SkippedOrders     []int
	MeanDegreeRMS     float64 // mean over stored orders of the per-order P/I RMS
	MeanFirstNullRMS  float64 // zero when no stored order has null spectra
}

// Summarize computes aggregate statistics from a ReductionTrace.
// Safe for nil or empty traces (returns zero-value fields).
func Summarize(rt *ReductionTrace) *ReductionSummary {
	summary := &ReductionSummary{}
	if rt == nil {
		return summary
	}

	summary.TotalOrders = len(rt.Orders)
	var degreeRMS, nullRMS []float64
	for _, r := range rt.Orders {
		switch r.State {
		case StateStored:
			summary.StoredCount++
			summary.TotalElements += r.Elements
			summary.NonFiniteElements += r.NonFinite
			degreeRMS = append(degreeRMS, r.Degree.RMS)
			if r.FirstNull.Count > 0 {
				nullRMS = append(nullRMS, r.FirstNull.RMS)
			}
		case StateSkipped:
			summary.SkippedCount++
			summary.SkippedOrders = append(summary.SkippedOrders, r.Order)
		case StateFailed:
			summary.FailedCount++
		}
	}
	if len(degreeRMS) > 0 {
		summary.MeanDegreeRMS = stat.Mean(degreeRMS, nil)
	}
	if len(nullRMS) > 0 {
		summary.MeanFirstNullRMS = stat.Mean(nullRMS, nil)
	}
	return summary
}
