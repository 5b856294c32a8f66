// Package polar provides the polarimetric calculation engine for dual-beam
// spectropolarimetry.
//
// # Reading Guide
//
// Start with these files:
//   - types.go: flux samples, per-exposure beams and the exposure set
//   - canonical.go: the fixed exposure permutation applied before any arithmetic
//   - method.go: the Difference, Ratio and DifferenceWithBeamSwap algorithms
//   - engine.go: per-element evaluation producing Stokes I, P/I and null spectra
//
// # Architecture
//
// The polar package owns the pure arithmetic; orchestration and I/O live in
// sub-packages:
//   - polar/spectrum/: per-exposure spectral order vectors and their CSV loader
//   - polar/reduce/: the order loop (gather, canonicalize, compute, store)
//   - polar/product/: product file, metadata sidecar and plotting data table
//   - polar/plot/: gnuplot script generation and invocation
//   - polar/trace/: per-order decision records and summaries
//
// # Key Interfaces
//
// Method is the single extension point for new polarization algorithms: it
// turns the per-exposure E and A fluxes of one spectral element into a degree
// of polarization and, for four exposures, two null values. Register new
// methods in methodRegistry.
//
// # Arithmetic Policy
//
// A zero denominator anywhere in an element's computation yields NaN for the
// affected outputs of that element only. Orders are never aborted for a bad
// pixel.
package polar
