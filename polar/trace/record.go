// Package trace records what the order processor did with every spectral
// order of a reduction run.
// This package has no dependencies on polar/reduce; it stores pure data types.
package trace

// OrderState is the lifecycle state an order reached during a run.
type OrderState string

const (
	StatePending       OrderState = "pending"
	StateDataGathered  OrderState = "data-gathered"
	StateCanonicalized OrderState = "canonicalized"
	StateComputed      OrderState = "computed"
	StateStored        OrderState = "stored"
	StateSkipped       OrderState = "skipped"
	StateFailed        OrderState = "failed"
)

// OrderRecord captures the outcome of one spectral order.
type OrderRecord struct {
	Order     int
	State     OrderState
	Reason    string // set for skipped and failed orders
	Exposures int    // exposures that carried spectral data for the order
	Elements  int
	NonFinite int // elements whose degree of polarization is NaN

	Degree     Statistics
	FirstNull  Statistics // zero value when null spectra are undefined
	SecondNull Statistics
}
