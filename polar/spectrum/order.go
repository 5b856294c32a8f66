// Package spectrum holds the per-exposure spectral order vectors consumed by
// the reduction and their on-disk CSV representation.
// Wavelength and distance values are carried through untouched.
package spectrum

import (
	"sort"

	"github.com/specpol/specpol/polar"
)

// Order is one spectral order of one exposure (or of the output product).
type Order struct {
	Number     int
	Distance   []float64 // position along the order, pixels
	Wavelength []float64 // nm; zero when the input carried no calibration
	Beams      polar.ExposureBeams

	// Polarimetry is set by the reduction; nil until the order is stored.
	Polarimetry *polar.Result
}

// Len returns the number of spectral elements.
func (o *Order) Len() int {
	return len(o.Beams.E)
}

// HasSpectralElements reports whether the order carries usable data.
// Safe on a nil order.
func (o *Order) HasSpectralElements() bool {
	return o != nil && len(o.Beams.E) > 0
}

// SetPolarimetry replaces any previous polarimetry record of the order.
func (o *Order) SetPolarimetry(res *polar.Result) {
	o.Polarimetry = res
}

// OrderVector is the set of spectral orders loaded from one file, keyed by
// absolute order number.
type OrderVector struct {
	Source string
	orders map[int]*Order
}

// NewOrderVector creates an empty vector.
func NewOrderVector(source string) *OrderVector {
	return &OrderVector{Source: source, orders: make(map[int]*Order)}
}

// Add inserts or replaces an order.
func (v *OrderVector) Add(o *Order) {
	v.orders[o.Number] = o
}

// Order returns the order with the given number.
func (v *OrderVector) Order(number int) (*Order, bool) {
	o, ok := v.orders[number]
	return o, ok
}

// Numbers returns the order numbers in ascending order.
func (v *OrderVector) Numbers() []int {
	numbers := make([]int, 0, len(v.orders))
	for n := range v.orders {
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)
	return numbers
}

// Len returns the number of orders.
func (v *OrderVector) Len() int {
	return len(v.orders)
}

// SpectralRange returns the lowest and highest order numbers carrying
// spectral elements. ok is false when no order has data.
func (v *OrderVector) SpectralRange() (minOrder, maxOrder int, ok bool) {
	for _, n := range v.Numbers() {
		if !v.orders[n].HasSpectralElements() {
			continue
		}
		if !ok {
			minOrder = n
			ok = true
		}
		maxOrder = n
	}
	return minOrder, maxOrder, ok
}
