package reduce

import (
	"errors"
	"fmt"

	"github.com/specpol/specpol/polar/spectrum"
)

// ErrEmptyRange is returned when the requested orders do not overlap the
// orders that carry spectral data.
var ErrEmptyRange = errors.New("empty order range")

// Range is an inclusive span of absolute order numbers.
type Range struct {
	Min int
	Max int
}

func (r Range) String() string {
	return fmt.Sprintf("%d-%d", r.Min, r.Max)
}

// Contains reports whether order lies within the range.
func (r Range) Contains(order int) bool {
	return order >= r.Min && order <= r.Max
}

// RangeRequest is the user's order selection. Order pins a single order and
// takes precedence over MinOrder and MaxOrder. Nil fields are unset.
type RangeRequest struct {
	Order    *int
	MinOrder *int
	MaxOrder *int
}

// AllOrders requests every order carrying data.
func AllOrders() RangeRequest {
	return RangeRequest{}
}

// SingleOrder requests one absolute order.
func SingleOrder(order int) RangeRequest {
	return RangeRequest{Order: &order}
}

// Between requests the orders from lo to hi inclusive.
func Between(lo, hi int) RangeRequest {
	return RangeRequest{MinOrder: &lo, MaxOrder: &hi}
}

// ResolveRange turns a request into a concrete range. Unset bounds default
// to the reference vector's orders; the result is clipped to the orders
// that carry spectral elements in the reference.
func ResolveRange(reference *spectrum.OrderVector, req RangeRequest) (Range, error) {
	lo, hi, ok := reference.SpectralRange()
	if !ok {
		return Range{}, fmt.Errorf("%w: %s has no spectral data", ErrEmptyRange, reference.Source)
	}

	r := Range{Min: lo, Max: hi}
	switch {
	case req.Order != nil:
		r.Min, r.Max = *req.Order, *req.Order
	default:
		if req.MinOrder != nil {
			r.Min = *req.MinOrder
		}
		if req.MaxOrder != nil {
			r.Max = *req.MaxOrder
		}
	}

	requested := r
	r.Min = max(r.Min, lo)
	r.Max = min(r.Max, hi)
	if r.Min > r.Max {
		return Range{}, fmt.Errorf("%w: requested %v, available %d-%d", ErrEmptyRange, requested, lo, hi)
	}
	return r, nil
}
