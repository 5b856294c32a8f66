package reduce

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specpol/specpol/polar/spectrum"
)

func intPtr(v int) *int { return &v }

func referenceVector() *spectrum.OrderVector {
	v := spectrum.NewOrderVector("ref.csv")
	v.Add(&spectrum.Order{Number: 20})
	for _, n := range []int{21, 22, 23, 24} {
		v.Add(singleElementOrder(n, 100, 100))
	}
	v.Add(&spectrum.Order{Number: 25})
	return v
}

func TestResolveRange(t *testing.T) {
	ref := referenceVector()
	tests := []struct {
		name string
		req  RangeRequest
		want Range
	}{
		{"all orders clipped to data", AllOrders(), Range{Min: 21, Max: 24}},
		{"pinned order", RangeRequest{Order: intPtr(22), MinOrder: intPtr(10), MaxOrder: intPtr(99)}, Range{Min: 22, Max: 22}},
		{"single order", SingleOrder(23), Range{Min: 23, Max: 23}},
		{"min only", RangeRequest{MinOrder: intPtr(23)}, Range{Min: 23, Max: 24}},
		{"max only", RangeRequest{MaxOrder: intPtr(22)}, Range{Min: 21, Max: 22}},
		{"wide request clipped", Between(0, 100), Range{Min: 21, Max: 24}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ResolveRange(ref, tc.req)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestResolveRange_OutsideData_ReturnsErrEmptyRange(t *testing.T) {
	_, err := ResolveRange(referenceVector(), SingleOrder(40))
	assert.ErrorIs(t, err, ErrEmptyRange)

	_, err = ResolveRange(referenceVector(), Between(24, 22))
	assert.ErrorIs(t, err, ErrEmptyRange)
}

func TestResolveRange_NegativeOrder_IsARequestNotAllOrders(t *testing.T) {
	// GIVEN a request pinning order -1
	req := SingleOrder(-1)

	// WHEN resolved against data holding orders 21-24
	_, err := ResolveRange(referenceVector(), req)

	// THEN it selects nothing rather than every order
	assert.ErrorIs(t, err, ErrEmptyRange)
	assert.Contains(t, err.Error(), "requested -1--1")
}

func TestResolveRange_NoData_ReturnsErrEmptyRange(t *testing.T) {
	v := spectrum.NewOrderVector("empty.csv")
	_, err := ResolveRange(v, AllOrders())
	assert.ErrorIs(t, err, ErrEmptyRange)
	assert.Contains(t, err.Error(), "empty.csv")
}

func TestRange_Contains(t *testing.T) {
	r := Range{Min: 3, Max: 5}
	assert.True(t, r.Contains(3))
	assert.True(t, r.Contains(5))
	assert.False(t, r.Contains(6))
	assert.Equal(t, "3-5", r.String())
}
