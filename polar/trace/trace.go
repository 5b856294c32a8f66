package trace

import "sort"

// ReductionTrace collects order records during a run.
type ReductionTrace struct {
	Orders []OrderRecord
}

// NewReductionTrace creates a ReductionTrace ready for recording.
func NewReductionTrace() *ReductionTrace {
	return &ReductionTrace{Orders: make([]OrderRecord, 0)}
}

// Record appends an order record.
func (rt *ReductionTrace) Record(record OrderRecord) {
	rt.Orders = append(rt.Orders, record)
}

// Sort orders records by ascending order number.
func (rt *ReductionTrace) Sort() {
	sort.SliceStable(rt.Orders, func(i, j int) bool {
		return rt.Orders[i].Order < rt.Orders[j].Order
	})
}

// Lookup returns the record of the given order.
func (rt *ReductionTrace) Lookup(order int) (OrderRecord, bool) {
	for _, r := range rt.Orders {
		if r.Order == order {
			return r, true
		}
	}
	return OrderRecord{}, false
}
