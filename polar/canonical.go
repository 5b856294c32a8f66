package polar

// canonicalOrder maps canonical exposure slots to raw acquisition slots.
// The third and fourth raw exposures are acquired in the opposite retarder
// order to the one the published formulas assume.
var canonicalOrder = map[int][]int{
	2: {0, 1},
	4: {0, 1, 3, 2},
}

// Canonicalize returns the exposures in the order the polarization formulas
// expect. It only reindexes; the beams are shared with the input. Applying
// it twice yields the original order.
func Canonicalize(raw BeamExposureSet) (BeamExposureSet, error) {
	perm, ok := canonicalOrder[len(raw)]
	if !ok {
		return nil, ValidateExposureCount(len(raw))
	}
	out := make(BeamExposureSet, len(raw))
	for canonical, src := range perm {
		out[canonical] = raw[src]
	}
	return out, nil
}

// CanonicalSlots returns, per canonical exposure slot, the raw acquisition
// slot it is taken from. ok is false for an unsupported exposure count.
func CanonicalSlots(exposures int) (slots []int, ok bool) {
	perm, ok := canonicalOrder[exposures]
	if !ok {
		return nil, false
	}
	return append([]int(nil), perm...), true
}
