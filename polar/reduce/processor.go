// Package reduce runs the polarimetry engine over every spectral order of a
// set of exposures and attaches one result per order.
package reduce

import (
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/specpol/specpol/polar"
	"github.com/specpol/specpol/polar/spectrum"
	"github.com/specpol/specpol/polar/trace"
)

// OrderError reports a failure to compute one order.
type OrderError struct {
	Order int
	Err   error
}

func (e *OrderError) Error() string {
	return fmt.Sprintf("order %d: %v", e.Order, e.Err)
}

func (e *OrderError) Unwrap() error { return e.Err }

// Processor combines the orders of N exposure vectors, given in raw
// acquisition order.
type Processor struct {
	engine  *polar.Engine
	inputs  []*spectrum.OrderVector
	workers int
}

// NewProcessor creates a Processor. workers < 1 computes sequentially.
func NewProcessor(engine *polar.Engine, inputs []*spectrum.OrderVector, workers int) (*Processor, error) {
	if engine == nil {
		return nil, errors.New("nil engine")
	}
	if err := polar.ValidateExposureCount(len(inputs)); err != nil {
		return nil, err
	}
	for i, in := range inputs {
		if in == nil {
			return nil, fmt.Errorf("exposure %d: nil order vector", i+1)
		}
	}
	if workers < 1 {
		workers = 1
	}
	return &Processor{engine: engine, inputs: inputs, workers: workers}, nil
}

// Exposures returns the number of combined exposures.
func (p *Processor) Exposures() int {
	return len(p.inputs)
}

// ResolveRange resolves req against the first exposure.
func (p *Processor) ResolveRange(req RangeRequest) (Range, error) {
	return ResolveRange(p.inputs[0], req)
}

// job is one order whose exposure set was gathered.
type job struct {
	order   int
	present int
	raw     polar.BeamExposureSet
	result  *polar.Result
	err     error
}

// Run processes every order of r and stores each result into out, replacing
// any polarimetry the order already carried. Orders with incomplete data
// are skipped with a warning. Compute failures are collected per order and
// returned joined; results of the other orders are still stored.
func (p *Processor) Run(r Range, out *spectrum.OrderVector) (*trace.ReductionTrace, error) {
	rt := trace.NewReductionTrace()

	var jobs []*job
	for order := r.Min; order <= r.Max; order++ {
		logrus.Debugf("order %d: %s", order, trace.StatePending)
		raw, missing := p.gather(order)
		if len(missing) > 0 {
			reason := fmt.Sprintf("no spectral data in exposure(s) %v", missing)
			logrus.Warnf("order %d skipped: %s", order, reason)
			rt.Record(trace.OrderRecord{
				Order:     order,
				State:     trace.StateSkipped,
				Reason:    reason,
				Exposures: len(p.inputs) - len(missing),
			})
			continue
		}
		logrus.Debugf("order %d: %s", order, trace.StateDataGathered)
		jobs = append(jobs, &job{order: order, present: len(p.inputs), raw: raw})
	}

	p.computeAll(jobs)

	var errs []error
	for _, j := range jobs {
		if j.err != nil {
			logrus.Debugf("order %d: %s", j.order, trace.StateFailed)
			rt.Record(trace.OrderRecord{
				Order:     j.order,
				State:     trace.StateFailed,
				Reason:    j.err.Error(),
				Exposures: j.present,
			})
			errs = append(errs, &OrderError{Order: j.order, Err: j.err})
			continue
		}
		p.store(out, j.order, j.result)
		logrus.Debugf("order %d: %s", j.order, trace.StateStored)

		record := trace.OrderRecord{
			Order:     j.order,
			State:     trace.StateStored,
			Exposures: j.present,
			Elements:  j.result.Len(),
			NonFinite: j.result.NonFiniteElements(),
			Degree:    trace.Describe(j.result.Degree.Fluxes()),
		}
		if j.result.HasNullSpectra() {
			record.FirstNull = trace.Describe(j.result.FirstNull)
			record.SecondNull = trace.Describe(j.result.SecondNull)
		}
		if record.NonFinite > 0 {
			logrus.Warnf("order %d: %d of %d elements have undefined polarization", j.order, record.NonFinite, record.Elements)
		}
		rt.Record(record)
	}
	rt.Sort()
	return rt, errors.Join(errs...)
}

// gather collects the order from every exposure. missing lists the 1-based
// exposures without spectral elements.
func (p *Processor) gather(order int) (polar.BeamExposureSet, []int) {
	raw := make(polar.BeamExposureSet, len(p.inputs))
	var missing []int
	for k, in := range p.inputs {
		o, _ := in.Order(order)
		if !o.HasSpectralElements() {
			missing = append(missing, k+1)
			continue
		}
		raw[k] = o.Beams
	}
	return raw, missing
}

// computeAll evaluates jobs on a bounded pool. Each job's result slot is
// written by exactly one worker.
func (p *Processor) computeAll(jobs []*job) {
	workers := min(p.workers, len(jobs))
	if workers <= 1 {
		for _, j := range jobs {
			p.compute(j)
		}
		return
	}

	in := make(chan *job, workers*2)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range in {
				p.compute(j)
			}
		}()
	}
	for _, j := range jobs {
		in <- j
	}
	close(in)
	wg.Wait()
}

func (p *Processor) compute(j *job) {
	if err := j.raw.Validate(); err != nil {
		j.err = err
		return
	}
	set, err := polar.Canonicalize(j.raw)
	if err != nil {
		j.err = err
		return
	}
	logrus.Debugf("order %d: %s", j.order, trace.StateCanonicalized)
	j.result, j.err = p.engine.ComputeCanonical(set)
	if j.err == nil {
		logrus.Debugf("order %d: %s", j.order, trace.StateComputed)
	}
}

// store attaches res to the output order, creating it from the first
// exposure's order when absent.
func (p *Processor) store(out *spectrum.OrderVector, order int, res *polar.Result) {
	if existing, ok := out.Order(order); ok {
		existing.SetPolarimetry(res)
		return
	}
	ref, _ := p.inputs[0].Order(order)
	out.Add(&spectrum.Order{
		Number:      order,
		Distance:    ref.Distance,
		Wavelength:  ref.Wavelength,
		Beams:       ref.Beams,
		Polarimetry: res,
	})
}
