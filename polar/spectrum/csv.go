package spectrum

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/specpol/specpol/polar"
)

// CSV column headers for spectrum files. The trailing xcorrelation column
// is optional on input.
var spectrumColumns = []string{
	"order", "element", "distance", "wavelength",
	"e_flux", "e_variance", "a_flux", "a_variance", "xcorrelation",
}

const requiredSpectrumColumns = 8

// LoadOrderVector reads a spectrum CSV file. Rows of one order must be
// contiguous with element indices 0..n-1 in sequence.
func LoadOrderVector(path string) (*OrderVector, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening spectrum file: %w", err)
	}
	defer func() { _ = file.Close() }()

	v, err := ReadOrderVector(file, path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return v, nil
}

// ReadOrderVector parses spectrum CSV data from r.
func ReadOrderVector(r io.Reader, source string) (*OrderVector, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.Comment = '#'

	// Skip header row
	if _, err := reader.Read(); err != nil {
		return nil, fmt.Errorf("reading CSV header: %w", err)
	}

	v := NewOrderVector(source)
	var current *Order
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading CSV row: %w", err)
		}
		// file line of the record, counting the header and comments
		line, _ := reader.FieldPos(0)
		if len(row) < requiredSpectrumColumns {
			return nil, fmt.Errorf("line %d has %d columns, expected at least %d", line, len(row), requiredSpectrumColumns)
		}

		number, err := strconv.Atoi(row[0])
		if err != nil {
			return nil, fmt.Errorf("line %d: order: %w", line, err)
		}
		element, err := strconv.Atoi(row[1])
		if err != nil {
			return nil, fmt.Errorf("line %d: element: %w", line, err)
		}

		if current == nil || current.Number != number {
			if _, seen := v.Order(number); seen {
				return nil, fmt.Errorf("line %d: order %d is not contiguous", line, number)
			}
			current = &Order{Number: number}
			v.Add(current)
		}
		if element != current.Len() {
			return nil, fmt.Errorf("line %d: order %d element %d out of sequence, expected %d", line, number, element, current.Len())
		}

		values, err := parseFloats(row[2:requiredSpectrumColumns])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		xcorr := 0.0
		if len(row) > requiredSpectrumColumns && row[requiredSpectrumColumns] != "" {
			xcorr, err = strconv.ParseFloat(row[requiredSpectrumColumns], 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: xcorrelation: %w", line, err)
			}
		}

		current.Distance = append(current.Distance, values[0])
		current.Wavelength = append(current.Wavelength, values[1])
		current.Beams.E = append(current.Beams.E, polar.FluxSample{Flux: values[2], Variance: values[3]})
		current.Beams.A = append(current.Beams.A, polar.FluxSample{Flux: values[4], Variance: values[5]})
		current.Beams.XCorrelation = append(current.Beams.XCorrelation, xcorr)
	}
	return v, nil
}

func parseFloats(fields []string) ([]float64, error) {
	out := make([]float64, len(fields))
	for i, f := range fields {
		val, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", spectrumColumns[i+2], err)
		}
		if val < 0 && (i == 3 || i == 5) {
			return nil, fmt.Errorf("%s must be non-negative, got %g", spectrumColumns[i+2], val)
		}
		out[i] = val
	}
	return out, nil
}

// ExportOrderVector writes v as a spectrum CSV file, orders ascending.
func ExportOrderVector(v *OrderVector, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating spectrum file: %w", err)
	}
	defer func() { _ = file.Close() }()

	writer := csv.NewWriter(file)
	if err := writer.Write(spectrumColumns); err != nil {
		return fmt.Errorf("writing CSV header: %w", err)
	}
	for _, n := range v.Numbers() {
		o, _ := v.Order(n)
		for i := 0; i < o.Len(); i++ {
			row := []string{
				strconv.Itoa(o.Number),
				strconv.Itoa(i),
				formatFloat(valueAt(o.Distance, i)),
				formatFloat(valueAt(o.Wavelength, i)),
				formatFloat(o.Beams.E[i].Flux),
				formatFloat(o.Beams.E[i].Variance),
				formatFloat(o.Beams.A[i].Flux),
				formatFloat(o.Beams.A[i].Variance),
				formatFloat(valueAt(o.Beams.XCorrelation, i)),
			}
			if err := writer.Write(row); err != nil {
				return fmt.Errorf("writing CSV row for order %d: %w", o.Number, err)
			}
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flushing spectrum file: %w", err)
	}
	return file.Close()
}

func valueAt(values []float64, i int) float64 {
	if i < len(values) {
		return values[i]
	}
	return 0
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
