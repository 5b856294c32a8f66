// Package product persists reduction results: the polarimetry product file
// with its YAML metadata sidecar, and the tab-separated data table consumed
// by the plot scripts.
package product

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/specpol/specpol/polar"
	"github.com/specpol/specpol/polar/spectrum"
)

// Version is the product format version written to the sidecar.
const Version = 1

// Metadata describes the run that produced a product file.
type Metadata struct {
	Version       int      `yaml:"product_version"`
	RunID         string   `yaml:"run_id"`
	CreatedAt     string   `yaml:"created_at"`
	Method        string   `yaml:"method"`
	Parameter     string   `yaml:"stokes_parameter"`
	Exposures     int      `yaml:"exposures"`
	MinOrder      int      `yaml:"min_order"`
	MaxOrder      int      `yaml:"max_order"`
	Inputs        []string `yaml:"inputs"`
	StoredOrders  int      `yaml:"stored_orders"`
	SkippedOrders []int    `yaml:"skipped_orders,omitempty"`
}

// Product is a loaded product file.
type Product struct {
	Metadata Metadata
	Orders   *spectrum.OrderVector
}

// SidecarPath returns the metadata path for a product file.
func SidecarPath(path string) string {
	return path + ".yaml"
}

// productColumns returns the CSV header for parameter p.
func productColumns(p polar.StokesParameter) []string {
	stokes := "stokes_" + strings.ToLower(p.String())
	return []string{
		"order", "element", "distance", "wavelength",
		"stokes_i", "stokes_i_variance", stokes, stokes + "_variance",
		"degree", "degree_variance", "first_null", "second_null", "xcorrelation",
	}
}

// WriteProduct writes every order of orders that carries polarimetry, in
// ascending order, followed by the metadata sidecar. Both files are
// committed together; on failure neither is changed.
func WriteProduct(path string, meta *Metadata, orders *spectrum.OrderVector) error {
	return CommitFiles(func(b *Batch) error {
		return StageProduct(b, path, meta, orders)
	})
}

// StageProduct stages the product file and its sidecar in b.
func StageProduct(b *Batch, path string, meta *Metadata, orders *spectrum.OrderVector) error {
	parameter, err := polar.ParseStokesParameter(meta.Parameter)
	if err != nil {
		return fmt.Errorf("product metadata: %w", err)
	}
	if meta.Version == 0 {
		meta.Version = Version
	}

	err = b.Stage(path, func(w io.Writer) error {
		return writeRows(w, parameter, orders)
	})
	if err != nil {
		return fmt.Errorf("writing product file: %w", err)
	}

	data, err := yaml.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshaling product metadata: %w", err)
	}
	err = b.Stage(SidecarPath(path), func(w io.Writer) error {
		_, werr := w.Write(data)
		return werr
	})
	if err != nil {
		return fmt.Errorf("writing product metadata: %w", err)
	}
	return nil
}

func writeRows(w io.Writer, parameter polar.StokesParameter, orders *spectrum.OrderVector) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(productColumns(parameter)); err != nil {
		return fmt.Errorf("writing CSV header: %w", err)
	}
	for _, n := range orders.Numbers() {
		o, _ := orders.Order(n)
		res := o.Polarimetry
		if res == nil {
			continue
		}
		for i := 0; i < res.Len(); i++ {
			row := []string{
				strconv.Itoa(o.Number),
				strconv.Itoa(i),
				formatFloat(valueAt(o.Distance, i)),
				formatFloat(valueAt(o.Wavelength, i)),
				formatFloat(res.StokesI[i].Flux),
				formatFloat(res.StokesI[i].Variance),
				formatFloat(res.Stokes[i].Flux),
				formatFloat(res.Stokes[i].Variance),
				formatFloat(res.Degree[i].Flux),
				formatFloat(res.Degree[i].Variance),
				formatFloat(nullAt(res.FirstNull, i)),
				formatFloat(nullAt(res.SecondNull, i)),
				formatFloat(valueAt(res.CrossCorrelation, i)),
			}
			if err := writer.Write(row); err != nil {
				return fmt.Errorf("writing CSV row for order %d: %w", o.Number, err)
			}
		}
	}
	writer.Flush()
	return writer.Error()
}

// LoadProduct reads a product file and its sidecar.
func LoadProduct(path string) (*Product, error) {
	metaData, err := os.ReadFile(SidecarPath(path))
	if err != nil {
		return nil, fmt.Errorf("reading product metadata: %w", err)
	}
	var meta Metadata
	decoder := yaml.NewDecoder(bytes.NewReader(metaData))
	decoder.KnownFields(true)
	if err := decoder.Decode(&meta); err != nil {
		return nil, fmt.Errorf("parsing product metadata: %w", err)
	}
	parameter, err := polar.ParseStokesParameter(meta.Parameter)
	if err != nil {
		return nil, fmt.Errorf("product metadata: %w", err)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening product file: %w", err)
	}
	defer func() { _ = file.Close() }()

	orders, err := readRows(file, path, parameter, &meta)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &Product{Metadata: meta, Orders: orders}, nil
}

func readRows(r io.Reader, source string, parameter polar.StokesParameter, meta *Metadata) (*spectrum.OrderVector, error) {
	reader := csv.NewReader(r)
	columns := productColumns(parameter)
	reader.FieldsPerRecord = len(columns)

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading CSV header: %w", err)
	}
	if header[6] != columns[6] {
		return nil, fmt.Errorf("column %q does not match stokes parameter %v", header[6], parameter)
	}

	v := spectrum.NewOrderVector(source)
	var current *spectrum.Order
	line := 1
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("reading CSV row: %w", err)
		}
		number, err := strconv.Atoi(row[0])
		if err != nil {
			return nil, fmt.Errorf("row %d: order: %w", line, err)
		}
		values := make([]float64, len(columns)-2)
		for i := range values {
			values[i], err = strconv.ParseFloat(row[i+2], 64)
			if err != nil {
				return nil, fmt.Errorf("row %d: %s: %w", line, columns[i+2], err)
			}
		}

		if current == nil || current.Number != number {
			current = &spectrum.Order{Number: number, Polarimetry: &polar.Result{
				Method:    meta.Method,
				Parameter: parameter,
				Exposures: meta.Exposures,
			}}
			v.Add(current)
		}
		res := current.Polarimetry
		current.Distance = append(current.Distance, values[0])
		current.Wavelength = append(current.Wavelength, values[1])
		res.StokesI = append(res.StokesI, polar.FluxSample{Flux: values[2], Variance: values[3]})
		res.Stokes = append(res.Stokes, polar.FluxSample{Flux: values[4], Variance: values[5]})
		res.Degree = append(res.Degree, polar.FluxSample{Flux: values[6], Variance: values[7]})
		if meta.Exposures == 4 {
			res.FirstNull = append(res.FirstNull, values[8])
			res.SecondNull = append(res.SecondNull, values[9])
		}
		res.CrossCorrelation = append(res.CrossCorrelation, values[10])
	}
	return v, nil
}

func valueAt(values []float64, i int) float64 {
	if i < len(values) {
		return values[i]
	}
	return 0
}

// nullAt reads an optional null spectrum; undefined nulls are NaN.
func nullAt(values []float64, i int) float64 {
	if values == nil {
		return math.NaN()
	}
	return values[i]
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
