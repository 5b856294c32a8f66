package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/specpol/specpol/internal/params"
	"github.com/specpol/specpol/polar"
	"github.com/specpol/specpol/polar/reduce"
)

// ReduceOptions is the fully resolved configuration of one reduce run.
type ReduceOptions struct {
	Inputs    []string // spectrum files in acquisition order
	Output    string
	Exposures int
	Method    string
	Stokes    string
	Order     *int // nil selects by MinOrder/MaxOrder
	MinOrder  *int // nil means the lowest order with data
	MaxOrder  *int // nil means the highest order with data
	Workers   int

	DataFile      string
	Surface       bool
	PlotScript    string
	PlotEPS       string
	PlotContinuum bool
	Plot          bool
	Interactive   bool

	Catalog string
}

// PolarConfig returns the polarimetry selection. The Stokes letter is
// parsed here; Validate reports parse failures.
func (o *ReduceOptions) PolarConfig() (polar.Config, error) {
	parameter, err := polar.ParseStokesParameter(o.Stokes)
	if err != nil {
		return polar.Config{}, err
	}
	return polar.NewConfig(o.Exposures, o.Method, parameter), nil
}

// RangeRequest returns the order selection.
func (o *ReduceOptions) RangeRequest() reduce.RangeRequest {
	return reduce.RangeRequest{Order: o.Order, MinOrder: o.MinOrder, MaxOrder: o.MaxOrder}
}

// Validate checks everything that can be checked before any file is read.
func (o *ReduceOptions) Validate() error {
	cfg, err := o.PolarConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if o.Output == "" {
		return errors.New("output path is required")
	}
	if len(o.Inputs) != o.Exposures {
		return fmt.Errorf("%d input files for %d exposures", len(o.Inputs), o.Exposures)
	}
	for i, in := range o.Inputs {
		if in == "" {
			return fmt.Errorf("input %d path is empty", i+1)
		}
	}
	if o.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", o.Workers)
	}
	if o.PlotScript != "" && o.DataFile == "" {
		return errors.New("plot script requires a data file")
	}
	if (o.Plot || o.PlotEPS != "") && o.PlotScript == "" {
		return errors.New("plotting requires a plot script path")
	}
	if o.PlotContinuum && !o.Surface {
		return errors.New("continuum plots require the surface data file")
	}
	return nil
}

// RunRecipe is a YAML file holding reduce settings. Every field is optional;
// a recipe value applies only where the flag was not set explicitly.
type RunRecipe struct {
	Inputs        []string `yaml:"inputs"`
	Output        *string  `yaml:"output"`
	Exposures     *int     `yaml:"exposures"`
	Method        *string  `yaml:"method"`
	Stokes        *string  `yaml:"stokes"`
	Order         *int     `yaml:"order"`
	MinOrder      *int     `yaml:"min_order"`
	MaxOrder      *int     `yaml:"max_order"`
	Workers       *int     `yaml:"workers"`
	DataFile      *string  `yaml:"data_file"`
	Surface       *bool    `yaml:"surface"`
	PlotScript    *string  `yaml:"plot_script"`
	PlotEPS       *string  `yaml:"plot_eps"`
	PlotContinuum *bool    `yaml:"plot_continuum"`
	Catalog       *string  `yaml:"catalog"`
}

// LoadRunRecipe reads and parses a YAML run recipe.
// Uses strict parsing: unrecognized keys (typos) are rejected.
func LoadRunRecipe(path string) (*RunRecipe, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading run recipe: %w", err)
	}
	var recipe RunRecipe
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&recipe); err != nil {
		return nil, fmt.Errorf("parsing run recipe: %w", err)
	}
	return &recipe, nil
}

// setTracker records which options already have a value from a higher
// precedence source.
type setTracker map[string]bool

func (s setTracker) claim(name string) bool {
	if s[name] {
		return false
	}
	s[name] = true
	return true
}

func applyString(set setTracker, name string, dst *string, v *string) {
	if v != nil && set.claim(name) {
		*dst = *v
	}
}

func applyInt(set setTracker, name string, dst *int, v *int) {
	if v != nil && set.claim(name) {
		*dst = *v
	}
}

func applyOptionalInt(set setTracker, name string, dst **int, v *int) {
	if v != nil && set.claim(name) {
		n := *v
		*dst = &n
	}
}

func intRef(v int) *int { return &v }

func applyBool(set setTracker, name string, dst *bool, v *bool) {
	if v != nil && set.claim(name) {
		*dst = *v
	}
}

// applyRecipe copies recipe values into opts for options not yet set.
func applyRecipe(opts *ReduceOptions, set setTracker, r *RunRecipe) {
	if r == nil {
		return
	}
	if len(r.Inputs) > 0 && set.claim("input") {
		opts.Inputs = append([]string(nil), r.Inputs...)
	}
	applyString(set, "output", &opts.Output, r.Output)
	applyInt(set, "exposures", &opts.Exposures, r.Exposures)
	applyString(set, "method", &opts.Method, r.Method)
	applyString(set, "stokes", &opts.Stokes, r.Stokes)
	applyOptionalInt(set, "order", &opts.Order, r.Order)
	applyOptionalInt(set, "min-order", &opts.MinOrder, r.MinOrder)
	applyOptionalInt(set, "max-order", &opts.MaxOrder, r.MaxOrder)
	applyInt(set, "workers", &opts.Workers, r.Workers)
	applyString(set, "data-file", &opts.DataFile, r.DataFile)
	applyBool(set, "surface", &opts.Surface, r.Surface)
	applyString(set, "plot-script", &opts.PlotScript, r.PlotScript)
	applyString(set, "plot-eps", &opts.PlotEPS, r.PlotEPS)
	applyBool(set, "plot-continuum", &opts.PlotContinuum, r.PlotContinuum)
	applyString(set, "catalog", &opts.Catalog, r.Catalog)
}

// Parameter table keys read by reduce.
const (
	paramExposures = "polar.exposures"
	paramMethod    = "polar.method"
	paramStokes    = "polar.stokes"
	paramMinOrder  = "polar.minorder"
	paramMaxOrder  = "polar.maxorder"
	paramWorkers   = "polar.workers"
	paramCatalog   = "polar.catalog"
)

// applyParams fills options still unset from the parameter table.
func applyParams(opts *ReduceOptions, set setTracker, store *params.Store) error {
	if store == nil {
		return nil
	}
	ints := []struct {
		flag string
		key  string
		dst  *int
	}{
		{"exposures", paramExposures, &opts.Exposures},
		{"workers", paramWorkers, &opts.Workers},
	}
	for _, p := range ints {
		v, ok, err := storeInt(store, p.key)
		if err != nil {
			return err
		}
		if ok {
			applyInt(set, p.flag, p.dst, &v)
		}
	}

	bounds := []struct {
		flag string
		key  string
		dst  **int
	}{
		{"min-order", paramMinOrder, &opts.MinOrder},
		{"max-order", paramMaxOrder, &opts.MaxOrder},
	}
	for _, p := range bounds {
		v, ok, err := storeInt(store, p.key)
		if err != nil {
			return err
		}
		if ok {
			applyOptionalInt(set, p.flag, p.dst, &v)
		}
	}

	strs := []struct {
		flag string
		key  string
		dst  *string
	}{
		{"method", paramMethod, &opts.Method},
		{"stokes", paramStokes, &opts.Stokes},
		{"catalog", paramCatalog, &opts.Catalog},
	}
	for _, p := range strs {
		if v, ok := store.Get(p.key); ok {
			v = strings.TrimSpace(v)
			applyString(set, p.flag, p.dst, &v)
		}
	}
	return nil
}

// storeInt reads an integer key; ok is false when the key is absent.
func storeInt(store *params.Store, key string) (int, bool, error) {
	if _, ok := store.Get(key); !ok {
		return 0, false, nil
	}
	v, err := store.Int(key, 0)
	if err != nil {
		return 0, false, err
	}
	return v, true, nil
}
