package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specpol/specpol/internal/params"
	"github.com/specpol/specpol/polar"
	"github.com/specpol/specpol/polar/reduce"
)

func validOptions() ReduceOptions {
	return ReduceOptions{
		Inputs:    []string{"1.csv", "2.csv", "3.csv", "4.csv"},
		Output:    "out.csv",
		Exposures: 4,
		Method:    "difference",
		Stokes:    "V",
		Workers:   1,
	}
}

func TestReduceOptions_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*ReduceOptions)
		wantErr error
		wantMsg string
	}{
		{"stokes I", func(o *ReduceOptions) { o.Stokes = "I" }, polar.ErrInvalidParameter, ""},
		{"unknown stokes", func(o *ReduceOptions) { o.Stokes = "W" }, polar.ErrInvalidParameter, ""},
		{"unknown method", func(o *ReduceOptions) { o.Method = "median" }, polar.ErrInvalidMethod, ""},
		{"three exposures", func(o *ReduceOptions) { o.Exposures = 3 }, polar.ErrInvalidExposureCount, ""},
		{"missing output", func(o *ReduceOptions) { o.Output = "" }, nil, "output path"},
		{"input count", func(o *ReduceOptions) { o.Inputs = o.Inputs[:2] }, nil, "2 input files for 4 exposures"},
		{"empty input", func(o *ReduceOptions) { o.Inputs[1] = "" }, nil, "input 2"},
		{"workers", func(o *ReduceOptions) { o.Workers = 0 }, nil, "workers"},
		{"script without data", func(o *ReduceOptions) { o.PlotScript = "p.gnu" }, nil, "data file"},
		{"plot without script", func(o *ReduceOptions) { o.Plot = true }, nil, "plot script"},
		{"continuum without surface", func(o *ReduceOptions) { o.PlotContinuum = true }, nil, "surface"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			o := validOptions()
			tc.mutate(&o)
			err := o.Validate()
			require.Error(t, err)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
			}
			if tc.wantMsg != "" {
				assert.Contains(t, err.Error(), tc.wantMsg)
			}
		})
	}
	o := validOptions()
	assert.NoError(t, o.Validate())
}

func TestLoadRunRecipe_StrictParsing(t *testing.T) {
	// GIVEN a recipe with a typo in one key
	path := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte("method: ratio\nexposure: 2\n"), 0o644))

	// WHEN loaded
	_, err := LoadRunRecipe(path)

	// THEN the unknown key is rejected
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exposure")
}

func TestLoadRunRecipe_MissingFile(t *testing.T) {
	_, err := LoadRunRecipe(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestApplySources_Precedence(t *testing.T) {
	// GIVEN an explicit --method flag, a recipe and a parameter table
	dir := t.TempDir()
	recipePath := filepath.Join(dir, "run.yaml")
	require.NoError(t, os.WriteFile(recipePath, []byte(`
inputs: [a.csv, b.csv]
output: recipe.csv
method: ratio
exposures: 2
`), 0o644))
	recipe, err := LoadRunRecipe(recipePath)
	require.NoError(t, err)

	store := params.New(filepath.Join(dir, "p.toml"))
	store.Set("polar.method", "difference-beam-swap")
	store.Set("polar.exposures", "4")
	store.Set("polar.stokes", " Q ")
	store.Set("polar.workers", "3")

	opts := validOptions()
	opts.Method = "difference"
	set := setTracker{"method": true}

	// WHEN the recipe and then the table are applied
	applyRecipe(&opts, set, recipe)
	require.NoError(t, applyParams(&opts, set, store))

	// THEN the flag wins, then the recipe, then the table
	assert.Equal(t, "difference", opts.Method, "explicit flag")
	assert.Equal(t, 2, opts.Exposures, "recipe beats parameter table")
	assert.Equal(t, []string{"a.csv", "b.csv"}, opts.Inputs)
	assert.Equal(t, "recipe.csv", opts.Output)
	assert.Equal(t, "Q", opts.Stokes, "table fills what nothing else set")
	assert.Equal(t, 3, opts.Workers)
	assert.NoError(t, opts.Validate())
}

func TestApplyParams_InvalidInteger(t *testing.T) {
	store := params.New("unused")
	store.Set("polar.minorder", "low")
	opts := validOptions()

	err := applyParams(&opts, setTracker{}, store)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "polar.minorder")
}

func TestApplyRecipe_NilRecipe(t *testing.T) {
	opts := validOptions()
	applyRecipe(&opts, setTracker{}, nil)
	assert.Equal(t, validOptions(), opts)
}

func TestResolveReduceOptions_OrderBoundsOnlyWhenFlagGiven(t *testing.T) {
	saved := reduceOpts
	t.Cleanup(func() {
		reduceOpts = saved
		orderFlag, minOrderFlag, maxOrderFlag = 0, 0, 0
	})
	reduceOpts = validOptions()
	newCmd := func(args ...string) *cobra.Command {
		c := &cobra.Command{}
		c.Flags().IntVar(&orderFlag, "order", 0, "")
		c.Flags().IntVar(&minOrderFlag, "min-order", 0, "")
		c.Flags().IntVar(&maxOrderFlag, "max-order", 0, "")
		require.NoError(t, c.Flags().Parse(args))
		return c
	}

	// GIVEN no order flags
	opts, err := resolveReduceOptions(newCmd())

	// THEN every order with data is requested
	require.NoError(t, err)
	assert.Equal(t, reduce.AllOrders(), opts.RangeRequest())

	// GIVEN --order -1, a value and not a marker for "unset"
	opts, err = resolveReduceOptions(newCmd("--order=-1"))

	// THEN the request pins order -1
	require.NoError(t, err)
	assert.Equal(t, reduce.SingleOrder(-1), opts.RangeRequest())

	opts, err = resolveReduceOptions(newCmd("--min-order=0", "--max-order=40"))
	require.NoError(t, err)
	assert.Equal(t, reduce.Between(0, 40), opts.RangeRequest())
}

func TestApplyParams_OrderBounds(t *testing.T) {
	store := params.New("unused")
	store.Set("polar.minorder", "22")
	store.Set("polar.maxorder", "57")
	opts := validOptions()
	maxOrder := 30
	opts.MaxOrder = &maxOrder

	require.NoError(t, applyParams(&opts, setTracker{"max-order": true}, store))

	assert.Equal(t, reduce.Between(22, 30), opts.RangeRequest())
}
