package cmd

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListRuns_ShowsRecordedRuns(t *testing.T) {
	// GIVEN two reductions recorded in one catalog
	dir := t.TempDir()
	opts := validOptions()
	opts.Inputs = writeExposures(t, dir, 4, []int{1, 2}, nil)
	opts.Catalog = filepath.Join(dir, "catalog.db")
	opts.Output = filepath.Join(dir, "a.csv")
	first, err := runReduction(context.Background(), opts)
	require.NoError(t, err)
	opts.Output = filepath.Join(dir, "b.csv")
	opts.Method = "ratio"
	second, err := runReduction(context.Background(), opts)
	require.NoError(t, err)

	// WHEN listed
	var buf bytes.Buffer
	require.NoError(t, listRuns(context.Background(), &buf, opts.Catalog))

	// THEN both runs appear under the header
	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "RUN"))
	assert.Contains(t, out, first.RunID)
	assert.Contains(t, out, second.RunID)
	assert.Equal(t, 3, strings.Count(out, "\n"))
}
