package polar

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig_FieldEquivalence(t *testing.T) {
	got := NewConfig(4, "ratio", StokesV)
	want := Config{Exposures: 4, Method: "ratio", Parameter: StokesV}
	assert.Equal(t, want, got)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want error
	}{
		{"valid four", NewConfig(4, "difference", StokesQ), nil},
		{"valid two by code", NewConfig(2, "2", StokesU), nil},
		{"three exposures", NewConfig(3, "difference", StokesQ), ErrInvalidExposureCount},
		{"unknown method", NewConfig(4, "median", StokesQ), ErrInvalidMethod},
		{"stokes I requested", NewConfig(4, "ratio", StokesI), ErrInvalidParameter},
		{"out of range parameter", NewConfig(4, "ratio", StokesParameter(9)), ErrInvalidParameter},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, tt.want), "err = %v, want %v", err, tt.want)
		})
	}
}

func TestConfig_NewEngine_UsesSelectedMethod(t *testing.T) {
	engine, err := NewConfig(4, "3", StokesU).NewEngine()
	require.NoError(t, err)
	assert.Equal(t, MethodDifferenceWithBeamSwap, engine.Method().Name())
	assert.Equal(t, StokesU, engine.Parameter())
}
