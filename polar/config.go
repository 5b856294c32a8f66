package polar

import "fmt"

// Config groups the polarimetry selection for one reduction run.
type Config struct {
	Exposures int             // number of exposures combined (2 or 4)
	Method    string          // registered method name or legacy numeric code
	Parameter StokesParameter // requested parameter (Q, U or V)
}

// NewConfig creates a Config with all fields explicitly specified.
func NewConfig(exposures int, method string, parameter StokesParameter) Config {
	return Config{Exposures: exposures, Method: method, Parameter: parameter}
}

// Validate checks every field. Errors wrap the package's configuration
// error classes.
func (c Config) Validate() error {
	if err := ValidateExposureCount(c.Exposures); err != nil {
		return err
	}
	if _, err := NewMethod(c.Method); err != nil {
		return err
	}
	if !c.Parameter.Requestable() {
		return fmt.Errorf("%w: %v; valid: Q, U, V", ErrInvalidParameter, c.Parameter)
	}
	return nil
}

// NewEngine validates the configuration and builds the matching Engine.
func (c Config) NewEngine() (*Engine, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	method, err := NewMethod(c.Method)
	if err != nil {
		return nil, err
	}
	return NewEngine(method, c.Parameter)
}
