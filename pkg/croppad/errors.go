package croppad

import "fmt"

// ConfigError reports an invalid transform parameter. It is returned by
// transform constructors, and by Apply when a parameter can only be checked
// against a concrete image shape.
type ConfigError struct {
	// Transform names the transform that rejected the parameter
	Transform string

	// Param names the offending parameter
	Param string

	// Reason says what is wrong with it
	Reason string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s for %s: %s", e.Param, e.Transform, e.Reason)
}

func configErrorf(transform, param, format string, args ...any) *ConfigError {
	return &ConfigError{
		Transform: transform,
		Param:     param,
		Reason:    fmt.Sprintf(format, args...),
	}
}
