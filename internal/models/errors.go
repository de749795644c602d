package models

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidParameter reports crop or scale parameters the data cannot support.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrDegenerateInput reports an orientation population whose mean
	// direction cancels out, so no alignment correction can be derived.
	ErrDegenerateInput = errors.New("degenerate input")

	// ErrAllOutOfBounds reports a sampling run in which no query point hit
	// the field, which points to a coordinate system mismatch.
	ErrAllOutOfBounds = errors.New("all query points out of bounds")
)

// ParamError identifies the offending parameter of an ErrInvalidParameter.
type ParamError struct {
	Param  string
	Value  string
	Reason string
}

func (e *ParamError) Error() string {
	return fmt.Sprintf("invalid parameter %s=%s: %s", e.Param, e.Value, e.Reason)
}

func (e *ParamError) Unwrap() error { return ErrInvalidParameter }

// InvalidParam builds a ParamError from any printable value.
func InvalidParam(param string, value interface{}, reason string) error {
	return &ParamError{Param: param, Value: fmt.Sprint(value), Reason: reason}
}
