package model

import "errors"

var (
	// ErrNotValid is returned when a configuration value is not valid.
	ErrNotValid = errors.New("not valid")
)
