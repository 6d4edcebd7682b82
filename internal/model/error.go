package model

import "errors"

// Error definitions for the model package.
var (
	ErrModelNotFound  = errors.New("model not found in registry")
	ErrModelNotLoaded = errors.New("models have not been loaded yet")
	ErrModelTypeWrong = errors.New("model has the wrong type for this service")
)
