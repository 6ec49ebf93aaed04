package model

import "errors"

// Error kinds shared by services. Concrete errors wrap one of these so transports can
// map them without knowing every sentinel.
var (
	ErrValidation = errors.New("validation error")
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
)
