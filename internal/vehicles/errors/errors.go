package errors

import "errors"

var (
	ErrNotFound = errors.New("vehicle not found")

	ErrDuplicateNumber = errors.New("vehicle number already exists")
)
