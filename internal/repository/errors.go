package repository

import "errors"

// Repository errors
var (
	ErrAccountNotFound    = errors.New("account not found")
	ErrAccountNumberTaken = errors.New("account number already exists")
	ErrVersionConflict    = errors.New("account version conflict")
)
