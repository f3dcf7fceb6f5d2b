package externalApi

import "errors"

var (
	ErrNotFound = errors.New("error not found")
	ErrNoPrice  = errors.New("error no price available")
)
