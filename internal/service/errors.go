package service

import "errors"

var (
	ErrValidation       = errors.New("error invalid investment")
	ErrPriceUnavailable = errors.New("error price unavailable")
	ErrNotification     = errors.New("error post-write notification")
	ErrStorage          = errors.New("error ledger storage")
)
