package model

import "errors"

var (
	// ErrMalformedTimestamp is returned when a record boundary cannot be parsed
	ErrMalformedTimestamp = errors.New("malformed timestamp")
	// ErrInvalidMonthKey is returned for month keys not in YYYY-MM form
	ErrInvalidMonthKey = errors.New("invalid month key")
)
