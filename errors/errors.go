package errors

import "fmt"

var (
	ErrWorkerPanic     = fmt.Errorf("worker panic")
	ErrMalformedFrame  = fmt.Errorf("malformed client frame")
	ErrDeliveryTimeout = fmt.Errorf("delivery timeout, connection too slow")
	ErrEmptyWords      = fmt.Errorf("no words have been found")
)
