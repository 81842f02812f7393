package service

import "errors"

var (
	ErrUnprocessableEntity = errors.New("unprocessable entity")
	ErrUpstream            = errors.New("provider request failed")
	ErrTimeout             = errors.New("provider request timed out")
	ErrMissingRequestID    = errors.New("provider returned no request id")
	ErrAirtimeRejected     = errors.New("airtime request rejected")
)
