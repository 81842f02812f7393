package topup

import "errors"

var (
	ErrValidation     = errors.New("validation failed")
	ErrNotFound       = errors.New("top-up request not found")
	ErrProvider       = errors.New("provider error")
	ErrAlreadyExists  = errors.New("top-up request already exists")
	ErrStatusConflict = errors.New("top-up request status changed concurrently")
	ErrTransition     = errors.New("illegal top-up status transition")
	ErrRetryExhausted = errors.New("disbursement retries exhausted")
	ErrNotRetryable   = errors.New("top-up request is not awaiting a disbursement retry")
	ErrStoreBusy      = errors.New("top-up store busy, retry later")
)
