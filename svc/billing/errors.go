package billing

import "errors"

var (
	ErrInvoiceNotFound  = errors.New("invoice not found")
	ErrDuplicateInvoice = errors.New("invoice already recorded for provider payment")
	ErrInvalidEvent     = errors.New("invalid payment event")
	ErrInvalidInvoice   = errors.New("invalid invoice")
)
