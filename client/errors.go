package client

import (
	"fmt"
)

// Error codes written to the durable error log. They keep the numbering the
// operators already grep for.
const (
	CodeAddressStatus       = 201
	CodeAddressTransport    = 202
	CodeAddressTxsStatus    = 203
	CodeAddressTxsTransport = 204
	CodeTxStatus            = 205
	CodeTxTransport         = 206
	CodeOutspendsStatus     = 207
	CodeOutspendsTransport  = 208
	CodeTipStatus           = 209
	CodeTipTransport        = 210
)

// FetchError describes a failed ledger request.
type FetchError struct {
	// Op is the client method that failed, e.g. "GetTransaction".
	Op string
	// Code is the error-log code for the failure class.
	Code int
	// StatusCode is the HTTP status, zero for transport and decode failures.
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// endpoint groups the method name with its two error codes.
type endpoint struct {
	method        string
	statusCode    int
	transportCode int
}

var (
	addressEndpoint    = endpoint{"GetAddressSummary", CodeAddressStatus, CodeAddressTransport}
	addressTxsEndpoint = endpoint{"GetAddressTransactions", CodeAddressTxsStatus, CodeAddressTxsTransport}
	txEndpoint         = endpoint{"GetTransaction", CodeTxStatus, CodeTxTransport}
	outspendsEndpoint  = endpoint{"GetOutspends", CodeOutspendsStatus, CodeOutspendsTransport}
	tipEndpoint        = endpoint{"GetTipHeight", CodeTipStatus, CodeTipTransport}
)
