package sink

import (
	"errors"
	"fmt"
)

// Error is the typed, caller-facing failure surface of the sink contract. The
// numeric values are stable and shared with external consumers.
type Error uint32

const (
	ErrContractDeactivated       Error = 1066
	ErrAmountTooLow              Error = 1067
	ErrNegativeAmount            Error = 1068
	ErrInsufficientBalance       Error = 1069
	ErrAccountOrTrustlineMissing Error = 1070
	ErrTrustlineLimitReached     Error = 1071
	ErrInvalidAddress            Error = 1072
)

var errorNames = map[Error]string{
	ErrContractDeactivated:       "contract deactivated",
	ErrAmountTooLow:              "amount too low",
	ErrNegativeAmount:            "negative amount",
	ErrInsufficientBalance:       "insufficient balance",
	ErrAccountOrTrustlineMissing: "account or trustline missing",
	ErrTrustlineLimitReached:     "trustline limit reached",
	ErrInvalidAddress:            "invalid address",
}

func (e Error) Error() string {
	if name, ok := errorNames[e]; ok {
		return "sink: " + name
	}
	return fmt.Sprintf("sink: error %d", uint32(e))
}

// ErrorCode returns the numeric code.
func (e Error) ErrorCode() uint32 { return uint32(e) }

// Name returns the symbolic error name, e.g. "AmountTooLow".
func (e Error) Name() string {
	switch e {
	case ErrContractDeactivated:
		return "ContractDeactivated"
	case ErrAmountTooLow:
		return "AmountTooLow"
	case ErrNegativeAmount:
		return "NegativeAmount"
	case ErrInsufficientBalance:
		return "InsufficientBalance"
	case ErrAccountOrTrustlineMissing:
		return "AccountOrTrustlineMissing"
	case ErrTrustlineLimitReached:
		return "TrustlineLimitReached"
	case ErrInvalidAddress:
		return "InvalidAddress"
	default:
		return fmt.Sprintf("Error(%d)", uint32(e))
	}
}

var (
	// ErrNotInitialized is wrapped into an abort when policy keys are missing.
	ErrNotInitialized = errors.New("sink: contract not initialized")
	// ErrAlreadyInitialized is wrapped into an abort on a second Initialize.
	ErrAlreadyInitialized = errors.New("sink: contract already initialized")
)

// AsError extracts the typed sink error from err.
func AsError(err error) (Error, bool) {
	var typed Error
	if errors.As(err, &typed) {
		return typed, true
	}
	return 0, false
}
