package asset

import (
	"errors"
	"fmt"
)

// Code is the numeric error surface of an asset service. Values match the
// Stellar asset contract so callers can classify them uniformly.
type Code uint32

const (
	InternalError              Code = 1
	OperationNotSupportedError Code = 2
	AlreadyInitializedError    Code = 3
	UnauthorizedError          Code = 4
	AuthenticationError        Code = 5
	AccountMissingError        Code = 6
	AccountIsNotClassic        Code = 7
	NegativeAmountError        Code = 8
	AllowanceError             Code = 9
	BalanceError               Code = 10
	BalanceDeauthorizedError   Code = 11
	OverflowError              Code = 12
	TrustlineMissingError      Code = 13
)

var codeNames = map[Code]string{
	InternalError:              "internal error",
	OperationNotSupportedError: "operation not supported",
	AlreadyInitializedError:    "already initialized",
	UnauthorizedError:          "unauthorized",
	AuthenticationError:        "authentication failed",
	AccountMissingError:        "account missing",
	AccountIsNotClassic:        "account is not classic",
	NegativeAmountError:        "negative amount",
	AllowanceError:             "allowance exceeded",
	BalanceError:               "balance error",
	BalanceDeauthorizedError:   "balance deauthorized",
	OverflowError:              "overflow",
	TrustlineMissingError:      "trustline missing",
}

// ErrUnknownAsset is returned when no asset service exists at an address.
var ErrUnknownAsset = errors.New("asset: unknown asset")

func (c Code) Error() string {
	if name, ok := codeNames[c]; ok {
		return fmt.Sprintf("asset: %s (%d)", name, uint32(c))
	}
	return fmt.Sprintf("asset: error code %d", uint32(c))
}

// ErrorCode exposes the numeric code through wrapping errors.
func (c Code) ErrorCode() uint32 { return uint32(c) }

func fail(code Code, format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", code, fmt.Sprintf(format, args...))
}
