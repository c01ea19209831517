package sink

import (
	"strconv"

	"github.com/stellarcarbon/sorocarbon/auth"
	"github.com/stellarcarbon/sorocarbon/crypto"
)

// Function names as they appear in invocations and signed approvals.
const (
	FnInitialize   = "initialize"
	FnSinkCarbon   = "sink_carbon"
	FnGetMinimum   = "get_minimum_sink_amount"
	FnIsActive     = "is_active"
	FnGetSuccessor = "get_successor"
	FnGetAdmin     = "get_admin"
	FnSetMinimum   = "set_minimum_sink_amount"
	FnActivate     = "activate"
	FnDeactivate   = "deactivate"
	FnResetAdmin   = "reset_admin"
	FnSetSuccessor = "set_successor"
)

// SinkInvocation is the invocation a funder approves to retire req.
func SinkInvocation(contract crypto.Address, req SinkRequest) auth.Invocation {
	return auth.Invocation{
		Contract: contract,
		Function: FnSinkCarbon,
		Args: []string{
			req.Funder.String(),
			req.Recipient.String(),
			strconv.FormatInt(req.Amount, 10),
			req.ProjectID,
			req.MemoText,
			req.Email,
		},
	}
}

// SetMinimumInvocation is the invocation the admin approves to change the
// minimum.
func SetMinimumInvocation(contract crypto.Address, amount int64) auth.Invocation {
	return auth.Invocation{Contract: contract, Function: FnSetMinimum, Args: []string{strconv.FormatInt(amount, 10)}}
}

// SetSuccessorInvocation is the invocation the admin approves to record a
// successor.
func SetSuccessorInvocation(contract, successor crypto.Address) auth.Invocation {
	return auth.Invocation{Contract: contract, Function: FnSetSuccessor, Args: []string{successor.String()}}
}

// AdminInvocation covers the argument-less admin functions.
func AdminInvocation(contract crypto.Address, function string) auth.Invocation {
	return auth.Invocation{Contract: contract, Function: function}
}
