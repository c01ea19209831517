package sink

import (
	"errors"
	"fmt"

	"github.com/stellarcarbon/sorocarbon/core"
	"github.com/stellarcarbon/sorocarbon/core/events"
	"github.com/stellarcarbon/sorocarbon/native/asset"
)

// Step names a sub-operation of the swap.
type Step string

const (
	StepBurn        Step = "burn"
	StepAuthorize   Step = "set_authorized"
	StepMint        Step = "mint"
	StepDeauthorize Step = "unset_authorized"
	StepSetAdmin    Step = "set_admin"
)

// classification lists the asset codes each step recovers from. Codes not
// listed, steps not listed, and failures that carry no code all abort.
var classification = map[Step]map[asset.Code]Error{
	StepBurn: {
		asset.BalanceError:          ErrInsufficientBalance,
		asset.TrustlineMissingError: ErrAccountOrTrustlineMissing,
	},
	StepAuthorize: {
		asset.TrustlineMissingError: ErrAccountOrTrustlineMissing,
	},
	StepMint: {
		asset.BalanceError: ErrTrustlineLimitReached,
	},
}

type codedError interface {
	ErrorCode() uint32
}

// Classify maps the outcome of an asset-service call at step to the typed
// sink error it stands for, or to a fatal abort.
func Classify(step Step, err error) (Error, bool) {
	if err == nil || core.IsAbort(err) {
		return 0, false
	}
	var coded codedError
	if !errors.As(err, &coded) {
		return 0, false
	}
	typed, ok := classification[step][asset.Code(coded.ErrorCode())]
	return typed, ok
}

// classify applies Classify and reports the outcome as a diagnostic.
func (c *Contract) classify(env *core.Env, step Step, err error) error {
	if err == nil {
		return nil
	}
	diag := events.SinkDiagnostic{
		Contract: c.id,
		Step:     string(step),
		Message:  err.Error(),
		Ledger:   env.Ledger(),
	}
	var coded codedError
	if errors.As(err, &coded) {
		diag.AssetCode = coded.ErrorCode()
	}
	typed, ok := Classify(step, err)
	if ok {
		diag.Result = typed.ErrorCode()
		env.Diagnose(diag)
		return typed
	}
	diag.Fatal = true
	env.Diagnose(diag)
	return core.Abort(fmt.Errorf("sink: %s: %w", step, err))
}
