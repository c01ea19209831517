package events

import (
	"strconv"

	"github.com/stellarcarbon/sorocarbon/core/types"
	"github.com/stellarcarbon/sorocarbon/crypto"
)

// TypeSinkDiagnostic is published for every classified or fatal sub-operation
// failure, whether or not the invocation commits.
const TypeSinkDiagnostic = "sink.diagnostic"

type SinkDiagnostic struct {
	Contract crypto.Address
	Step     string
	// AssetCode is the code reported by the asset service, zero when the
	// failure carried none.
	AssetCode uint32
	// Result is the caller-facing error code, zero for fatal outcomes.
	Result  uint32
	Fatal   bool
	Message string
	Ledger  uint32
}

func (SinkDiagnostic) EventType() string { return TypeSinkDiagnostic }

func (e SinkDiagnostic) Event() *types.Event {
	return &types.Event{
		Type:     TypeSinkDiagnostic,
		Contract: e.Contract.String(),
		Ledger:   e.Ledger,
		Attributes: map[string]string{
			"step":      e.Step,
			"assetCode": strconv.FormatUint(uint64(e.AssetCode), 10),
			"result":    strconv.FormatUint(uint64(e.Result), 10),
			"fatal":     strconv.FormatBool(e.Fatal),
			"message":   e.Message,
		},
	}
}
