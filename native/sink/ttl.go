package sink

import (
	"github.com/stellarcarbon/sorocarbon/core/state"
)

// Lifetimes in ledgers; one ledger closes roughly every five seconds.
const (
	DayInLedgers              uint32 = 17_280
	InstanceBumpAmount               = 30 * DayInLedgers
	InstanceLifetimeThreshold        = InstanceBumpAmount - DayInLedgers
)

func extendInstanceTTL(inst *state.Instance) error {
	_, err := inst.ExtendTTL(InstanceLifetimeThreshold, InstanceBumpAmount)
	return err
}
