package sink

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stellarcarbon/sorocarbon/core"
	"github.com/stellarcarbon/sorocarbon/core/state"
)

func TestExtendTTLOnSink(t *testing.T) {
	f := newFixture(t)
	ttl, err := f.instanceTTL()
	require.NoError(t, err)
	require.Equal(t, uint32(35_000), ttl)

	require.NoError(t, f.sink(1_000_000))
	ttl, err = f.instanceTTL()
	require.NoError(t, err)
	require.Equal(t, 30*DayInLedgers, ttl)

	require.NoError(t, f.node.SetLedger(startLedger+2*DayInLedgers))
	ttl, err = f.instanceTTL()
	require.NoError(t, err)
	require.Equal(t, 28*DayInLedgers, ttl)

	require.NoError(t, f.sink(1_000_000))
	ttl, err = f.instanceTTL()
	require.NoError(t, err)
	require.Equal(t, 30*DayInLedgers, ttl)
}

func TestExtendTTLOnFailedCallIsDiscarded(t *testing.T) {
	f := newFixture(t)
	require.ErrorIs(t, f.sink(1), ErrAmountTooLow)
	ttl, err := f.instanceTTL()
	require.NoError(t, err)
	require.Equal(t, uint32(35_000), ttl)
}

func TestExtendTTLOnQueries(t *testing.T) {
	f := newFixture(t)
	active, err := f.client.IsActive(f.ctx)
	require.NoError(t, err)
	require.True(t, active)
	ttl, err := f.instanceTTL()
	require.NoError(t, err)
	require.Equal(t, 30*DayInLedgers, ttl)

	require.NoError(t, f.node.SetLedger(startLedger+2*DayInLedgers))
	_, err = f.client.GetSuccessor(f.ctx)
	require.NoError(t, err)
	ttl, err = f.instanceTTL()
	require.NoError(t, err)
	require.Equal(t, 30*DayInLedgers, ttl)
}

func TestContractArchival(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.node.SetLedger(startLedger+2*DayInLedgers))
	ttl, err := f.instanceTTL()
	require.NoError(t, err)
	require.Equal(t, 35_000-2*DayInLedgers, ttl)

	minimum, err := f.client.GetMinimum(f.ctx)
	require.NoError(t, err)
	require.Positive(t, minimum)
	ttl, err = f.instanceTTL()
	require.NoError(t, err)
	require.Equal(t, 30*DayInLedgers, ttl)

	require.NoError(t, f.node.SetLedger(startLedger+2*DayInLedgers+31*DayInLedgers))
	_, err = f.instanceTTL()
	require.ErrorIs(t, err, state.ErrArchived)

	_, err = f.client.GetMinimum(f.ctx)
	require.True(t, core.IsAbort(err))
	require.ErrorIs(t, err, state.ErrArchived)
}
