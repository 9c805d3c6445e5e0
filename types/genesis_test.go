package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultParamsValid(t *testing.T) {
	p := DefaultParams()
	require.NoError(t, p.Validate())
	assert.Equal(t, uint64(7200), p.VotingPeriod)

	p.TierPeriods = p.TierPeriods[:2]
	require.Error(t, p.Validate())
}

func TestGenesisAppStateValidate(t *testing.T) {
	gs := GenesisAppState{
		Owner:  "0x00000000000000000000000000000000000000aa",
		Params: DefaultParams(),
		Balances: []GenesisBalance{
			{Address: "0x00000000000000000000000000000000000000bb", Asset: "gp", Amount: "100", Delegate: true},
		},
	}
	require.NoError(t, gs.Validate())

	gs.Balances[0].Amount = "-1"
	require.Error(t, gs.Validate())
	gs.Balances[0].Amount = "1"
	gs.Owner = "nope"
	require.Error(t, gs.Validate())
}
