package handler

import (
	"fmt"

	"github.com/calehh/gp-node/state"
	"github.com/calehh/gp-node/tx"
	"github.com/calehh/gp-node/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
)

func registerRoleHandlers(hdlrs map[tx.GPTxType]TxHandler, logger cmtlog.Logger, m *Modules) {
	hdlrs[tx.GPTxTypeAddGovernanceRole] = newTxHandler(logger, "addGovernanceRole", nil,
		func(st *state.State, env types.Env, t *tx.AddGovernanceRoleTx) error {
			switch t.Component {
			case types.ModuleVault:
				return m.Vault.AddGovernanceRole(st, env, t.Account)
			case m.GP.Name(), m.Stable.Name():
				l, err := m.Ledger(tx.Asset(t.Component))
				if err != nil {
					return err
				}
				if err = l.Roles.Grant(st, env, t.Account); err != nil {
					return err
				}
				st.Emit(types.EncodeEventRoleGranted(&types.EventRoleGranted{Component: t.Component, Account: t.Account}))
				return nil
			}
			return fmt.Errorf("%w: no roles on %q", types.ErrInvalidTx, t.Component)
		})
}
