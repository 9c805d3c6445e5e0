package main

import (
	"github.com/calehh/gp-node/config"
	"github.com/calehh/gp-node/crypto"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var pubkeyCmd = &cobra.Command{
	Use:   "pubkey",
	Short: "Show the validator consensus key",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.DefaultConfig(homeDir(cmd))
		info, err := crypto.LoadValidatorInfo(cfg.PrivValidatorKeyFile())
		if err != nil {
			return err
		}
		return printOutput(cmd, info, table.Row{"TYPE", "ADDRESS", "PUBKEY"}, func() []table.Row {
			return []table.Row{{info.KeyType, info.Address, info.PubKey}}
		})
	},
}

func init() {
	outputFlag(pubkeyCmd)
}
