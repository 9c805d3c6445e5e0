package main

import (
	"path/filepath"

	"github.com/calehh/gp-node/config"
	"github.com/spf13/cobra"
)

const (
	FlagHome      = "home"
	FlagChainID   = "chain-id"
	FlagOverwrite = "overwrite"
	FlagURL       = "url"
	FlagKey       = "key"
	FlagOutput    = "output"

	DefaultKeyName = "account.key"
)

var rootCmd = &cobra.Command{
	Use:          "gp",
	Short:        "gp is a governance-gated donation chain",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().String(FlagHome, "", "home directory (default $HOME/.gp)")
}

func homeDir(cmd *cobra.Command) string {
	home, _ := cmd.Flags().GetString(FlagHome)
	if home == "" {
		home = config.DefaultHome()
	}
	return home
}

func defaultKeyPath(home string) string {
	return filepath.Join(home, "config", DefaultKeyName)
}

func urlFlag(cmd *cobra.Command) {
	cmd.PersistentFlags().StringP(FlagURL, "u", "http://127.0.0.1:26657", "gp node rpc url")
}

func keyFlag(cmd *cobra.Command) {
	cmd.PersistentFlags().StringP(FlagKey, "k", "", "account key file (default <home>/config/"+DefaultKeyName+")")
}

func outputFlag(cmd *cobra.Command) {
	cmd.PersistentFlags().StringP(FlagOutput, "o", "table", "output format: table, json or yaml")
}

func keyPath(cmd *cobra.Command) string {
	p, _ := cmd.Flags().GetString(FlagKey)
	if p == "" {
		p = defaultKeyPath(homeDir(cmd))
	}
	return p
}
