package main

import (
	"errors"
	"fmt"

	"github.com/calehh/gp-node/crypto"
	"github.com/spf13/cobra"
)

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage the account key used to sign transactions",
}

var keysNewCmd = &cobra.Command{
	Use:   "new",
	Short: "Generate a new account key",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := keyPath(cmd)
		addr, err := crypto.GenerateKeyFile(path)
		if errors.Is(err, crypto.ErrKeyExists) {
			return fmt.Errorf("%w, refusing to overwrite", err)
		}
		if err != nil {
			return err
		}
		fmt.Printf("address: %s\nkey file: %s\n", addr.Hex(), path)
		return nil
	},
}

var keysShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the address of the account key",
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := crypto.LoadKeyFile(keyPath(cmd))
		if err != nil {
			return err
		}
		fmt.Println(crypto.KeyAddress(key).Hex())
		return nil
	},
}

func init() {
	keyFlag(keysCmd)
	keysCmd.AddCommand(keysNewCmd, keysShowCmd)
}
