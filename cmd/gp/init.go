package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/calehh/gp-node/config"
	"github.com/calehh/gp-node/crypto"
	"github.com/calehh/gp-node/token"
	"github.com/calehh/gp-node/types"
	cmttypes "github.com/cometbft/cometbft/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
)

type printInfo struct {
	ChainID    string          `json:"chain_id" yaml:"chain_id"`
	NodeID     string          `json:"node_id" yaml:"node_id"`
	Owner      string          `json:"owner" yaml:"owner"`
	AppMessage json.RawMessage `json:"app_message" yaml:"app_message"`
}

func displayInfo(info printInfo) error {
	out, err := json.MarshalIndent(info, "", " ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(os.Stderr, "%s\n", out)
	return err
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize private validator, p2p, genesis, and application configuration files",
	Long: `Initialize the validator's and node's configuration files. The owner account key is
created unless it already exists; the owner receives the governance role of every component
and the initial governance token balance.`,
	Args: cobra.ExactArgs(0),
	RunE: initRun,
}

const (
	flagOwnerBalance  = "owner-balance"
	flagStableBalance = "stable-balance"
)

func init() {
	initCmd.Flags().Bool(FlagOverwrite, false, "overwrite the genesis.json file")
	initCmd.Flags().String(FlagChainID, "", "genesis file chain-id, if left blank will be randomly created")
	initCmd.Flags().String(flagOwnerBalance, "1000000", "governance tokens minted to the owner at genesis")
	initCmd.Flags().String(flagStableBalance, "0", "stable asset minted to the owner at genesis")
	keyFlag(initCmd)
}

func loadOrCreateOwner(path string) (common.Address, error) {
	addr, err := crypto.GenerateKeyFile(path)
	if !errors.Is(err, crypto.ErrKeyExists) {
		return addr, err
	}
	key, err := crypto.LoadKeyFile(path)
	if err != nil {
		return common.Address{}, err
	}
	return crypto.KeyAddress(key), nil
}

func initRun(cmd *cobra.Command, args []string) error {
	home := homeDir(cmd)
	chainID, _ := cmd.Flags().GetString(FlagChainID)
	overwrite, _ := cmd.Flags().GetBool(FlagOverwrite)
	ownerBalance, _ := cmd.Flags().GetString(flagOwnerBalance)
	stableBalance, _ := cmd.Flags().GetString(flagStableBalance)
	if chainID == "" {
		chainID = fmt.Sprintf("gp-chain-%v", rand.Uint64())
	}

	cfg := config.DefaultConfig(home)
	genFile := cfg.GenesisFile()
	if _, err := os.Stat(genFile); err == nil && !overwrite {
		return fmt.Errorf("genesis file %s already exists, use --%s", genFile, FlagOverwrite)
	}

	nodeID, pk, err := config.InitNodeFiles(cfg)
	if err != nil {
		return err
	}
	owner, err := loadOrCreateOwner(keyPath(cmd))
	if err != nil {
		return err
	}

	appState := types.GenesisAppState{
		Owner:  owner.Hex(),
		Params: cfg.App.Genesis,
		Balances: []types.GenesisBalance{
			{Address: owner.Hex(), Asset: token.NameGovernance, Amount: ownerBalance, Delegate: true},
		},
	}
	if stableBalance != "0" {
		appState.Balances = append(appState.Balances, types.GenesisBalance{Address: owner.Hex(), Asset: token.NameStable, Amount: stableBalance})
	}
	if err = appState.Validate(); err != nil {
		return err
	}
	appStateBytes, err := json.Marshal(appState)
	if err != nil {
		return err
	}

	appGenesis := &types.GenesisDoc{
		GenesisTime:     time.Now(),
		ChainID:         chainID,
		ConsensusParams: cmttypes.DefaultConsensusParams(),
		InitialHeight:   1,
		Validators:      []types.GenesisValidator{{Address: pk.Address(), PubKey: pk, Power: types.DefaultPower}},
		AppState:        appStateBytes,
	}
	if err = types.ExportGenesisFile(appGenesis, genFile); err != nil {
		return fmt.Errorf("failed to export genesis file: %w", err)
	}
	if err = config.WriteConfigFile(filepath.Join(cfg.RootDir, "config", "config.toml"), cfg); err != nil {
		return err
	}
	return displayInfo(printInfo{ChainID: chainID, NodeID: nodeID, Owner: owner.Hex(), AppMessage: appGenesis.AppState})
}
