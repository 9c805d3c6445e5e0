package main

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"

	"github.com/calehh/gp-node/app"
	"github.com/calehh/gp-node/crypto"
	"github.com/calehh/gp-node/state"
	"github.com/calehh/gp-node/tx"
	"github.com/cometbft/cometbft/rpc/client/http"
	"github.com/spf13/cobra"
)

type client struct {
	cli *http.HTTP
}

func newClient(cmd *cobra.Command) (*client, error) {
	u, _ := cmd.Flags().GetString(FlagURL)
	cli, err := http.New(u, "/websocket")
	if err != nil {
		return nil, fmt.Errorf("new client: %w", err)
	}
	return &client{cli: cli}, nil
}

// query runs an ABCI query and decodes its JSON value into out.
func (c *client) query(ctx context.Context, path string, args app.QueryArgs, out any) error {
	dat, err := json.Marshal(args)
	if err != nil {
		return err
	}
	res, err := c.cli.ABCIQuery(ctx, path, dat)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	if res.Response.Code != 0 {
		return fmt.Errorf("query %s failed with code %d: %s", path, res.Response.Code, res.Response.Log)
	}
	return json.Unmarshal(res.Response.Value, out)
}

// broadcast signs the payload with key at the account's next nonce and
// waits for the tx to be committed.
func (c *client) broadcast(ctx context.Context, key *ecdsa.PrivateKey, tp tx.GPTxType, payload any) error {
	gres, err := c.cli.Genesis(ctx)
	if err != nil {
		return fmt.Errorf("get chain genesis: %w", err)
	}
	from := crypto.KeyAddress(key)
	var acnt state.Account
	if err = c.query(ctx, app.QueryAccounts, app.QueryArgs{Address: from}, &acnt); err != nil {
		return err
	}
	btx := &tx.GPTx{
		Version: tx.GPTxVersion0,
		Type:    tp,
		Nonce:   acnt.Nonce,
		Tx:      payload,
	}
	if err = btx.Sign(key, []byte(gres.Genesis.ChainID)); err != nil {
		return fmt.Errorf("sign tx: %w", err)
	}
	dat, err := tx.MarshalGPTx(btx)
	if err != nil {
		return err
	}
	res, err := c.cli.BroadcastTxCommit(ctx, dat)
	if err != nil {
		return fmt.Errorf("broadcast tx: %w", err)
	}
	if res.CheckTx.Code != 0 {
		return fmt.Errorf("tx rejected with code %d: %s", res.CheckTx.Code, res.CheckTx.Log)
	}
	if res.TxResult.Code != 0 {
		return fmt.Errorf("tx failed with code %d: %s", res.TxResult.Code, res.TxResult.Log)
	}
	fmt.Printf("%s committed: height %d hash %s\n", tp, res.Height, res.Hash)
	for _, ev := range res.TxResult.Events {
		fmt.Printf("  %s", ev.Type)
		for _, a := range ev.Attributes {
			fmt.Printf(" %s=%s", a.Key, a.Value)
		}
		fmt.Println()
	}
	return nil
}

func sendTx(cmd *cobra.Command, tp tx.GPTxType, payload any) error {
	key, err := crypto.LoadKeyFile(keyPath(cmd))
	if err != nil {
		return err
	}
	c, err := newClient(cmd)
	if err != nil {
		return err
	}
	return c.broadcast(cmd.Context(), key, tp, payload)
}
