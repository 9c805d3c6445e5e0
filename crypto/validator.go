package crypto

import (
	"encoding/hex"
	"fmt"
	"os"

	cmtjson "github.com/cometbft/cometbft/libs/json"
	"github.com/cometbft/cometbft/privval"
)

// ValidatorInfo is the public half of a priv_validator_key.json file.
type ValidatorInfo struct {
	Address string `json:"address"`
	PubKey  string `json:"pub_key"`
	KeyType string `json:"key_type"`
}

// LoadValidatorInfo reads the consensus key file without touching its sign state.
func LoadValidatorInfo(path string) (*ValidatorInfo, error) {
	dat, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var key privval.FilePVKey
	if err = cmtjson.Unmarshal(dat, &key); err != nil {
		return nil, fmt.Errorf("decode validator key %s: %w", path, err)
	}
	if key.PubKey == nil {
		return nil, fmt.Errorf("validator key %s has no public key", path)
	}
	return &ValidatorInfo{
		Address: key.PubKey.Address().String(),
		PubKey:  hex.EncodeToString(key.PubKey.Bytes()),
		KeyType: key.PubKey.Type(),
	}, nil
}
