package crypto

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

var ErrKeyExists = errors.New("key file already exists")

// GenerateKeyFile creates a secp256k1 account key and stores it hex-encoded at path.
func GenerateKeyFile(path string) (common.Address, error) {
	if _, err := os.Stat(path); err == nil {
		return common.Address{}, fmt.Errorf("%w: %s", ErrKeyExists, path)
	}
	key, err := ethcrypto.GenerateKey()
	if err != nil {
		return common.Address{}, err
	}
	if err = os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return common.Address{}, err
	}
	if err = ethcrypto.SaveECDSA(path, key); err != nil {
		return common.Address{}, err
	}
	return ethcrypto.PubkeyToAddress(key.PublicKey), nil
}

func LoadKeyFile(path string) (*ecdsa.PrivateKey, error) {
	key, err := ethcrypto.LoadECDSA(path)
	if err != nil {
		return nil, fmt.Errorf("load key %s: %w", path, err)
	}
	return key, nil
}

func KeyAddress(key *ecdsa.PrivateKey) common.Address {
	return ethcrypto.PubkeyToAddress(key.PublicKey)
}
