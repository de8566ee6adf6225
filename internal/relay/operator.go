package relay

import (
	"crypto/ecdsa"
	"errors"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// Operator holds the relay's signing key. It is built once at startup and
// only read afterwards.
type Operator struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

// NewOperator parses a hex private key, with or without a 0x prefix. The
// error never echoes the key.
func NewOperator(hexKey string) (*Operator, error) {
	hexKey = strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")
	if hexKey == "" {
		return nil, errors.New("operator private key is empty")
	}
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, errors.New("operator private key is not a valid secp256k1 hex key")
	}
	return NewOperatorFromKey(key), nil
}

func NewOperatorFromKey(key *ecdsa.PrivateKey) *Operator {
	return &Operator{key: key, address: crypto.PubkeyToAddress(key.PublicKey)}
}

func (o *Operator) Address() common.Address {
	return o.address
}

// Sign signs tx for chainID with the latest signer the chain supports.
func (o *Operator) Sign(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	return types.SignTx(tx, types.LatestSignerForChainID(chainID), o.key)
}
