package eth

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var ErrNoSigner = errors.New("no signing key configured")

// Signer is the wallet side of a contract binding: the address calls are made
// from and, when it holds a key, the transaction options used to sign writes.
type Signer interface {
	Address() common.Address
	TransactOpts(ctx context.Context) (*bind.TransactOpts, error)
}

type KeySigner struct {
	key     *ecdsa.PrivateKey
	chainID *big.Int
	address common.Address
}

func NewKeySigner(hexKey string, chainID *big.Int) (*KeySigner, error) {
	if chainID == nil || chainID.Sign() <= 0 {
		return nil, errors.New("signer requires a chain id")
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return &KeySigner{
		key:     key,
		chainID: new(big.Int).Set(chainID),
		address: crypto.PubkeyToAddress(key.PublicKey),
	}, nil
}

func (s *KeySigner) Address() common.Address {
	return s.address
}

func (s *KeySigner) TransactOpts(ctx context.Context) (*bind.TransactOpts, error) {
	opts, err := bind.NewKeyedTransactorWithChainID(s.key, s.chainID)
	if err != nil {
		return nil, err
	}
	opts.Context = ctx
	return opts, nil
}

// WatchOnly acts as an address without a key: reads and pre-flight checks run
// as that address, writes fail with ErrNoSigner.
type WatchOnly common.Address

func (w WatchOnly) Address() common.Address {
	return common.Address(w)
}

func (w WatchOnly) TransactOpts(context.Context) (*bind.TransactOpts, error) {
	return nil, ErrNoSigner
}
