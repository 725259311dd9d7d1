package eth

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewKeySigner(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	raw := hexutil.Encode(crypto.FromECDSA(key))

	for _, hexKey := range []string{raw, raw[2:], "  " + raw + "\n"} {
		signer, err := NewKeySigner(hexKey, big.NewInt(1))
		require.NoError(t, err)
		assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey), signer.Address())
	}
}

func TestNewKeySigner_Errors(t *testing.T) {
	_, err := NewKeySigner("not-a-key", big.NewInt(1))
	assert.ErrorContains(t, err, "invalid private key")

	_, err = NewKeySigner("0x01", nil)
	assert.ErrorContains(t, err, "chain id")
}

func TestKeySigner_TransactOpts(t *testing.T) {
	signer, _ := newTestSigner(t)
	ctx := context.Background()
	opts, err := signer.TransactOpts(ctx)
	require.NoError(t, err)
	assert.Equal(t, signer.Address(), opts.From)
	assert.Equal(t, ctx, opts.Context)
	assert.NotNil(t, opts.Signer)
}

func TestWatchOnly(t *testing.T) {
	addr := common.HexToAddress("0x1234")
	w := WatchOnly(addr)
	assert.Equal(t, addr, w.Address())
	_, err := w.TransactOpts(context.Background())
	assert.ErrorIs(t, err, ErrNoSigner)
}
