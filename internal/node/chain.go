package node

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/nftescrow/tradenode/internal/assets"
	"github.com/nftescrow/tradenode/internal/cache"
	"github.com/nftescrow/tradenode/internal/config"
	"github.com/nftescrow/tradenode/internal/escrow"
	"github.com/nftescrow/tradenode/internal/escrow/onchain"
	"github.com/nftescrow/tradenode/internal/eth"
	"github.com/nftescrow/tradenode/internal/vault"
	"go.uber.org/zap"
)

// Dial opens the node connection; tests replace it.
var Dial = eth.DialEthClient

type ChainOptions struct {
	Network         config.Network
	TradingContract common.Address
	Version         escrow.Version
	// VaultContract defaults to the trading contract on the vault version.
	VaultContract common.Address
	// PrivateKey signs writes. Without it the chain is watch-only as As.
	PrivateKey        string
	As                common.Address
	RequestsPerSecond int
	CodeCacheTTL      time.Duration
}

// Chain bundles the rate-limited node client with the contract bindings one
// process works against.
type Chain struct {
	Network config.Network
	Client  eth.EthClient
	Signer  eth.Signer
	Trading *onchain.Adapter
	Vault   *vault.OnChain

	raw  eth.EthClient
	code *cache.TTL[[]byte]
}

func DialChain(ctx context.Context, opts ChainOptions) (*Chain, error) {
	raw, err := Dial(opts.Network.RPCUrl)
	if err != nil {
		return nil, err
	}
	c := &Chain{Network: opts.Network, raw: raw}
	if err := c.init(ctx, opts); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

func (c *Chain) init(ctx context.Context, opts ChainOptions) error {
	chainID, err := c.raw.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("reading chain id from %s: %w", opts.Network.RPCUrl, err)
	}
	if opts.Network.ChainID != 0 && chainID.Int64() != opts.Network.ChainID {
		return fmt.Errorf("node at %s serves chain %s, expected %d (%s)", opts.Network.RPCUrl, chainID, opts.Network.ChainID, opts.Network.Name)
	}

	if opts.CodeCacheTTL > 0 {
		if c.code, err = cache.NewTTL[[]byte]("contract-code", opts.CodeCacheTTL, 0); err != nil {
			return err
		}
	}
	c.Client = eth.NewRateLimitedClient(c.raw, opts.RequestsPerSecond, c.code)

	if c.Signer, err = newSigner(opts, chainID); err != nil {
		return err
	}

	if opts.TradingContract != (common.Address{}) {
		c.Trading = onchain.New(opts.Version, opts.TradingContract, c.Client, c.Signer)
	}
	vaultAddr := opts.VaultContract
	if vaultAddr == (common.Address{}) && opts.Version == escrow.VersionVault {
		vaultAddr = opts.TradingContract
	}
	if vaultAddr != (common.Address{}) {
		c.Vault = vault.NewOnChain(vaultAddr, c.Client, c.Signer)
	}

	zap.L().Info("Connected to chain",
		zap.String("network", opts.Network.Name),
		zap.String("chainId", chainID.String()),
		zap.String("caller", c.Signer.Address().Hex()),
	)
	return nil
}

func newSigner(opts ChainOptions, chainID *big.Int) (eth.Signer, error) {
	if opts.PrivateKey == "" {
		return eth.WatchOnly(opts.As), nil
	}
	signer, err := eth.NewKeySigner(opts.PrivateKey, chainID)
	if err != nil {
		return nil, err
	}
	if opts.As != (common.Address{}) && opts.As != signer.Address() {
		return nil, fmt.Errorf("--as %s does not match the private key address %s", opts.As.Hex(), signer.Address().Hex())
	}
	return signer, nil
}

// EscrowClient runs the trade lifecycle against the trading contract.
// receipts may be nil when the contract does not trade vault receipts.
func (c *Chain) EscrowClient(receipts assets.ReceiptOwners) (*escrow.Client, error) {
	if c.Trading == nil {
		return nil, errors.New("no trading contract configured")
	}
	checker := assets.NewChecker(assets.OnChain(c.Client, c.Signer), c.Trading.Address(), receipts)
	return escrow.NewClient(c.Trading, checker, c.Client), nil
}

// VaultClient deposits and withdraws through the vault, which is the
// approval operator for deposits. Withdrawals check ownership in receipts.
func (c *Chain) VaultClient(receipts assets.ReceiptOwners) (*vault.Client, error) {
	if c.Vault == nil {
		return nil, errors.New("no vault contract configured")
	}
	if receipts == nil {
		return nil, errors.New("vault client needs a receipt index")
	}
	checker := assets.NewChecker(assets.OnChain(c.Client, c.Signer), c.Vault.Address(), receipts)
	return vault.NewClient(c.Vault, checker, receipts)
}

func (c *Chain) Close() {
	if c.raw != nil {
		c.raw.Close()
	}
	if c.code != nil {
		c.code.Close()
	}
}

// ChainOptionsFromConfig maps the process configuration onto ChainOptions.
func ChainOptionsFromConfig(cfg config.Config) (ChainOptions, error) {
	network, err := cfg.ResolveNetwork()
	if err != nil {
		return ChainOptions{}, err
	}
	version, err := escrow.ParseVersion(cfg.TradingContractVersion)
	if err != nil {
		return ChainOptions{}, err
	}
	opts := ChainOptions{
		Network:           network,
		Version:           version,
		PrivateKey:        cfg.PrivateKey,
		RequestsPerSecond: cfg.RPCRequestsPerSecond,
		CodeCacheTTL:      time.Duration(cfg.ReadCacheTTLSeconds) * time.Second,
	}
	if opts.TradingContract, err = optionalAddress("TRADING_CONTRACT_ADDRESS", cfg.TradingContractAddress); err != nil {
		return ChainOptions{}, err
	}
	if opts.VaultContract, err = optionalAddress("VAULT_CONTRACT_ADDRESS", cfg.VaultContractAddress); err != nil {
		return ChainOptions{}, err
	}
	return opts, nil
}

func optionalAddress(name, s string) (common.Address, error) {
	if s == "" {
		return common.Address{}, nil
	}
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("%s: invalid address %q", name, s)
	}
	return common.HexToAddress(s), nil
}
