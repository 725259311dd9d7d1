package eth

import (
	"context"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/nftescrow/tradenode/internal/cache"
	"github.com/nftescrow/tradenode/internal/metrics"
	"go.uber.org/ratelimit"
)

// RateLimitedClient paces every call to the wrapped node so the provider's
// requests-per-second quota is respected, and serves contract bytecode reads
// from a TTL cache.
type RateLimitedClient struct {
	next    EthClient
	limiter ratelimit.Limiter
	code    *cache.TTL[[]byte]
}

// NewRateLimitedClient spaces calls evenly at rps per second. A nil code cache
// disables bytecode caching.
func NewRateLimitedClient(next EthClient, rps int, code *cache.TTL[[]byte]) *RateLimitedClient {
	var limiter ratelimit.Limiter
	if rps <= 0 {
		limiter = ratelimit.NewUnlimited()
	} else {
		limiter = ratelimit.New(rps, ratelimit.WithoutSlack)
	}
	return &RateLimitedClient{next: next, limiter: limiter, code: code}
}

func (c *RateLimitedClient) take(method string) {
	c.limiter.Take()
	metrics.RPCCalls.WithLabelValues(method).Inc()
}

func (c *RateLimitedClient) CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error) {
	if c.code == nil || blockNumber != nil {
		c.take("eth_getCode")
		return c.next.CodeAt(ctx, account, blockNumber)
	}
	return c.code.GetOrLoad(ctx, "code:"+strings.ToLower(account.Hex()), func(ctx context.Context) ([]byte, error) {
		c.take("eth_getCode")
		return c.next.CodeAt(ctx, account, nil)
	})
}

func (c *RateLimitedClient) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	c.take("eth_call")
	return c.next.CallContract(ctx, msg, blockNumber)
}

func (c *RateLimitedClient) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	c.take("eth_getBlockByNumber")
	return c.next.HeaderByNumber(ctx, number)
}

func (c *RateLimitedClient) PendingCodeAt(ctx context.Context, account common.Address) ([]byte, error) {
	c.take("eth_getCode")
	return c.next.PendingCodeAt(ctx, account)
}

func (c *RateLimitedClient) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	c.take("eth_getTransactionCount")
	return c.next.PendingNonceAt(ctx, account)
}

func (c *RateLimitedClient) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	c.take("eth_gasPrice")
	return c.next.SuggestGasPrice(ctx)
}

func (c *RateLimitedClient) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	c.take("eth_maxPriorityFeePerGas")
	return c.next.SuggestGasTipCap(ctx)
}

func (c *RateLimitedClient) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	c.take("eth_estimateGas")
	return c.next.EstimateGas(ctx, msg)
}

func (c *RateLimitedClient) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	c.take("eth_sendRawTransaction")
	return c.next.SendTransaction(ctx, tx)
}

func (c *RateLimitedClient) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	c.take("eth_getLogs")
	return c.next.FilterLogs(ctx, q)
}

func (c *RateLimitedClient) SubscribeFilterLogs(ctx context.Context, q ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error) {
	c.take("eth_subscribe")
	return c.next.SubscribeFilterLogs(ctx, q, ch)
}

func (c *RateLimitedClient) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	c.take("eth_getTransactionReceipt")
	return c.next.TransactionReceipt(ctx, txHash)
}

func (c *RateLimitedClient) BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error) {
	c.take("eth_getBalance")
	return c.next.BalanceAt(ctx, account, blockNumber)
}

func (c *RateLimitedClient) BlockNumber(ctx context.Context) (uint64, error) {
	c.take("eth_blockNumber")
	return c.next.BlockNumber(ctx)
}

func (c *RateLimitedClient) ChainID(ctx context.Context) (*big.Int, error) {
	c.take("eth_chainId")
	return c.next.ChainID(ctx)
}

func (c *RateLimitedClient) Close() {
	c.next.Close()
}
