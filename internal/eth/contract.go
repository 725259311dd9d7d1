package eth

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/nftescrow/tradenode/internal/metrics"
	"go.uber.org/zap"
)

const MissingRevertData = "missing revert data"

var ErrEventNotFound = errors.New("event not found in receipt")

// RevertError is a contract call or transaction the chain refused. Reason is
// the decoded Error(string) payload when the node returned one.
type RevertError struct {
	Op     string
	Reason string
	TxHash common.Hash
	Err    error
}

func (e *RevertError) Error() string {
	msg := fmt.Sprintf("%s reverted: %s", e.Op, e.Reason)
	if e.TxHash != (common.Hash{}) {
		msg += " (tx " + e.TxHash.Hex() + ")"
	}
	return msg
}

func (e *RevertError) Unwrap() error {
	return e.Err
}

// Hint lists the checks a user should walk through after a revert the client
// could not attribute to a specific cause.
func (e *RevertError) Hint() []string {
	return []string{
		"confirm the calling wallet is the trade's creator (cancel) or counterparty (accept, decline)",
		"confirm the trade is still pending and has not passed its expiry time",
		"confirm every asset is owned by the caller and approved for the trading contract",
		"confirm the value sent equals the native amount plus the trade fee exactly",
	}
}

// Contract binds one address and ABI to a node connection and a signer.
type Contract struct {
	address common.Address
	abi     abi.ABI
	client  EthClient
	signer  Signer
	bound   *bind.BoundContract
}

func NewContract(address common.Address, parsed abi.ABI, client EthClient, signer Signer) *Contract {
	return &Contract{
		address: address,
		abi:     parsed,
		client:  client,
		signer:  signer,
		bound:   bind.NewBoundContract(address, parsed, client, client, client),
	}
}

func (c *Contract) Address() common.Address { return c.address }
func (c *Contract) ABI() abi.ABI            { return c.abi }
func (c *Contract) Client() EthClient       { return c.client }
func (c *Contract) Signer() Signer          { return c.signer }

// Call runs a read-only method as the signer's address.
func (c *Contract) Call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	var out []interface{}
	opts := &bind.CallOpts{Context: ctx, From: c.signer.Address()}
	if err := c.bound.Call(opts, &out, method, args...); err != nil {
		if reason, ok := revertReason(err); ok {
			return nil, &RevertError{Op: method, Reason: reason, Err: err}
		}
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	return out, nil
}

// Transact simulates the call, submits it, and waits for it to be mined. A
// receipt with a failure status is returned together with a *RevertError.
func (c *Contract) Transact(ctx context.Context, value *big.Int, method string, args ...interface{}) (*types.Receipt, error) {
	opts, err := c.signer.TransactOpts(ctx)
	if err != nil {
		return nil, err
	}
	if value == nil {
		value = new(big.Int)
	}
	opts.Value = value

	input, err := c.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: packing arguments: %w", method, err)
	}
	msg := ethereum.CallMsg{From: opts.From, To: &c.address, Value: value, Data: input}
	gas, err := c.client.EstimateGas(ctx, msg)
	if err != nil {
		metrics.Transactions.WithLabelValues(method, "rejected").Inc()
		rerr := &RevertError{Op: method, Reason: MissingRevertData, Err: err}
		if reason, ok := revertReason(err); ok {
			rerr.Reason = reason
		}
		zap.L().Warn("Transaction rejected before submission",
			zap.String("method", method),
			zap.String("reason", rerr.Reason),
			zap.Error(err),
		)
		return nil, rerr
	}
	opts.GasLimit = gas

	tx, err := c.bound.Transact(opts, method, args...)
	if err != nil {
		metrics.Transactions.WithLabelValues(method, "failed").Inc()
		return nil, fmt.Errorf("%s: submitting transaction: %w", method, err)
	}
	zap.L().Info("Transaction submitted",
		zap.String("method", method),
		zap.String("txHash", tx.Hash().Hex()),
		zap.String("value", value.String()),
		zap.String("contract", c.address.Hex()),
	)

	receipt, err := bind.WaitMined(ctx, c.client, tx)
	if err != nil {
		metrics.Transactions.WithLabelValues(method, "failed").Inc()
		return nil, fmt.Errorf("%s: waiting for %s: %w", method, tx.Hash().Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		metrics.Transactions.WithLabelValues(method, "reverted").Inc()
		reason := c.replayRevert(ctx, msg, receipt)
		zap.L().Warn("Transaction reverted",
			zap.String("method", method),
			zap.String("txHash", tx.Hash().Hex()),
			zap.String("reason", reason),
		)
		return receipt, &RevertError{Op: method, Reason: reason, TxHash: tx.Hash()}
	}
	metrics.Transactions.WithLabelValues(method, "mined").Inc()
	return receipt, nil
}

// replayRevert re-executes a reverted transaction at its block to recover the
// revert reason, which receipts do not carry.
func (c *Contract) replayRevert(ctx context.Context, msg ethereum.CallMsg, receipt *types.Receipt) string {
	_, err := c.client.CallContract(ctx, msg, receipt.BlockNumber)
	if err == nil {
		return MissingRevertData
	}
	if reason, ok := revertReason(err); ok {
		return reason
	}
	return MissingRevertData
}

func (c *Contract) HasCode(ctx context.Context) (bool, error) {
	code, err := c.client.CodeAt(ctx, c.address, nil)
	if err != nil {
		return false, err
	}
	return len(code) > 0, nil
}

// FindEvent returns the first log in receipt emitted by this contract for the
// named event.
func (c *Contract) FindEvent(receipt *types.Receipt, name string) (*types.Log, error) {
	event, ok := c.abi.Events[name]
	if !ok {
		return nil, fmt.Errorf("event %s not in ABI", name)
	}
	if receipt != nil {
		for _, lg := range receipt.Logs {
			if lg.Address == c.address && len(lg.Topics) > 0 && lg.Topics[0] == event.ID {
				return lg, nil
			}
		}
	}
	return nil, fmt.Errorf("%s: %w", name, ErrEventNotFound)
}

func revertReason(err error) (string, bool) {
	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		if raw, ok := dataErr.ErrorData().(string); ok {
			if data, decErr := hexutil.Decode(raw); decErr == nil {
				if reason, unpackErr := abi.UnpackRevert(data); unpackErr == nil {
					return reason, true
				}
			}
		}
	}
	const marker = "execution reverted: "
	if i := strings.Index(err.Error(), marker); i >= 0 {
		return err.Error()[i+len(marker):], true
	}
	return "", false
}

// Out converts the i-th output of Call into T.
func Out[T any](out []interface{}, i int) (T, error) {
	var zero T
	if i >= len(out) {
		return zero, fmt.Errorf("missing output %d", i)
	}
	converted, ok := abi.ConvertType(out[i], new(T)).(*T)
	if !ok {
		return zero, fmt.Errorf("output %d has type %T", i, out[i])
	}
	return *converted, nil
}
