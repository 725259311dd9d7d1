package escrow

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/nftescrow/tradenode/internal/assets"
	"github.com/nftescrow/tradenode/pkg/trade"
	"go.uber.org/zap"
)

// Client runs the trade lifecycle against one trading contract. Each
// operation checks everything it can read before submitting, then sends a
// single lifecycle transaction. Nothing is retried.
type Client struct {
	contract TradingContract
	checker  *assets.Checker
	balances Balances
	now      func() time.Time
}

type Option func(*Client)

// WithClock replaces the wall clock used for expiry decisions.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

func NewClient(contract TradingContract, checker *assets.Checker, balances Balances, opts ...Option) *Client {
	c := &Client{contract: contract, checker: checker, balances: balances, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Contract() TradingContract { return c.contract }
func (c *Client) Checker() *assets.Checker  { return c.checker }
func (c *Client) Now() time.Time            { return c.now() }

type Created struct {
	TradeID *big.Int
	TxHash  common.Hash
	Value   *big.Int
}

// CreateTrade escrows the offered assets. Ownership and approval of every
// offered asset and the caller's balance are verified first.
func (c *Client) CreateTrade(ctx context.Context, p trade.Proposal) (*Created, error) {
	caller := c.contract.Caller()
	if err := p.Validate(caller); err != nil {
		return nil, err
	}
	if err := c.checkStandards(p.OfferedAssets, p.RequestedAssets); err != nil {
		return nil, err
	}
	if err := c.checker.VerifyHoldings(ctx, caller, p.OfferedAssets); err != nil {
		return nil, err
	}
	if _, err := c.checker.EnsureApproved(ctx, caller, p.OfferedAssets); err != nil {
		return nil, err
	}
	fee, err := c.contract.TradeFee(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading trade fee: %w", err)
	}
	value := trade.CreationValue(p.OfferedNative, fee)
	if err := c.requireFunds(ctx, caller, value); err != nil {
		return nil, err
	}

	id, txHash, err := c.contract.CreateTrade(ctx, p, value)
	if err != nil {
		return nil, err
	}
	zap.L().Info("Trade created",
		zap.String("tradeId", id.String()),
		zap.String("creator", caller.Hex()),
		zap.String("counterparty", p.Counterparty.Hex()),
		zap.String("txHash", txHash.Hex()),
	)
	return &Created{TradeID: id, TxHash: txHash, Value: value}, nil
}

// AcceptTrade settles a pending trade as its counterparty, paying exactly
// the requested native amount plus the fee.
func (c *Client) AcceptTrade(ctx context.Context, id *big.Int) (common.Hash, error) {
	return c.accept(ctx, id, nil)
}

// AcceptTradeWithValue is AcceptTrade with a caller-chosen value, refused
// unless it matches the required value exactly.
func (c *Client) AcceptTradeWithValue(ctx context.Context, id *big.Int, value *big.Int) (common.Hash, error) {
	if value == nil {
		return common.Hash{}, fmt.Errorf("%w: no value given", ErrValueMismatch)
	}
	return c.accept(ctx, id, value)
}

func (c *Client) accept(ctx context.Context, id *big.Int, value *big.Int) (common.Hash, error) {
	caller := c.contract.Caller()
	t, err := c.contract.GetTrade(ctx, id)
	if err != nil {
		return common.Hash{}, err
	}
	if caller != t.Counterparty {
		return common.Hash{}, fmt.Errorf("%w: only the counterparty %s may accept", ErrUnauthorized, t.Counterparty.Hex())
	}
	if err := c.requireTransition(t, trade.ActionAccept); err != nil {
		return common.Hash{}, err
	}
	fee, err := c.contract.TradeFee(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("reading trade fee: %w", err)
	}
	required := t.AcceptValue(fee)
	if value != nil {
		if err := CheckAcceptValue(t, fee, value); err != nil {
			return common.Hash{}, err
		}
	}
	if err := c.checker.VerifyHoldings(ctx, caller, t.RequestedAssets); err != nil {
		return common.Hash{}, err
	}
	if _, err := c.checker.EnsureApproved(ctx, caller, t.RequestedAssets); err != nil {
		return common.Hash{}, err
	}
	if err := c.requireFunds(ctx, caller, required); err != nil {
		return common.Hash{}, err
	}
	txHash, err := c.contract.AcceptTrade(ctx, id, required)
	if err != nil {
		return common.Hash{}, err
	}
	zap.L().Info("Trade accepted", zap.String("tradeId", id.String()), zap.String("txHash", txHash.Hex()))
	return txHash, nil
}

// DeclineTrade returns the escrow to the creator at the counterparty's
// request, on versions that support it.
func (c *Client) DeclineTrade(ctx context.Context, id *big.Int) (common.Hash, error) {
	if !c.contract.Schema().SupportsDecline {
		return common.Hash{}, fmt.Errorf("%w: decline on %s", ErrUnsupported, c.contract.Schema().Version)
	}
	t, err := c.contract.GetTrade(ctx, id)
	if err != nil {
		return common.Hash{}, err
	}
	if c.contract.Caller() != t.Counterparty {
		return common.Hash{}, fmt.Errorf("%w: only the counterparty %s may decline", ErrUnauthorized, t.Counterparty.Hex())
	}
	if err := c.requireTransition(t, trade.ActionDecline); err != nil {
		return common.Hash{}, err
	}
	txHash, err := c.contract.DeclineTrade(ctx, id)
	if err != nil {
		return common.Hash{}, err
	}
	zap.L().Info("Trade declined", zap.String("tradeId", id.String()), zap.String("txHash", txHash.Hex()))
	return txHash, nil
}

func (c *Client) CancelTrade(ctx context.Context, id *big.Int) (common.Hash, error) {
	t, err := c.contract.GetTrade(ctx, id)
	if err != nil {
		return common.Hash{}, err
	}
	if c.contract.Caller() != t.Creator {
		return common.Hash{}, fmt.Errorf("%w: only the creator %s may cancel", ErrUnauthorized, t.Creator.Hex())
	}
	if err := c.requireTransition(t, trade.ActionCancel); err != nil {
		return common.Hash{}, err
	}
	txHash, err := c.contract.CancelTrade(ctx, id)
	if err != nil {
		return common.Hash{}, err
	}
	zap.L().Info("Trade cancelled", zap.String("tradeId", id.String()), zap.String("txHash", txHash.Hex()))
	return txHash, nil
}

// ExpireTrade settles a pending trade whose expiry time has passed. Expiry is
// derived from time alone: a trade is never expired early, whatever a
// contract would allow. Versions without an expire call settle expiry inside
// cancel or decline, so the creator or counterparty has to send it.
func (c *Client) ExpireTrade(ctx context.Context, id *big.Int) (common.Hash, error) {
	t, err := c.contract.GetTrade(ctx, id)
	if err != nil {
		return common.Hash{}, err
	}
	if _, err := trade.NewLifecycle(t.Status).Apply(trade.ActionExpire); err != nil {
		return common.Hash{}, fmt.Errorf("%w: trade %s is %s: %w", ErrInvalidState, id, t.Status, err)
	}
	if !t.IsExpired(c.now()) {
		return common.Hash{}, fmt.Errorf("%w: trade %s expires at %s", ErrTradeNotExpired, id, t.ExpiryTime.UTC().Format(time.RFC3339))
	}

	schema := c.contract.Schema()
	caller := c.contract.Caller()
	var txHash common.Hash
	switch {
	case schema.HasExpireCall:
		txHash, err = c.contract.ExpireTrade(ctx, id)
	case caller == t.Creator:
		txHash, err = c.contract.CancelTrade(ctx, id)
	case caller == t.Counterparty && schema.SupportsDecline:
		txHash, err = c.contract.DeclineTrade(ctx, id)
	default:
		return common.Hash{}, fmt.Errorf("%w: on %s only the creator or counterparty can settle an expired trade", ErrUnauthorized, schema.Version)
	}
	if err != nil {
		return common.Hash{}, err
	}
	zap.L().Info("Trade expired", zap.String("tradeId", id.String()), zap.String("txHash", txHash.Hex()))
	return txHash, nil
}

// GetTrade returns the trade with its effective status.
func (c *Client) GetTrade(ctx context.Context, id *big.Int) (*trade.Trade, error) {
	t, err := c.contract.GetTrade(ctx, id)
	if err != nil {
		return nil, err
	}
	t.Status = t.EffectiveStatus(c.now())
	return t, nil
}

// RequiredAcceptValue is the exact value an acceptance of id must carry.
func (c *Client) RequiredAcceptValue(ctx context.Context, id *big.Int) (*big.Int, error) {
	t, err := c.contract.GetTrade(ctx, id)
	if err != nil {
		return nil, err
	}
	fee, err := c.contract.TradeFee(ctx)
	if err != nil {
		return nil, err
	}
	return t.AcceptValue(fee), nil
}

// CheckAcceptValue requires value to equal requested native plus fee.
// Over- and under-payment are both refused.
func CheckAcceptValue(t *trade.Trade, fee, value *big.Int) error {
	required := t.AcceptValue(fee)
	if value == nil || value.Cmp(required) != 0 {
		return fmt.Errorf("%w: sending %v, required %s", ErrValueMismatch, value, required)
	}
	return nil
}

func (c *Client) requireTransition(t *trade.Trade, action trade.Action) error {
	status := t.EffectiveStatus(c.now())
	if t.Status == trade.StatusPending && status == trade.StatusExpired {
		return fmt.Errorf("%w: trade %s expired at %s", ErrTradeExpired, t.ID, t.ExpiryTime.UTC().Format(time.RFC3339))
	}
	if _, err := trade.NewLifecycle(status).Apply(action); err != nil {
		return fmt.Errorf("%w: trade %s is %s: %w", ErrInvalidState, t.ID, status, err)
	}
	return nil
}

func (c *Client) requireFunds(ctx context.Context, account common.Address, value *big.Int) error {
	if value.Sign() == 0 {
		return nil
	}
	balance, err := c.balances.BalanceAt(ctx, account, nil)
	if err != nil {
		return fmt.Errorf("reading balance of %s: %w", account.Hex(), err)
	}
	if balance.Cmp(value) < 0 {
		return fmt.Errorf("%w: %s holds %s, needs %s", ErrInsufficientFunds, account.Hex(), balance, value)
	}
	return nil
}

func (c *Client) checkStandards(lists ...[]trade.Asset) error {
	receipts := c.contract.Schema().UsesReceipts
	for _, list := range lists {
		for _, a := range list {
			if (a.Standard == trade.Receipt) != receipts {
				return fmt.Errorf("%w: %s assets on %s", ErrUnsupported, a.Standard, c.contract.Schema().Version)
			}
		}
	}
	return nil
}
