package escrowsim

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/nftescrow/tradenode/internal/assets"
	"github.com/nftescrow/tradenode/internal/escrow"
	"github.com/nftescrow/tradenode/internal/eth"
	"github.com/nftescrow/tradenode/pkg/trade"
)

type receipt struct {
	owner common.Address
	asset trade.Asset
}

// Escrow models one deployed trading contract.
type Escrow struct {
	chain      *Chain
	address    common.Address
	schema     escrow.Schema
	fee        *big.Int
	feeAddress common.Address

	nextTrade   int64
	trades      map[string]*trade.Trade
	nextReceipt int64
	receipts    map[string]*receipt
}

func (c *Chain) DeployEscrow(address common.Address, version escrow.Version, fee *big.Int, feeAddress common.Address) *Escrow {
	return &Escrow{
		chain:      c,
		address:    address,
		schema:     version.Schema(),
		fee:        new(big.Int).Set(fee),
		feeAddress: feeAddress,
		trades:     map[string]*trade.Trade{},
		receipts:   map[string]*receipt{},
	}
}

func (e *Escrow) Address() common.Address {
	return e.address
}

// RawStatus is the status bookkeeping as stored, without expiry derivation.
func (e *Escrow) RawStatus(id *big.Int) trade.Status {
	e.chain.mu.Lock()
	defer e.chain.mu.Unlock()
	return e.trades[id.String()].Status
}

func (e *Escrow) ReceiptOwner(_ context.Context, id *big.Int) (common.Address, bool, error) {
	e.chain.mu.Lock()
	defer e.chain.mu.Unlock()
	r, ok := e.receipts[id.String()]
	if !ok {
		return common.Address{}, false, nil
	}
	return r.owner, true, nil
}

// As binds a session sending calls from caller.
func (e *Escrow) As(caller common.Address) *Session {
	return &Session{escrow: e, caller: caller}
}

// Session is the escrow, the NFT collections and native balances as seen by
// one wallet.
type Session struct {
	escrow *Escrow
	caller common.Address
}

var (
	_ escrow.TradingContract    = (*Session)(nil)
	_ escrow.Balances           = (*Session)(nil)
	_ assets.CollectionProvider = (*Session)(nil)
)

func (s *Session) Address() common.Address { return s.escrow.address }
func (s *Session) Schema() escrow.Schema   { return s.escrow.schema }
func (s *Session) Caller() common.Address  { return s.caller }

func (s *Session) HasCode(context.Context) (bool, error) {
	return true, nil
}

func (s *Session) TradeFee(context.Context) (*big.Int, error) {
	return new(big.Int).Set(s.escrow.fee), nil
}

func (s *Session) BalanceAt(_ context.Context, account common.Address, _ *big.Int) (*big.Int, error) {
	return s.escrow.chain.Balance(account), nil
}

func (s *Session) Collection(address common.Address, standard trade.Standard) assets.Collection {
	return s.escrow.chain.Collections(s.caller).Collection(address, standard)
}

func (s *Session) GetTrade(_ context.Context, id *big.Int) (*trade.Trade, error) {
	e := s.escrow
	e.chain.mu.Lock()
	defer e.chain.mu.Unlock()
	t, ok := e.trades[id.String()]
	if !ok {
		return nil, fmt.Errorf("%w: %s", escrow.ErrTradeNotFound, id)
	}
	cp := *t
	cp.ID = new(big.Int).Set(t.ID)
	cp.OfferedAssets = append([]trade.Asset(nil), t.OfferedAssets...)
	cp.RequestedAssets = append([]trade.Asset(nil), t.RequestedAssets...)
	return &cp, nil
}

func revert(op, reason string, cause error) error {
	return &eth.RevertError{Op: op, Reason: reason, Err: cause}
}

func (s *Session) CreateTrade(_ context.Context, p trade.Proposal, value *big.Int) (*big.Int, common.Hash, error) {
	e := s.escrow
	e.chain.mu.Lock()
	defer e.chain.mu.Unlock()

	if value.Cmp(e.fee) < 0 {
		return nil, common.Hash{}, revert("createTrade", "Insufficient fee", escrow.ErrValueMismatch)
	}
	if e.chain.balance(s.caller).Cmp(value) < 0 {
		return nil, common.Hash{}, revert("createTrade", "insufficient funds for transfer", escrow.ErrInsufficientFunds)
	}
	if len(p.Message) > trade.MaxMessageLength {
		return nil, common.Hash{}, revert("createTrade", "Message too long", trade.ErrMessageTooLong)
	}
	for _, a := range p.OfferedAssets {
		if err := e.canMove(a, s.caller); err != nil {
			return nil, common.Hash{}, revert("createTrade", err.Error(), err)
		}
	}

	for _, a := range p.OfferedAssets {
		e.moveAsset(a, s.caller, e.address)
	}
	e.chain.debit(s.caller, value)
	e.chain.credit(e.feeAddress, e.fee)
	e.chain.credit(e.address, new(big.Int).Sub(value, e.fee))

	e.nextTrade++
	id := big.NewInt(e.nextTrade)
	now := e.chain.now
	e.trades[id.String()] = &trade.Trade{
		ID:              id,
		Creator:         s.caller,
		Counterparty:    p.Counterparty,
		OfferedAssets:   append([]trade.Asset(nil), p.OfferedAssets...),
		RequestedAssets: append([]trade.Asset(nil), p.RequestedAssets...),
		OfferedNative:   new(big.Int).Sub(value, e.fee),
		RequestedNative: new(big.Int).Set(orZero(p.RequestedNative)),
		Message:         p.Message,
		Status:          trade.StatusPending,
		CreatedAt:       now,
		ExpiryTime:      now.Add(trade.DefaultExpiry),
	}
	return new(big.Int).Set(id), e.chain.nextTxHash(), nil
}

func (s *Session) AcceptTrade(_ context.Context, id *big.Int, value *big.Int) (common.Hash, error) {
	e := s.escrow
	e.chain.mu.Lock()
	defer e.chain.mu.Unlock()

	t, err := e.pending("acceptTrade", id)
	if err != nil {
		return common.Hash{}, err
	}
	if s.caller != t.Counterparty {
		return common.Hash{}, revert("acceptTrade", "Not the counterparty", escrow.ErrUnauthorized)
	}
	if t.IsExpired(e.chain.now) {
		return common.Hash{}, revert("acceptTrade", "Trade expired", escrow.ErrTradeExpired)
	}
	required := t.AcceptValue(e.fee)
	if value == nil || value.Cmp(required) != 0 {
		return common.Hash{}, revert("acceptTrade", "Incorrect ETH value", escrow.ErrValueMismatch)
	}
	if e.chain.balance(s.caller).Cmp(value) < 0 {
		return common.Hash{}, revert("acceptTrade", "insufficient funds for transfer", escrow.ErrInsufficientFunds)
	}
	for _, a := range t.RequestedAssets {
		if err := e.canMove(a, s.caller); err != nil {
			return common.Hash{}, revert("acceptTrade", err.Error(), err)
		}
	}

	for _, a := range t.RequestedAssets {
		e.moveAsset(a, s.caller, t.Creator)
	}
	for _, a := range t.OfferedAssets {
		e.moveAsset(a, e.address, t.Counterparty)
	}
	e.chain.debit(s.caller, value)
	e.chain.credit(e.feeAddress, e.fee)
	e.chain.credit(t.Creator, t.RequestedNative)
	e.chain.debit(e.address, t.OfferedNative)
	e.chain.credit(t.Counterparty, t.OfferedNative)
	return e.transition(t, trade.ActionAccept)
}

func (s *Session) DeclineTrade(_ context.Context, id *big.Int) (common.Hash, error) {
	e := s.escrow
	e.chain.mu.Lock()
	defer e.chain.mu.Unlock()

	if !e.schema.SupportsDecline {
		return common.Hash{}, revert("declineTrade", MissingFunction, escrow.ErrUnsupported)
	}
	t, err := e.pending("declineTrade", id)
	if err != nil {
		return common.Hash{}, err
	}
	if s.caller != t.Counterparty {
		return common.Hash{}, revert("declineTrade", "Not the counterparty", escrow.ErrUnauthorized)
	}
	e.refund(t)
	if t.IsExpired(e.chain.now) {
		return e.transition(t, trade.ActionExpire)
	}
	return e.transition(t, trade.ActionDecline)
}

func (s *Session) CancelTrade(_ context.Context, id *big.Int) (common.Hash, error) {
	e := s.escrow
	e.chain.mu.Lock()
	defer e.chain.mu.Unlock()

	t, err := e.pending("cancelTrade", id)
	if err != nil {
		return common.Hash{}, err
	}
	if s.caller != t.Creator {
		return common.Hash{}, revert("cancelTrade", "Not the creator", escrow.ErrUnauthorized)
	}
	expired := t.IsExpired(e.chain.now)
	if expired && !e.schema.InlineExpiry {
		return common.Hash{}, revert("cancelTrade", "Trade expired", escrow.ErrTradeExpired)
	}
	e.refund(t)
	if expired {
		return e.transition(t, trade.ActionExpire)
	}
	return e.transition(t, trade.ActionCancel)
}

// ExpireTrade models the explicit expiry call. The earliest versions accepted
// it before the expiry time; that behaviour is reproduced here.
func (s *Session) ExpireTrade(_ context.Context, id *big.Int) (common.Hash, error) {
	e := s.escrow
	e.chain.mu.Lock()
	defer e.chain.mu.Unlock()

	if !e.schema.HasExpireCall {
		return common.Hash{}, revert("expireTrade", MissingFunction, escrow.ErrUnsupported)
	}
	t, err := e.pending("expireTrade", id)
	if err != nil {
		return common.Hash{}, err
	}
	if e.schema.HasExpiryField && !t.IsExpired(e.chain.now) {
		return common.Hash{}, revert("expireTrade", "Trade not expired", escrow.ErrTradeNotExpired)
	}
	e.refund(t)
	return e.transition(t, trade.ActionExpire)
}

// MissingFunction is the reason reported when a version lacks the called
// function.
const MissingFunction = eth.MissingRevertData

func (s *Session) Deposit(_ context.Context, asset trade.Asset) (*big.Int, common.Hash, error) {
	e := s.escrow
	e.chain.mu.Lock()
	defer e.chain.mu.Unlock()

	if !e.schema.UsesReceipts {
		return nil, common.Hash{}, revert("depositNFT", MissingFunction, escrow.ErrUnsupported)
	}
	if err := e.chain.canMove(asset, s.caller, e.address); err != nil {
		return nil, common.Hash{}, revert("depositNFT", err.Error(), err)
	}
	e.chain.move(asset, s.caller, e.address)
	e.nextReceipt++
	id := big.NewInt(e.nextReceipt)
	e.receipts[id.String()] = &receipt{owner: s.caller, asset: asset}
	return new(big.Int).Set(id), e.chain.nextTxHash(), nil
}

func (s *Session) Withdraw(_ context.Context, receiptID *big.Int) (common.Hash, error) {
	e := s.escrow
	e.chain.mu.Lock()
	defer e.chain.mu.Unlock()

	r, ok := e.receipts[receiptID.String()]
	if !ok || r.owner != s.caller {
		return common.Hash{}, revert("withdrawNFT", "Not receipt owner", assets.ErrNotOwner)
	}
	e.chain.move(r.asset, e.address, s.caller)
	delete(e.receipts, receiptID.String())
	return e.chain.nextTxHash(), nil
}

// ReceiptAsset returns the NFT a receipt stands for.
func (e *Escrow) ReceiptAsset(id *big.Int) (trade.Asset, bool) {
	e.chain.mu.Lock()
	defer e.chain.mu.Unlock()
	r, ok := e.receipts[id.String()]
	if !ok {
		return trade.Asset{}, false
	}
	return r.asset, true
}

func (e *Escrow) pending(op string, id *big.Int) (*trade.Trade, error) {
	t, ok := e.trades[id.String()]
	if !ok {
		return nil, revert(op, "Trade does not exist", escrow.ErrTradeNotFound)
	}
	if t.Status != trade.StatusPending {
		return nil, revert(op, "Trade not pending", escrow.ErrInvalidState)
	}
	return t, nil
}

func (e *Escrow) transition(t *trade.Trade, action trade.Action) (common.Hash, error) {
	status, err := trade.NewLifecycle(t.Status).Apply(action)
	if err != nil {
		return common.Hash{}, revert(string(action)+"Trade", "Trade not pending", escrow.ErrInvalidState)
	}
	t.Status = status
	return e.chain.nextTxHash(), nil
}

func (e *Escrow) refund(t *trade.Trade) {
	for _, a := range t.OfferedAssets {
		e.moveAsset(a, e.address, t.Creator)
	}
	e.chain.debit(e.address, t.OfferedNative)
	e.chain.credit(t.Creator, t.OfferedNative)
}

func (e *Escrow) canMove(a trade.Asset, from common.Address) error {
	if a.Standard == trade.Receipt {
		r, ok := e.receipts[a.TokenID.String()]
		if !ok || r.owner != from {
			return fmt.Errorf("%w: receipt %s", assets.ErrNotOwner, a.TokenID)
		}
		return nil
	}
	return e.chain.canMove(a, from, e.address)
}

func (e *Escrow) moveAsset(a trade.Asset, from, to common.Address) {
	if a.Standard == trade.Receipt {
		e.receipts[a.TokenID.String()].owner = to
		return
	}
	e.chain.move(a, from, to)
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}
