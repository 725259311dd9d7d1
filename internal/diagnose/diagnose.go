// Package diagnose inspects one on-chain trade and explains why a lifecycle
// call on it would fail.
package diagnose

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/nftescrow/tradenode/internal/assets"
	"github.com/nftescrow/tradenode/internal/escrow"
	"github.com/nftescrow/tradenode/pkg/trade"
	"go.uber.org/zap"
)

type Params struct {
	Network string
	TradeID *big.Int
	// As is the account whose acceptance is checked. Zero means the trade's
	// counterparty.
	As common.Address
	// Value, when set, is compared with the required acceptance value.
	Value *big.Int
}

type Balance struct {
	Role    string
	Address common.Address
	Wei     *big.Int
}

type Finding struct {
	Problem string
	Remedy  string
}

type Report struct {
	Network  string
	Contract common.Address
	Schema   escrow.Schema
	HasCode  bool
	Fee      *big.Int

	Trade           *trade.Trade
	EffectiveStatus trade.Status
	CheckedAt       time.Time
	// ExpiresIn is negative once the expiry time has passed.
	ExpiresIn time.Duration

	RequiredValue *big.Int
	SuppliedValue *big.Int

	As        common.Address
	Balances  []Balance
	Offered   []assets.AssetStatus
	Requested []assets.AssetStatus

	Findings []Finding
}

func (r *Report) ValueMatches() bool {
	return r.SuppliedValue != nil && r.RequiredValue != nil && r.SuppliedValue.Cmp(r.RequiredValue) == 0
}

func (r *Report) add(problem, remedy string) {
	r.Findings = append(r.Findings, Finding{Problem: problem, Remedy: remedy})
}

type Diagnoser struct {
	client   *escrow.Client
	balances escrow.Balances
}

func New(client *escrow.Client, balances escrow.Balances) *Diagnoser {
	return &Diagnoser{client: client, balances: balances}
}

// Run gathers everything readable about the trade. Read failures become
// findings; only a missing contract or trade id is returned as an error.
func (d *Diagnoser) Run(ctx context.Context, p Params) (*Report, error) {
	if p.TradeID == nil {
		return nil, errors.New("trade id is required")
	}
	contract := d.client.Contract()
	r := &Report{
		Network:   p.Network,
		Contract:  contract.Address(),
		Schema:    contract.Schema(),
		CheckedAt: d.client.Now(),
	}

	hasCode, err := contract.HasCode(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading code at %s: %w", r.Contract.Hex(), err)
	}
	r.HasCode = hasCode
	if !hasCode {
		r.add("no contract code at "+r.Contract.Hex(), "check the contract address and that --network points at the chain it was deployed to")
		return r, nil
	}

	if r.Fee, err = contract.TradeFee(ctx); err != nil {
		r.add("trade fee unreadable: "+err.Error(), "check --contract-version matches the deployed contract")
	}

	t, err := contract.GetTrade(ctx, p.TradeID)
	if err != nil {
		if errors.Is(err, escrow.ErrTradeNotFound) {
			r.add(fmt.Sprintf("trade %s does not exist on this contract", p.TradeID), "check the trade id and contract address")
			return r, nil
		}
		r.add("trade unreadable: "+err.Error(), "check --contract-version matches the deployed contract")
		return r, nil
	}
	r.Trade = t
	r.EffectiveStatus = t.EffectiveStatus(r.CheckedAt)
	if !t.ExpiryTime.IsZero() {
		r.ExpiresIn = t.ExpiryTime.Sub(r.CheckedAt)
	}
	r.As = p.As
	if r.As == (common.Address{}) {
		r.As = t.Counterparty
	}
	if r.Fee != nil {
		r.RequiredValue = t.AcceptValue(r.Fee)
	}
	r.SuppliedValue = p.Value

	d.checkStatus(r)
	d.checkBalances(ctx, r)
	d.checkAssets(ctx, r)

	zap.L().Debug("Trade diagnosed",
		zap.String("tradeId", p.TradeID.String()),
		zap.String("status", r.EffectiveStatus.String()),
		zap.Int("findings", len(r.Findings)),
	)
	return r, nil
}

func (d *Diagnoser) checkStatus(r *Report) {
	t := r.Trade
	switch {
	case t.Status == trade.StatusPending && r.EffectiveStatus == trade.StatusExpired:
		remedy := "the creator can cancel to reclaim the escrowed assets"
		switch {
		case r.Schema.HasExpireCall:
			remedy = "call expire to settle it and return the escrowed assets"
		case r.Schema.InlineExpiry:
			remedy = "any cancel or decline call settles it as expired"
		}
		r.add(fmt.Sprintf("trade expired at %s but is still recorded as pending", t.ExpiryTime.UTC().Format(time.RFC3339)), remedy)
	case t.Status.IsTerminal():
		r.add("trade is already "+t.Status.String(), "no lifecycle action can change it; propose a new trade")
	}
	if r.As != t.Counterparty {
		r.add(fmt.Sprintf("%s is not the counterparty (%s)", r.As.Hex(), t.Counterparty.Hex()), "only the counterparty can accept or decline")
	}
	if r.SuppliedValue != nil && r.RequiredValue != nil && !r.ValueMatches() {
		r.add(fmt.Sprintf("value %s does not equal requested native plus fee (%s)", r.SuppliedValue, r.RequiredValue),
			"send exactly the required value; over- and under-payment both revert")
	}
}

func (d *Diagnoser) checkBalances(ctx context.Context, r *Report) {
	t := r.Trade
	accounts := []Balance{
		{Role: "creator", Address: t.Creator},
		{Role: "counterparty", Address: t.Counterparty},
	}
	if r.As != t.Counterparty && r.As != t.Creator {
		accounts = append(accounts, Balance{Role: "as", Address: r.As})
	}
	if r.EffectiveStatus == trade.StatusPending {
		accounts = append(accounts, Balance{Role: "escrow", Address: r.Contract})
	}
	for _, b := range accounts {
		wei, err := d.balances.BalanceAt(ctx, b.Address, nil)
		if err != nil {
			r.add(fmt.Sprintf("balance of %s unreadable: %v", b.Role, err), "retry against a healthy RPC endpoint")
			continue
		}
		b.Wei = wei
		r.Balances = append(r.Balances, b)

		if b.Address == r.As && r.RequiredValue != nil && wei.Cmp(r.RequiredValue) < 0 && r.EffectiveStatus == trade.StatusPending {
			r.add(fmt.Sprintf("%s holds %s, acceptance needs %s plus gas", b.Role, wei, r.RequiredValue), "fund the accepting account")
		}
		if b.Role == "escrow" && t.OfferedNative != nil && wei.Cmp(t.OfferedNative) < 0 {
			r.add(fmt.Sprintf("escrow holds %s, less than the offered %s", wei, t.OfferedNative), "the contract cannot pay out this trade; report it to the operator")
		}
	}
}

func (d *Diagnoser) checkAssets(ctx context.Context, r *Report) {
	t := r.Trade
	checker := d.client.Checker()

	// Offered assets stay escrowed until the trade settles, expired or not.
	r.Offered = checker.Report(ctx, r.Contract, t.OfferedAssets)
	if t.Status == trade.StatusPending {
		for _, s := range r.Offered {
			if !s.Held {
				r.add(fmt.Sprintf("offered %s is not in escrow: %s", s.Asset, s.HoldError),
					"the trade cannot settle; the creator should cancel and re-create it")
			}
		}
	}

	r.Requested = checker.Report(ctx, r.As, t.RequestedAssets)
	if r.EffectiveStatus != trade.StatusPending {
		return
	}
	for _, s := range r.Requested {
		if !s.Held {
			r.add(fmt.Sprintf("requested %s is not held by %s: %s", s.Asset, r.As.Hex(), s.HoldError),
				"the accepting account must own the requested asset at acceptance time")
		}
		if !s.Approved {
			r.add(fmt.Sprintf("requested %s is not approved for %s", s.Asset, checker.Operator().Hex()),
				"run approve for the collection (setApprovalForAll) before accepting")
		}
	}
}
