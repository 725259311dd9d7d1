// Package mirror keeps a queryable off-chain copy of trades for sharing and
// listing. The chain stays authoritative; records here can drift.
package mirror

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"net/url"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/nftescrow/tradenode/internal/db"
	"github.com/nftescrow/tradenode/internal/escrow"
	"github.com/nftescrow/tradenode/pkg/trade"
	"go.uber.org/zap"
)

var (
	ErrNotConfirmed  = errors.New("on-chain trade id and creation transaction are required")
	ErrInvalidStatus = errors.New("status cannot be recorded on the mirror")
)

const (
	DefaultPageSize = 25
	MaxPageSize     = 100
)

// Proposal is the confirmed on-chain trade being mirrored.
type Proposal struct {
	From              common.Address
	To                common.Address
	OfferedAssets     []trade.Asset
	RequestedAssets   []trade.Asset
	OfferedNative     *big.Int
	RequestedNative   *big.Int
	Message           string
	ContractAddress   common.Address
	BlockchainTradeID *big.Int
	CreateTxHash      common.Hash
}

type Proposed struct {
	Record   *Record `json:"record"`
	ShareURL string  `json:"shareUrl"`
}

type Filter struct {
	From   string
	To     string
	Status *trade.Status
}

type Service struct {
	db           *sql.DB
	store        Store
	shareBaseURL string
	now          func() time.Time
}

func NewService(sqlite *sql.DB, store Store, shareBaseURL string) *Service {
	return &Service{db: sqlite, store: store, shareBaseURL: strings.TrimRight(shareBaseURL, "/"), now: time.Now}
}

// ProposeTrade records a trade whose escrow transaction has already been
// mined, returning the record and its shareable URL.
func (s *Service) ProposeTrade(ctx context.Context, p Proposal) (*Proposed, error) {
	if p.BlockchainTradeID == nil || p.CreateTxHash == (common.Hash{}) {
		return nil, ErrNotConfirmed
	}
	if p.From == (common.Address{}) || p.ContractAddress == (common.Address{}) {
		return nil, fmt.Errorf("%w: creator and contract are required", trade.ErrInvalidCounterparty)
	}
	proposal := trade.Proposal{
		Counterparty:    p.To,
		OfferedAssets:   p.OfferedAssets,
		RequestedAssets: p.RequestedAssets,
		OfferedNative:   p.OfferedNative,
		RequestedNative: p.RequestedNative,
		Message:         p.Message,
	}
	if err := proposal.Validate(p.From); err != nil {
		return nil, err
	}

	now := s.now().Unix()
	record := &Record{
		ID:                uuid.NewString(),
		From:              addressKey(p.From),
		To:                addressKey(p.To),
		OfferedAssets:     p.OfferedAssets,
		RequestedAssets:   p.RequestedAssets,
		OfferedNative:     weiString(p.OfferedNative),
		RequestedNative:   weiString(p.RequestedNative),
		Message:           p.Message,
		Status:            trade.StatusPending,
		ContractAddress:   addressKey(p.ContractAddress),
		BlockchainTradeID: p.BlockchainTradeID.String(),
		CreateTxHash:      p.CreateTxHash.Hex(),
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	_, err := db.TxRunner(ctx, s.db, func(tx *sql.Tx) (struct{}, error) {
		existing, err := s.store.FindByTradeID(tx, record.ContractAddress, record.BlockchainTradeID)
		if err == nil {
			return struct{}{}, fmt.Errorf("%w: trade %s on %s is record %s",
				ErrConflict, record.BlockchainTradeID, record.ContractAddress, existing.ID)
		}
		if !errors.Is(err, ErrNotFound) {
			return struct{}{}, err
		}
		return struct{}{}, s.store.Insert(tx, record)
	})
	if err != nil {
		return nil, err
	}
	zap.L().Info("Mirrored trade",
		zap.String("id", record.ID),
		zap.String("tradeId", record.BlockchainTradeID),
		zap.String("from", record.From),
		zap.String("to", record.To),
	)
	return &Proposed{Record: record, ShareURL: s.ShareURL(record.ID)}, nil
}

func (s *Service) ShareURL(id string) string {
	return s.shareBaseURL + "/trades/" + url.PathEscape(id)
}

// UpdateStatus moves a pending record to accepted, declined or cancelled on
// behalf of actor. Accept and decline belong to the counterparty, cancel to
// the creator. Expired is derived on chain and never stored here.
func (s *Service) UpdateStatus(ctx context.Context, id string, actor common.Address, status trade.Status, txHash common.Hash) (*Record, error) {
	action, ok := trade.ActionFor(status)
	if !ok || action == trade.ActionExpire {
		return nil, fmt.Errorf("%w: %s", ErrInvalidStatus, status)
	}
	hash := ""
	if txHash != (common.Hash{}) {
		hash = txHash.Hex()
	}

	return db.TxRunner(ctx, s.db, func(tx *sql.Tx) (*Record, error) {
		r, err := s.store.Get(tx, id)
		if err != nil {
			return nil, err
		}
		party := r.To
		if action == trade.ActionCancel {
			party = r.From
		}
		if addressKey(actor) != party {
			return nil, fmt.Errorf("%w: %s may not %s record %s", escrow.ErrUnauthorized, actor.Hex(), action, id)
		}
		next, err := trade.NewLifecycle(r.Status).Apply(action)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", escrow.ErrInvalidState, err)
		}
		now := s.now().Unix()
		if err := s.store.UpdateStatus(tx, id, next, hash, now); err != nil {
			return nil, err
		}
		r.Status = next
		r.UpdatedAt = now
		if hash != "" {
			r.TransactionHash = hash
		}
		zap.L().Info("Mirror status updated", zap.String("id", id), zap.String("status", next.String()))
		return r, nil
	})
}

func (s *Service) Get(ctx context.Context, id string) (*Record, error) {
	return s.store.Get(s.db, id)
}

// List returns records matching f, newest first. Pages start at 1.
func (s *Service) List(ctx context.Context, f Filter, page, pageSize int) (int, []*Record, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	var (
		where  []string
		params []interface{}
	)
	if f.From != "" {
		where = append(where, "from_address = ?")
		params = append(params, strings.ToLower(f.From))
	}
	if f.To != "" {
		where = append(where, "to_address = ?")
		params = append(params, strings.ToLower(f.To))
	}
	if f.Status != nil {
		where = append(where, "status = ?")
		params = append(params, f.Status.String())
	}
	return s.store.Page(s.db, strings.Join(where, " AND "), params, page, pageSize)
}

func addressKey(a common.Address) string {
	return strings.ToLower(a.Hex())
}

func weiString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
