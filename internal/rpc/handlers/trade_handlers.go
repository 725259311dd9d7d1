package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/nftescrow/tradenode/internal/mirror"
	"github.com/nftescrow/tradenode/pkg/trade"
)

const maxBodyBytes = 64 << 10

type TradesResponse struct {
	PaginatedResponse
	Data []*mirror.Record `json:"data"`
}

type ProposeTradeRequest struct {
	From              string        `json:"from"`
	To                string        `json:"to"`
	OfferedAssets     []trade.Asset `json:"offeredAssets"`
	RequestedAssets   []trade.Asset `json:"requestedAssets"`
	OfferedNative     string        `json:"offeredNative"`
	RequestedNative   string        `json:"requestedNative"`
	Message           string        `json:"message"`
	ContractAddress   string        `json:"contractAddress"`
	BlockchainTradeID string        `json:"blockchainTradeId"`
	CreateTxHash      string        `json:"createTxHash"`
}

type UpdateStatusRequest struct {
	Actor           string `json:"actor"`
	Status          string `json:"status"`
	TransactionHash string `json:"transactionHash"`
}

func TradesGetListHandler(r *http.Request, m TradeMirror) (TradesResponse, error) {
	page, pageSize := ExtractPagination(r)
	q := r.URL.Query()

	filter := mirror.Filter{}
	var err error
	if filter.From, err = optionalAddress(q.Get("from")); err != nil {
		return TradesResponse{}, err
	}
	if filter.To, err = optionalAddress(q.Get("to")); err != nil {
		return TradesResponse{}, err
	}
	if s := q.Get("status"); s != "" {
		status, err := trade.ParseStatus(s)
		if err != nil {
			return TradesResponse{}, badRequest(err)
		}
		filter.Status = &status
	}

	total, records, err := m.List(r.Context(), filter, page, pageSize)
	if err != nil {
		return TradesResponse{}, err
	}
	if records == nil {
		records = []*mirror.Record{}
	}
	resp := TradesResponse{
		PaginatedResponse: PaginatedResponse{Page: page, PageSize: pageSize},
		Data:              records,
	}
	resp.ReturnPaginatedData(r, total)
	return resp, nil
}

func TradesPostHandler(r *http.Request, m TradeMirror) (any, error) {
	var req ProposeTradeRequest
	if err := decodeBody(r, &req); err != nil {
		return nil, err
	}
	proposal, err := req.toProposal()
	if err != nil {
		return nil, badRequest(err)
	}
	proposed, err := m.ProposeTrade(r.Context(), proposal)
	if err != nil {
		return nil, err
	}
	return Created{Body: proposed}, nil
}

func TradeGetHandler(r *http.Request, m TradeMirror) (*mirror.Record, error) {
	return m.Get(r.Context(), chi.URLParam(r, "id"))
}

func TradeStatusPutHandler(r *http.Request, m TradeMirror) (*mirror.Record, error) {
	var req UpdateStatusRequest
	if err := decodeBody(r, &req); err != nil {
		return nil, err
	}
	actor, err := parseAddress("actor", req.Actor)
	if err != nil {
		return nil, badRequest(err)
	}
	status, err := trade.ParseStatus(req.Status)
	if err != nil {
		return nil, badRequest(err)
	}
	var txHash common.Hash
	if req.TransactionHash != "" {
		if txHash, err = parseHash("transactionHash", req.TransactionHash); err != nil {
			return nil, badRequest(err)
		}
	}
	return m.UpdateStatus(r.Context(), chi.URLParam(r, "id"), actor, status, txHash)
}

func (req ProposeTradeRequest) toProposal() (mirror.Proposal, error) {
	var (
		p   mirror.Proposal
		err error
	)
	if p.From, err = parseAddress("from", req.From); err != nil {
		return p, err
	}
	if p.To, err = parseAddress("to", req.To); err != nil {
		return p, err
	}
	if p.ContractAddress, err = parseAddress("contractAddress", req.ContractAddress); err != nil {
		return p, err
	}
	if p.OfferedNative, err = parseWei("offeredNative", req.OfferedNative); err != nil {
		return p, err
	}
	if p.RequestedNative, err = parseWei("requestedNative", req.RequestedNative); err != nil {
		return p, err
	}
	if req.BlockchainTradeID != "" {
		id, ok := new(big.Int).SetString(req.BlockchainTradeID, 10)
		if !ok || id.Sign() < 0 {
			return p, fmt.Errorf("invalid blockchainTradeId %q", req.BlockchainTradeID)
		}
		p.BlockchainTradeID = id
	}
	if req.CreateTxHash != "" {
		if p.CreateTxHash, err = parseHash("createTxHash", req.CreateTxHash); err != nil {
			return p, err
		}
	}
	p.OfferedAssets = req.OfferedAssets
	p.RequestedAssets = req.RequestedAssets
	p.Message = req.Message
	return p, nil
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return badRequest(errors.New("empty body"))
		}
		return badRequest(err)
	}
	return nil
}

func parseAddress(field, s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid %s address %q", field, s)
	}
	return common.HexToAddress(s), nil
}

func optionalAddress(s string) (string, error) {
	if s == "" {
		return "", nil
	}
	a, err := parseAddress("filter", s)
	if err != nil {
		return "", badRequest(err)
	}
	return strings.ToLower(a.Hex()), nil
}

func parseHash(field, s string) (common.Hash, error) {
	b := common.FromHex(s)
	if len(b) != common.HashLength {
		return common.Hash{}, fmt.Errorf("invalid %s %q", field, s)
	}
	return common.BytesToHash(b), nil
}

func parseWei(field, s string) (*big.Int, error) {
	if s == "" {
		return new(big.Int), nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("invalid %s %q, expected wei", field, s)
	}
	return v, nil
}
