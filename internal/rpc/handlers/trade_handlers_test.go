package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/nftescrow/tradenode/internal/mirror"
	"github.com/nftescrow/tradenode/internal/nftmeta"
	"github.com/nftescrow/tradenode/pkg/trade"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	alice = "0x00000000000000000000000000000000000A11CE"
	bob   = "0x0000000000000000000000000000000000000B0B"
)

type mockMirror struct {
	mock.Mock
}

func (m *mockMirror) ProposeTrade(ctx context.Context, p mirror.Proposal) (*mirror.Proposed, error) {
	args := m.Called(ctx, p)
	proposed, _ := args.Get(0).(*mirror.Proposed)
	return proposed, args.Error(1)
}

func (m *mockMirror) Get(ctx context.Context, id string) (*mirror.Record, error) {
	args := m.Called(ctx, id)
	record, _ := args.Get(0).(*mirror.Record)
	return record, args.Error(1)
}

func (m *mockMirror) UpdateStatus(ctx context.Context, id string, actor common.Address, status trade.Status, txHash common.Hash) (*mirror.Record, error) {
	args := m.Called(ctx, id, actor, status, txHash)
	record, _ := args.Get(0).(*mirror.Record)
	return record, args.Error(1)
}

func (m *mockMirror) List(ctx context.Context, f mirror.Filter, page, pageSize int) (int, []*mirror.Record, error) {
	args := m.Called(ctx, f, page, pageSize)
	records, _ := args.Get(1).([]*mirror.Record)
	return args.Int(0), records, args.Error(2)
}

type mockProvider struct {
	mock.Mock
}

func (m *mockProvider) Name() string { return "mock" }

func (m *mockProvider) ListOwnerNFTs(ctx context.Context, owner common.Address, opts nftmeta.ListOptions) (*nftmeta.Page, error) {
	args := m.Called(ctx, owner, opts)
	page, _ := args.Get(0).(*nftmeta.Page)
	return page, args.Error(1)
}

func serveAPI(t *testing.T, api *API, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	r := chi.NewRouter()
	SetupHandlers(r, api.Routes())
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestTradesGetList_ParsesFilters(t *testing.T) {
	m := &mockMirror{}
	declined := trade.StatusDeclined
	m.On("List", mock.Anything, mirror.Filter{From: strings.ToLower(alice), Status: &declined}, 2, 5).
		Return(12, []*mirror.Record{{ID: "r1"}}, nil).Once()

	rec := serveAPI(t, &API{Mirror: m}, http.MethodGet, "/api/v1/trades?from="+alice+"&status=declined&page=2&page_size=5", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp TradesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 12, resp.Total)
	require.Len(t, resp.Data, 1)
	assert.NotNil(t, resp.Prev)
	assert.NotNil(t, resp.Next)
	m.AssertExpectations(t)
}

func TestTradesGetList_RejectsBadFilters(t *testing.T) {
	m := &mockMirror{}
	for _, q := range []string{"from=nope", "to=0x12", "status=expiredish"} {
		rec := serveAPI(t, &API{Mirror: m}, http.MethodGet, "/api/v1/trades?"+q, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
	m.AssertNotCalled(t, "List", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestTradesPost_BuildsProposal(t *testing.T) {
	m := &mockMirror{}
	m.On("ProposeTrade", mock.Anything, mock.MatchedBy(func(p mirror.Proposal) bool {
		return p.From == common.HexToAddress(alice) &&
			p.To == common.HexToAddress(bob) &&
			len(p.OfferedAssets) == 1 &&
			p.OfferedAssets[0].Standard == trade.ERC1155 &&
			p.OfferedAssets[0].Amount.Int64() == 3 &&
			p.RequestedNative.String() == "5000" &&
			p.OfferedNative.Sign() == 0 &&
			p.BlockchainTradeID.Int64() == 9 &&
			p.CreateTxHash == common.HexToHash("0x"+strings.Repeat("cd", 32))
	})).Return(&mirror.Proposed{Record: &mirror.Record{ID: "r9"}, ShareURL: "https://x/trades/r9"}, nil).Once()

	body := `{
		"from": "` + alice + `", "to": "` + bob + `",
		"offeredAssets": [{"contract": "0x0000000000000000000000000000000000000a02", "tokenId": 4, "amount": 3, "standard": "ERC1155"}],
		"requestedNative": "5000",
		"contractAddress": "0x00000000000000000000000000000000000000e5",
		"blockchainTradeId": "9",
		"createTxHash": "0x` + strings.Repeat("cd", 32) + `"
	}`
	rec := serveAPI(t, &API{Mirror: m}, http.MethodPost, "/api/v1/trades", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"shareUrl":"https://x/trades/r9"`)
	m.AssertExpectations(t)
}

func TestTradesPost_BadBodies(t *testing.T) {
	m := &mockMirror{}
	for name, body := range map[string]string{
		"empty":         ``,
		"malformed":     `{"from":`,
		"unknown field": `{"from": "` + alice + `", "surprise": 1}`,
		"bad address":   `{"from": "0xnope", "to": "` + bob + `", "contractAddress": "` + bob + `"}`,
		"bad wei":       `{"from": "` + alice + `", "to": "` + bob + `", "contractAddress": "` + bob + `", "requestedNative": "0.5"}`,
		"bad standard":  `{"from": "` + alice + `", "offeredAssets": [{"standard": "ERC20"}]}`,
	} {
		rec := serveAPI(t, &API{Mirror: m}, http.MethodPost, "/api/v1/trades", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, name)
	}
	m.AssertNotCalled(t, "ProposeTrade", mock.Anything, mock.Anything)
}

func TestTradeGet_NotFound(t *testing.T) {
	m := &mockMirror{}
	m.On("Get", mock.Anything, "abc").Return(nil, mirror.ErrNotFound).Once()

	rec := serveAPI(t, &API{Mirror: m}, http.MethodGet, "/api/v1/trades/abc", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `"error"`)
}

func TestTradeStatusPut(t *testing.T) {
	m := &mockMirror{}
	txHash := common.HexToHash("0x" + strings.Repeat("ef", 32))
	m.On("UpdateStatus", mock.Anything, "abc", common.HexToAddress(bob), trade.StatusAccepted, txHash).
		Return(&mirror.Record{ID: "abc", Status: trade.StatusAccepted}, nil).Once()

	rec := serveAPI(t, &API{Mirror: m}, http.MethodPut, "/api/v1/trades/abc/status",
		`{"actor": "`+bob+`", "status": "accepted", "transactionHash": "`+txHash.Hex()+`"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"status":"accepted"`)

	rec = serveAPI(t, &API{Mirror: m}, http.MethodPut, "/api/v1/trades/abc/status", `{"actor": "`+bob+`", "status": "sold"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = serveAPI(t, &API{Mirror: m}, http.MethodPut, "/api/v1/trades/abc/status", `{"actor": "`+bob+`", "status": "accepted", "transactionHash": "0x12"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	m.AssertExpectations(t)
}

func TestWalletNFTsGet(t *testing.T) {
	p := &mockProvider{}
	punks := common.HexToAddress("0x0000000000000000000000000000000000000a01")
	p.On("ListOwnerNFTs", mock.Anything, common.HexToAddress(alice), nftmeta.ListOptions{
		Contracts: []common.Address{punks},
		PageKey:   "k1",
		PageSize:  10,
	}).Return(&nftmeta.Page{NFTs: []nftmeta.OwnedNFT{{Contract: punks, TokenID: "7"}}, PageKey: "k2"}, nil).Once()

	api := &API{Mirror: &mockMirror{}, NFTs: p}
	rec := serveAPI(t, api, http.MethodGet, "/api/v1/wallets/"+alice+"/nfts?contract="+punks.Hex()+"&page_key=k1&page_size=10", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var page nftmeta.Page
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Equal(t, "k2", page.PageKey)
	require.Len(t, page.NFTs, 1)

	rec = serveAPI(t, api, http.MethodGet, "/api/v1/wallets/bogus/nfts", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	p.On("ListOwnerNFTs", mock.Anything, common.HexToAddress(bob), mock.Anything).Return(nil, nftmeta.ErrUnavailable).Once()
	rec = serveAPI(t, api, http.MethodGet, "/api/v1/wallets/"+bob+"/nfts", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	p.AssertExpectations(t)
}

func TestWalletNFTs_NotRoutedWithoutProvider(t *testing.T) {
	rec := serveAPI(t, &API{Mirror: &mockMirror{}}, http.MethodGet, "/api/v1/wallets/"+alice+"/nfts", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
