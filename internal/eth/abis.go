package eth

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Function and event fragments of the contracts the client talks to. Only
// the members that are called or decoded are listed.

const assetTupleComponents = `[
	{"name": "contractAddress", "type": "address"},
	{"name": "tokenId",         "type": "uint256"},
	{"name": "amount",          "type": "uint256"},
	{"name": "standard",        "type": "uint8"}
]`

const tradeEventsFragment = `
	{"type": "event", "name": "TradeCreated", "anonymous": false, "inputs": [
		{"indexed": true, "name": "tradeId",      "type": "uint256"},
		{"indexed": true, "name": "creator",      "type": "address"},
		{"indexed": true, "name": "counterparty", "type": "address"}
	]},
	{"type": "event", "name": "TradeAccepted", "anonymous": false, "inputs": [
		{"indexed": true, "name": "tradeId",      "type": "uint256"},
		{"indexed": true, "name": "counterparty", "type": "address"}
	]},
	{"type": "event", "name": "TradeCancelled", "anonymous": false, "inputs": [
		{"indexed": true, "name": "tradeId", "type": "uint256"}
	]},
	{"type": "event", "name": "TradeExpired", "anonymous": false, "inputs": [
		{"indexed": true, "name": "tradeId", "type": "uint256"}
	]},
	{"type": "event", "name": "TradeDeclined", "anonymous": false, "inputs": [
		{"indexed": true, "name": "tradeId", "type": "uint256"}
	]}`

const tradeActionsFragment = `
	{"type": "function", "name": "acceptTrade", "stateMutability": "payable",
	 "inputs": [{"name": "tradeId", "type": "uint256"}], "outputs": []},
	{"type": "function", "name": "cancelTrade", "stateMutability": "nonpayable",
	 "inputs": [{"name": "tradeId", "type": "uint256"}], "outputs": []}`

const nftListViewsFragment = `
	{"type": "function", "name": "getOfferedNFTs", "stateMutability": "view",
	 "inputs": [{"name": "tradeId", "type": "uint256"}],
	 "outputs": [{"name": "", "type": "tuple[]", "components": ` + assetTupleComponents + `}]},
	{"type": "function", "name": "getRequestedNFTs", "stateMutability": "view",
	 "inputs": [{"name": "tradeId", "type": "uint256"}],
	 "outputs": [{"name": "", "type": "tuple[]", "components": ` + assetTupleComponents + `}]}`

const createTradeFragment = `
	{"type": "function", "name": "createTrade", "stateMutability": "payable",
	 "inputs": [
		{"name": "counterparty",    "type": "address"},
		{"name": "offeredNFTs",     "type": "tuple[]", "components": ` + assetTupleComponents + `},
		{"name": "requestedNFTs",   "type": "tuple[]", "components": ` + assetTupleComponents + `},
		{"name": "requestedNative", "type": "uint256"},
		{"name": "message",         "type": "string"}
	 ],
	 "outputs": [{"name": "tradeId", "type": "uint256"}]}`

func getTradeFragment(withExpiry bool) string {
	expiry := ""
	if withExpiry {
		expiry = `,{"name": "expiryTime", "type": "uint256"}`
	}
	return `
	{"type": "function", "name": "getTrade", "stateMutability": "view",
	 "inputs": [{"name": "tradeId", "type": "uint256"}],
	 "outputs": [
		{"name": "creator",         "type": "address"},
		{"name": "counterparty",    "type": "address"},
		{"name": "offeredNative",   "type": "uint256"},
		{"name": "requestedNative", "type": "uint256"},
		{"name": "message",         "type": "string"},
		{"name": "status",          "type": "uint8"},
		{"name": "createdAt",       "type": "uint256"}` + expiry + `
	 ]}`
}

func feeFragment(name string) string {
	return `
	{"type": "function", "name": "` + name + `", "stateMutability": "view",
	 "inputs": [], "outputs": [{"name": "", "type": "uint256"}]}`
}

const expireTradeFragment = `
	{"type": "function", "name": "expireTrade", "stateMutability": "nonpayable",
	 "inputs": [{"name": "tradeId", "type": "uint256"}], "outputs": []}`

const declineTradeFragment = `
	{"type": "function", "name": "declineTrade", "stateMutability": "nonpayable",
	 "inputs": [{"name": "tradeId", "type": "uint256"}], "outputs": []}`

const erc721JSON = `[
	{"type": "function", "name": "ownerOf", "stateMutability": "view",
	 "inputs": [{"name": "tokenId", "type": "uint256"}],
	 "outputs": [{"name": "", "type": "address"}]},
	{"type": "function", "name": "getApproved", "stateMutability": "view",
	 "inputs": [{"name": "tokenId", "type": "uint256"}],
	 "outputs": [{"name": "", "type": "address"}]},
	{"type": "function", "name": "isApprovedForAll", "stateMutability": "view",
	 "inputs": [{"name": "owner", "type": "address"}, {"name": "operator", "type": "address"}],
	 "outputs": [{"name": "", "type": "bool"}]},
	{"type": "function", "name": "setApprovalForAll", "stateMutability": "nonpayable",
	 "inputs": [{"name": "operator", "type": "address"}, {"name": "approved", "type": "bool"}],
	 "outputs": []},
	{"type": "event", "name": "Transfer", "anonymous": false, "inputs": [
		{"indexed": true, "name": "from",    "type": "address"},
		{"indexed": true, "name": "to",      "type": "address"},
		{"indexed": true, "name": "tokenId", "type": "uint256"}
	]}
]`

const erc1155JSON = `[
	{"type": "function", "name": "balanceOf", "stateMutability": "view",
	 "inputs": [{"name": "account", "type": "address"}, {"name": "id", "type": "uint256"}],
	 "outputs": [{"name": "", "type": "uint256"}]},
	{"type": "function", "name": "isApprovedForAll", "stateMutability": "view",
	 "inputs": [{"name": "account", "type": "address"}, {"name": "operator", "type": "address"}],
	 "outputs": [{"name": "", "type": "bool"}]},
	{"type": "function", "name": "setApprovalForAll", "stateMutability": "nonpayable",
	 "inputs": [{"name": "operator", "type": "address"}, {"name": "approved", "type": "bool"}],
	 "outputs": []},
	{"type": "event", "name": "TransferSingle", "anonymous": false, "inputs": [
		{"indexed": true,  "name": "operator", "type": "address"},
		{"indexed": true,  "name": "from",     "type": "address"},
		{"indexed": true,  "name": "to",       "type": "address"},
		{"indexed": false, "name": "id",       "type": "uint256"},
		{"indexed": false, "name": "value",    "type": "uint256"}
	]}
]`

var (
	tradingV1JSON = `[` + createTradeFragment + `,` + tradeActionsFragment + `,` + nftListViewsFragment + `,` +
		getTradeFragment(false) + `,` + feeFragment("TRADE_FEE") + `,` + expireTradeFragment + `,` + tradeEventsFragment + `]`

	tradingV3JSON = `[` + createTradeFragment + `,` + tradeActionsFragment + `,` + nftListViewsFragment + `,` +
		getTradeFragment(true) + `,` + feeFragment("TRADE_FEE") + `,` + expireTradeFragment + `,` + tradeEventsFragment + `]`

	tradingV4JSON = `[` + createTradeFragment + `,` + tradeActionsFragment + `,` + nftListViewsFragment + `,` +
		getTradeFragment(true) + `,` + feeFragment("tradeFee") + `,` + declineTradeFragment + `,` + tradeEventsFragment + `]`

	vaultJSON = `[
	{"type": "function", "name": "createTrade", "stateMutability": "payable",
	 "inputs": [
		{"name": "counterparty",      "type": "address"},
		{"name": "offeredReceipts",   "type": "uint256[]"},
		{"name": "requestedReceipts", "type": "uint256[]"},
		{"name": "requestedNative",   "type": "uint256"},
		{"name": "message",           "type": "string"}
	 ],
	 "outputs": [{"name": "tradeId", "type": "uint256"}]},
	{"type": "function", "name": "getOfferedReceipts", "stateMutability": "view",
	 "inputs": [{"name": "tradeId", "type": "uint256"}],
	 "outputs": [{"name": "", "type": "uint256[]"}]},
	{"type": "function", "name": "getRequestedReceipts", "stateMutability": "view",
	 "inputs": [{"name": "tradeId", "type": "uint256"}],
	 "outputs": [{"name": "", "type": "uint256[]"}]},
	{"type": "function", "name": "depositNFT", "stateMutability": "nonpayable",
	 "inputs": [
		{"name": "nftContract", "type": "address"},
		{"name": "tokenId",     "type": "uint256"},
		{"name": "amount",      "type": "uint256"},
		{"name": "standard",    "type": "uint8"}
	 ],
	 "outputs": [{"name": "receiptId", "type": "uint256"}]},
	{"type": "function", "name": "withdrawNFT", "stateMutability": "nonpayable",
	 "inputs": [{"name": "receiptId", "type": "uint256"}], "outputs": []},
	{"type": "event", "name": "NFTDeposited", "anonymous": false, "inputs": [
		{"indexed": true,  "name": "receiptId",   "type": "uint256"},
		{"indexed": true,  "name": "owner",       "type": "address"},
		{"indexed": true,  "name": "nftContract", "type": "address"},
		{"indexed": false, "name": "tokenId",     "type": "uint256"},
		{"indexed": false, "name": "amount",      "type": "uint256"},
		{"indexed": false, "name": "standard",    "type": "uint8"}
	]},
	{"type": "event", "name": "NFTWithdrawn", "anonymous": false, "inputs": [
		{"indexed": true, "name": "receiptId", "type": "uint256"},
		{"indexed": true, "name": "owner",     "type": "address"}
	]},
	{"type": "event", "name": "ReceiptTransferred", "anonymous": false, "inputs": [
		{"indexed": true, "name": "receiptId", "type": "uint256"},
		{"indexed": true, "name": "from",      "type": "address"},
		{"indexed": true, "name": "to",        "type": "address"}
	]},` + tradeActionsFragment + `,` + getTradeFragment(true) + `,` + feeFragment("tradeFee") + `,` +
		declineTradeFragment + `,` + tradeEventsFragment + `]`
)

var (
	ERC721ABI    abi.ABI
	ERC1155ABI   abi.ABI
	TradingV1ABI abi.ABI
	TradingV3ABI abi.ABI
	TradingV4ABI abi.ABI
	VaultABI     abi.ABI
)

func init() {
	ERC721ABI = mustParseABI("ERC721", erc721JSON)
	ERC1155ABI = mustParseABI("ERC1155", erc1155JSON)
	TradingV1ABI = mustParseABI("trading V1", tradingV1JSON)
	TradingV3ABI = mustParseABI("trading V3", tradingV3JSON)
	TradingV4ABI = mustParseABI("trading V4", tradingV4JSON)
	VaultABI = mustParseABI("vault", vaultJSON)
}

func mustParseABI(name, raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic("failed to parse " + name + " ABI: " + err.Error())
	}
	return parsed
}

