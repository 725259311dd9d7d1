package eth

import (
	"errors"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
)

const (
	EventTradeCreated       = "TradeCreated"
	EventTradeAccepted      = "TradeAccepted"
	EventTradeCancelled     = "TradeCancelled"
	EventTradeExpired       = "TradeExpired"
	EventTradeDeclined      = "TradeDeclined"
	EventNFTDeposited       = "NFTDeposited"
	EventNFTWithdrawn       = "NFTWithdrawn"
	EventReceiptTransferred = "ReceiptTransferred"
)

var tradeEventNames = []string{
	EventTradeCreated, EventTradeAccepted, EventTradeCancelled, EventTradeExpired, EventTradeDeclined,
}

var receiptEventNames = []string{
	EventNFTDeposited, EventNFTWithdrawn, EventReceiptTransferred,
}

// TradeEventTopic is the topic0 of a trade lifecycle event. The lifecycle
// events share their signature across every contract version.
func TradeEventTopic(name string) common.Hash {
	return TradingV4ABI.Events[name].ID
}

func ReceiptEventTopic(name string) common.Hash {
	return VaultABI.Events[name].ID
}

// TradeEventTopics lists topic0 values of every lifecycle event, for use as
// the first position of a filter query.
func TradeEventTopics() []common.Hash {
	topics := make([]common.Hash, 0, len(tradeEventNames))
	for _, name := range tradeEventNames {
		topics = append(topics, TradeEventTopic(name))
	}
	return topics
}

func ReceiptEventTopics() []common.Hash {
	topics := make([]common.Hash, 0, len(receiptEventNames))
	for _, name := range receiptEventNames {
		topics = append(topics, ReceiptEventTopic(name))
	}
	return topics
}

// TradeIDTopic encodes a trade or receipt id as an indexed topic value.
func TradeIDTopic(id *big.Int) common.Hash {
	return common.BigToHash(id)
}

type LogPosition struct {
	Contract    common.Address
	BlockNumber uint64
	TxHash      common.Hash
	TxIndex     uint
	LogIndex    uint
}

func positionOf(lg types.Log) LogPosition {
	return LogPosition{
		Contract:    lg.Address,
		BlockNumber: lg.BlockNumber,
		TxHash:      lg.TxHash,
		TxIndex:     lg.TxIndex,
		LogIndex:    lg.Index,
	}
}

type TradeEvent struct {
	LogPosition
	Name         string
	TradeID      *big.Int
	Creator      common.Address
	Counterparty common.Address
}

type ReceiptEvent struct {
	LogPosition
	Name        string
	ReceiptID   *big.Int
	Owner       common.Address
	From        common.Address
	To          common.Address
	NFTContract common.Address
	TokenID     *big.Int
	Amount      *big.Int
	Standard    uint8
}

type TradeLogsDecoder interface {
	DecodeTradeEvents(allLogs []types.Log) []TradeEvent
	DecodeReceiptEvents(allLogs []types.Log) []ReceiptEvent
}

type DefaultTradeLogsDecoder struct{}

func NewDefaultTradeLogsDecoder() *DefaultTradeLogsDecoder {
	return &DefaultTradeLogsDecoder{}
}

// DecodeTradeEvents decodes lifecycle events in chain order. Logs that are
// not lifecycle events are skipped; malformed ones are logged and skipped.
func (d *DefaultTradeLogsDecoder) DecodeTradeEvents(allLogs []types.Log) []TradeEvent {
	var events []TradeEvent
	for _, lg := range allLogs {
		if len(lg.Topics) == 0 {
			continue
		}
		name := tradeEventName(lg.Topics[0])
		if name == "" {
			continue
		}
		ev, err := decodeTradeEvent(name, lg)
		if err != nil {
			zap.L().Error("error decoding trade event",
				zap.String("event", name),
				zap.String("txHash", lg.TxHash.Hex()),
				zap.Error(err),
			)
			continue
		}
		events = append(events, ev)
	}
	sort.SliceStable(events, func(i, j int) bool {
		return lessPosition(events[i].LogPosition, events[j].LogPosition)
	})
	return events
}

func (d *DefaultTradeLogsDecoder) DecodeReceiptEvents(allLogs []types.Log) []ReceiptEvent {
	var events []ReceiptEvent
	for _, lg := range allLogs {
		if len(lg.Topics) == 0 {
			continue
		}
		name := receiptEventName(lg.Topics[0])
		if name == "" {
			continue
		}
		ev, err := decodeReceiptEvent(name, lg)
		if err != nil {
			zap.L().Error("error decoding receipt event",
				zap.String("event", name),
				zap.String("txHash", lg.TxHash.Hex()),
				zap.Error(err),
			)
			continue
		}
		events = append(events, ev)
	}
	sort.SliceStable(events, func(i, j int) bool {
		return lessPosition(events[i].LogPosition, events[j].LogPosition)
	})
	return events
}

func tradeEventName(topic common.Hash) string {
	for _, name := range tradeEventNames {
		if TradeEventTopic(name) == topic {
			return name
		}
	}
	return ""
}

func receiptEventName(topic common.Hash) string {
	for _, name := range receiptEventNames {
		if ReceiptEventTopic(name) == topic {
			return name
		}
	}
	return ""
}

func decodeTradeEvent(name string, lg types.Log) (TradeEvent, error) {
	ev := TradeEvent{LogPosition: positionOf(lg), Name: name}
	switch name {
	case EventTradeCreated:
		if len(lg.Topics) < 4 {
			return ev, errors.New("invalid TradeCreated topics length")
		}
		ev.Creator = common.BytesToAddress(lg.Topics[2].Bytes())
		ev.Counterparty = common.BytesToAddress(lg.Topics[3].Bytes())
	case EventTradeAccepted:
		if len(lg.Topics) < 3 {
			return ev, errors.New("invalid TradeAccepted topics length")
		}
		ev.Counterparty = common.BytesToAddress(lg.Topics[2].Bytes())
	default:
		if len(lg.Topics) < 2 {
			return ev, errors.New("invalid " + name + " topics length")
		}
	}
	ev.TradeID = new(big.Int).SetBytes(lg.Topics[1].Bytes())
	return ev, nil
}

func decodeReceiptEvent(name string, lg types.Log) (ReceiptEvent, error) {
	ev := ReceiptEvent{LogPosition: positionOf(lg), Name: name}
	switch name {
	case EventNFTDeposited:
		if len(lg.Topics) < 4 {
			return ev, errors.New("invalid NFTDeposited topics length")
		}
		ev.Owner = common.BytesToAddress(lg.Topics[2].Bytes())
		ev.NFTContract = common.BytesToAddress(lg.Topics[3].Bytes())
		var data struct {
			TokenId  *big.Int
			Amount   *big.Int
			Standard uint8
		}
		if err := VaultABI.UnpackIntoInterface(&data, EventNFTDeposited, lg.Data); err != nil {
			return ev, err
		}
		ev.TokenID = data.TokenId
		ev.Amount = data.Amount
		ev.Standard = data.Standard
	case EventNFTWithdrawn:
		if len(lg.Topics) < 3 {
			return ev, errors.New("invalid NFTWithdrawn topics length")
		}
		ev.Owner = common.BytesToAddress(lg.Topics[2].Bytes())
	case EventReceiptTransferred:
		if len(lg.Topics) < 4 {
			return ev, errors.New("invalid ReceiptTransferred topics length")
		}
		ev.From = common.BytesToAddress(lg.Topics[2].Bytes())
		ev.To = common.BytesToAddress(lg.Topics[3].Bytes())
		ev.Owner = ev.To
	}
	ev.ReceiptID = new(big.Int).SetBytes(lg.Topics[1].Bytes())
	return ev, nil
}

func lessPosition(a, b LogPosition) bool {
	if a.BlockNumber != b.BlockNumber {
		return a.BlockNumber < b.BlockNumber
	}
	if a.TxIndex != b.TxIndex {
		return a.TxIndex < b.TxIndex
	}
	return a.LogIndex < b.LogIndex
}
