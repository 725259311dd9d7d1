package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "tradenode"

var (
	RPCCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "eth_rpc_calls_total",
		Help:      "JSON-RPC calls issued to the Ethereum node, by method.",
	}, []string{"method"})

	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_lookups_total",
		Help:      "Read cache lookups, by cache and result.",
	}, []string{"cache", "result"})

	Transactions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "transactions_total",
		Help:      "Contract transactions submitted, by method and outcome.",
	}, []string{"method", "outcome"})

	MetadataRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "nft_metadata_requests_total",
		Help:      "NFT metadata provider requests, by provider and outcome.",
	}, []string{"provider", "outcome"})

	MirrorBackfilled = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "mirror_backfilled_total",
		Help:      "Mirror records whose settlement transaction hash was backfilled.",
	})
)
