package handlers

import (
	"net/http"
)

type StatusResponse struct {
	Status          string `json:"status"`
	Network         string `json:"network,omitempty"`
	ChainID         int64  `json:"chainId,omitempty"`
	TradingContract string `json:"tradingContract,omitempty"`
	ContractVersion string `json:"contractVersion,omitempty"`
}

func StatusGetHandler(r *http.Request, info StatusResponse) (StatusResponse, error) {
	info.Status = "OK"
	return info, nil
}
