package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/nftescrow/tradenode/internal/nftmeta"
)

func WalletNFTsGetHandler(r *http.Request, provider nftmeta.Provider) (*nftmeta.Page, error) {
	owner, err := parseAddress("owner", chi.URLParam(r, "owner"))
	if err != nil {
		return nil, badRequest(err)
	}
	q := r.URL.Query()
	opts := nftmeta.ListOptions{PageKey: q.Get("page_key")}
	for _, c := range q["contract"] {
		contract, err := parseAddress("contract", c)
		if err != nil {
			return nil, badRequest(err)
		}
		opts.Contracts = append(opts.Contracts, contract)
	}
	if s := q.Get("page_size"); s != "" {
		if opts.PageSize, err = strconv.Atoi(s); err != nil {
			return nil, badRequest(err)
		}
	}
	return provider.ListOwnerNFTs(r.Context(), owner, opts)
}
