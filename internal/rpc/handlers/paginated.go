package handlers

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/nftescrow/tradenode/internal/mirror"
)

// PaginatedResponse holds the common pagination fields.
type PaginatedResponse struct {
	Page     int     `json:"page"`
	PageSize int     `json:"page_size"`
	Total    int     `json:"total"`
	Prev     *string `json:"prev"`
	Next     *string `json:"next"`
}

// ReturnPaginatedData sets the total and builds absolute prev and next links
// that keep the request's other query parameters.
func (p *PaginatedResponse) ReturnPaginatedData(r *http.Request, total int) {
	p.Total = total
	p.Prev = nil
	p.Next = nil

	if p.Page > 1 {
		prev := pageURL(r, p.Page-1, p.PageSize)
		p.Prev = &prev
	}
	if p.Page*p.PageSize < total {
		next := pageURL(r, p.Page+1, p.PageSize)
		p.Next = &next
	}
}

func pageURL(r *http.Request, page, pageSize int) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	query := url.Values{}
	for k, v := range r.URL.Query() {
		query[k] = v
	}
	query.Set("page", strconv.Itoa(page))
	query.Set("page_size", strconv.Itoa(pageSize))
	u := url.URL{Scheme: scheme, Host: r.Host, Path: r.URL.Path, RawQuery: query.Encode()}
	return u.String()
}

// ExtractPagination reads page and page_size from the query string, falling
// back to page 1 and the default size. Sizes above the maximum are capped.
func ExtractPagination(r *http.Request) (int, int) {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		page = 1
	}
	pageSize, err := strconv.Atoi(r.URL.Query().Get("page_size"))
	if err != nil || pageSize < 1 {
		pageSize = mirror.DefaultPageSize
	}
	if pageSize > mirror.MaxPageSize {
		pageSize = mirror.MaxPageSize
	}
	return page, pageSize
}
