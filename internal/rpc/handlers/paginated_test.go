package handlers

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/nftescrow/tradenode/internal/mirror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReturnPaginatedData(t *testing.T) {
	t.Run("first page has next only", func(t *testing.T) {
		resp := PaginatedResponse{Page: 1, PageSize: 10}
		req := httptest.NewRequest(http.MethodGet, "http://example.com/api/v1/trades?status=pending", nil)
		resp.ReturnPaginatedData(req, 100)

		assert.Nil(t, resp.Prev)
		require.NotNil(t, resp.Next)
		assert.Equal(t, 100, resp.Total)

		next, err := url.Parse(*resp.Next)
		require.NoError(t, err)
		assert.Equal(t, "/api/v1/trades", next.Path)
		assert.Equal(t, "2", next.Query().Get("page"))
		assert.Equal(t, "10", next.Query().Get("page_size"))
		assert.Equal(t, "pending", next.Query().Get("status"), "filters are kept")
	})

	t.Run("last page has prev only", func(t *testing.T) {
		resp := PaginatedResponse{Page: 2, PageSize: 10}
		req := httptest.NewRequest(http.MethodGet, "https://example.com/api/v1/trades", nil)
		resp.ReturnPaginatedData(req, 20)

		require.NotNil(t, resp.Prev)
		assert.Nil(t, resp.Next)
		assert.Contains(t, *resp.Prev, "https://example.com/api/v1/trades?")
		assert.Contains(t, *resp.Prev, "page=1")
	})

	t.Run("empty result", func(t *testing.T) {
		resp := PaginatedResponse{Page: 1, PageSize: 10}
		req := httptest.NewRequest(http.MethodGet, "http://example.com/api/v1/trades", nil)
		resp.ReturnPaginatedData(req, 0)
		assert.Nil(t, resp.Prev)
		assert.Nil(t, resp.Next)
	})
}

func TestExtractPagination(t *testing.T) {
	testCases := []struct {
		name         string
		query        string
		wantPage     int
		wantPageSize int
	}{
		{"valid", "?page=3&page_size=15", 3, 15},
		{"missing", "", 1, mirror.DefaultPageSize},
		{"invalid", "?page=abc&page_size=-4", 1, mirror.DefaultPageSize},
		{"capped", "?page_size=5000", 1, mirror.MaxPageSize},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "http://example.com/"+tc.query, nil)
			page, pageSize := ExtractPagination(req)
			assert.Equal(t, tc.wantPage, page)
			assert.Equal(t, tc.wantPageSize, pageSize)
		})
	}
}
