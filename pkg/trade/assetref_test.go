package trade

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAssetRef(t *testing.T) {
	testCases := []struct {
		name     string
		ref      string
		standard Standard
		amount   int64
		tokenID  int64
		wantErr  bool
	}{
		{"erc721 default", "0x000000000000000000000000000000000000aaaa:42", ERC721, 1, 42, false},
		{"explicit erc1155", "0x000000000000000000000000000000000000aaaa:7:5:erc1155", ERC1155, 5, 7, false},
		{"amount implies erc1155", "0x000000000000000000000000000000000000aaaa:7:3", ERC1155, 3, 7, false},
		{"receipt", "0x000000000000000000000000000000000000aaaa:9:receipt", Receipt, 1, 9, false},
		{"hex token id", "0x000000000000000000000000000000000000aaaa:0x10", ERC721, 1, 16, false},
		{"bad address", "0xnothex:1", ERC721, 0, 0, true},
		{"missing token", "0x000000000000000000000000000000000000aaaa", ERC721, 0, 0, true},
		{"bad standard", "0x000000000000000000000000000000000000aaaa:1:erc20", ERC721, 0, 0, true},
		{"numeric standard 721", "0x000000000000000000000000000000000000aaaa:1:721", ERC721, 1, 1, false},
		{"numeric standard 1155", "0x000000000000000000000000000000000000aaaa:4:1155", ERC1155, 1, 4, false},
		{"amount 721 with standard", "0x000000000000000000000000000000000000aaaa:4:721:erc1155", ERC1155, 721, 4, false},
		{"non numeric amount", "0x000000000000000000000000000000000000aaaa:4:x:erc1155", ERC721, 0, 0, true},
		{"erc721 with amount two", "0x000000000000000000000000000000000000aaaa:1:2:erc721", ERC721, 0, 0, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			a, err := ParseAssetRef(tc.ref)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.standard, a.Standard)
			assert.Equal(t, big.NewInt(tc.amount), a.Amount)
			assert.Equal(t, big.NewInt(tc.tokenID), a.TokenID)
			assert.Equal(t, collectionA, a.Contract)
		})
	}
}

func TestParseAssetRefs_SkipsBlanks(t *testing.T) {
	assets, err := ParseAssetRefs([]string{"", "0x000000000000000000000000000000000000aaaa:1", "  "})
	require.NoError(t, err)
	assert.Len(t, assets, 1)
}
