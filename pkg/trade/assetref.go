package trade

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// ParseAssetRef parses "contract:tokenId[:amount][:standard]". With a single
// part after the token id, a standard spelling ("erc1155", "721") wins over
// an amount; with two parts the first is always the amount. An amount other
// than one without a standard implies ERC1155.
func ParseAssetRef(ref string) (Asset, error) {
	parts := strings.Split(strings.TrimSpace(ref), ":")
	if len(parts) < 2 || len(parts) > 4 {
		return Asset{}, fmt.Errorf("asset %q: expected contract:tokenId[:amount][:standard]", ref)
	}
	if !common.IsHexAddress(parts[0]) {
		return Asset{}, fmt.Errorf("asset %q: invalid contract address", ref)
	}
	tokenID, ok := new(big.Int).SetString(parts[1], 0)
	if !ok {
		return Asset{}, fmt.Errorf("asset %q: invalid token id", ref)
	}

	asset := Asset{
		Contract: common.HexToAddress(parts[0]),
		TokenID:  tokenID,
		Amount:   big.NewInt(1),
		Standard: ERC721,
	}
	var amountPart, standardPart string
	switch len(parts) {
	case 3:
		if _, err := ParseStandard(parts[2]); err == nil {
			standardPart = parts[2]
		} else {
			amountPart = parts[2]
		}
	case 4:
		amountPart, standardPart = parts[2], parts[3]
	}

	amountSet, standardSet := amountPart != "", standardPart != ""
	if amountSet {
		amount, ok := new(big.Int).SetString(amountPart, 10)
		if !ok {
			return Asset{}, fmt.Errorf("asset %q: invalid amount %q", ref, amountPart)
		}
		asset.Amount = amount
	}
	if standardSet {
		std, err := ParseStandard(standardPart)
		if err != nil {
			return Asset{}, fmt.Errorf("asset %q: %w", ref, err)
		}
		asset.Standard = std
	}
	if amountSet && !standardSet && asset.Amount.Cmp(big.NewInt(1)) != 0 {
		asset.Standard = ERC1155
	}
	return asset, ValidateAsset(asset)
}

func ParseAssetRefs(refs []string) ([]Asset, error) {
	assets := make([]Asset, 0, len(refs))
	for _, ref := range refs {
		if strings.TrimSpace(ref) == "" {
			continue
		}
		a, err := ParseAssetRef(ref)
		if err != nil {
			return nil, err
		}
		assets = append(assets, a)
	}
	return assets, nil
}
