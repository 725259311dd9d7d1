package escrow

import (
	"fmt"
	"strings"
)

// Version names a deployed revision of the trading contract.
type Version string

const (
	V1           Version = "v1"
	V2           Version = "v2"
	V3           Version = "v3"
	V4           Version = "v4"
	V5           Version = "v5"
	V6           Version = "v6"
	V7           Version = "v7"
	VersionVault Version = "vault"
)

var Versions = []Version{V1, V2, V3, V4, V5, V6, V7, VersionVault}

func ParseVersion(s string) (Version, error) {
	v := Version(strings.ToLower(strings.TrimSpace(s)))
	if !strings.HasPrefix(string(v), "v") && v != "" {
		v = "v" + v
	}
	for _, known := range Versions {
		if v == known {
			return v, nil
		}
	}
	return "", fmt.Errorf("unknown trading contract version %q", s)
}

// Schema captures what one contract version exposes. Callers branch on these
// flags instead of probing the contract.
type Schema struct {
	Version Version
	// HasExpiryField is false when getTrade carries no expiry; expiry is then
	// createdAt plus the default offset.
	HasExpiryField bool
	// HasExpireCall versions need an explicit expireTrade transaction.
	HasExpireCall bool
	// InlineExpiry versions settle expiry inside any state-changing call.
	InlineExpiry    bool
	SupportsDecline bool
	// FeeMethod is the view returning the fixed trade fee.
	FeeMethod    string
	UsesReceipts bool
}

func (v Version) Schema() Schema {
	switch v {
	case V1, V2:
		return Schema{Version: v, HasExpireCall: true, FeeMethod: "TRADE_FEE"}
	case V3:
		return Schema{Version: v, HasExpiryField: true, HasExpireCall: true, FeeMethod: "TRADE_FEE"}
	case VersionVault:
		return Schema{Version: v, HasExpiryField: true, InlineExpiry: true, SupportsDecline: true, FeeMethod: "tradeFee", UsesReceipts: true}
	default:
		return Schema{Version: v, HasExpiryField: true, InlineExpiry: true, SupportsDecline: true, FeeMethod: "tradeFee"}
	}
}
