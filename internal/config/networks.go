package config

import (
	"fmt"
	"sort"
	"strings"
)

type Network struct {
	Name        string
	ChainID     int64
	RPCUrl      string
	ExplorerUrl string
	// AlchemyNetwork is the network segment of Alchemy API hosts.
	AlchemyNetwork string
}

var networks = map[string]Network{
	"monad-testnet": {
		Name:           "monad-testnet",
		ChainID:        10143,
		RPCUrl:         "https://testnet-rpc.monad.xyz",
		ExplorerUrl:    "https://testnet.monadexplorer.com",
		AlchemyNetwork: "monad-testnet",
	},
	"sepolia": {
		Name:           "sepolia",
		ChainID:        11155111,
		RPCUrl:         "https://rpc.sepolia.org",
		ExplorerUrl:    "https://sepolia.etherscan.io",
		AlchemyNetwork: "eth-sepolia",
	},
}

func LookupNetwork(name string) (Network, error) {
	n, ok := networks[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Network{}, fmt.Errorf("unknown network %q (known: %s)", name, strings.Join(NetworkNames(), ", "))
	}
	return n, nil
}

func NetworkNames() []string {
	names := make([]string, 0, len(networks))
	for name := range networks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ResolveNetwork applies explicit node url / chain id overrides on top of the
// configured network preset.
func (c Config) ResolveNetwork() (Network, error) {
	n, err := LookupNetwork(c.Network)
	if err != nil {
		if c.EthereumNodeUrl == "" || c.ChainID == 0 {
			return Network{}, err
		}
		n = Network{Name: c.Network}
	}
	if c.EthereumNodeUrl != "" {
		n.RPCUrl = c.EthereumNodeUrl
	}
	if c.ChainID != 0 {
		n.ChainID = c.ChainID
	}
	return n, nil
}

// AlchemyBaseUrl returns the configured Alchemy url or the network default.
func (c Config) AlchemyBaseUrl(n Network) string {
	if c.AlchemyApiUrl != "" {
		return c.AlchemyApiUrl
	}
	if n.AlchemyNetwork == "" {
		return ""
	}
	return fmt.Sprintf("https://%s.g.alchemy.com", n.AlchemyNetwork)
}
