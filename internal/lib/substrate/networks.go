package substrate

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/invarch/daostake/internal/lib/misc"
)

// PalletIndexes are the runtime indexes of the pallets whose calls we construct. They must match the
// runtime metadata of the connected chain and can be overridden per pallet through the environment.
type PalletIndexes struct {
	OcifStaking uint8
	Utility     uint8
	Vesting     uint8
}

type NetworkConfig struct {
	Name string

	NodeURL     string
	NodeHeaders map[string]string

	IndexerURL   string
	IndexerToken string

	SS58Prefix    uint16
	TokenSymbol   string
	TokenDecimals int32
	BlockTime     time.Duration
	BlocksPerEra  uint64

	// CheckMetadataHash is set for runtimes that include the CheckMetadataHash signed extension.
	CheckMetadataHash bool

	Pallets PalletIndexes
}

func (n NetworkConfig) String() string {
	return fmt.Sprintf("Name: %s, NodeURL: %s, NodeHeaders: %v, IndexerURL: %s, IndexerToken: (length:%d), SS58Prefix: %d, Token: %s/%d, Pallets: %+v",
		n.Name, n.NodeURL, n.NodeHeaders, n.IndexerURL, len(n.IndexerToken), n.SS58Prefix, n.TokenSymbol, n.TokenDecimals, n.Pallets)
}

// KnownNetworks is the list of networks GetNetworkConfig has presets for.
var KnownNetworks = []string{"invarch", "tinkernet", "local"}

func GetNetworkConfig(network string) NetworkConfig {
	cfg := getDefaults(network)

	if nodeURL := misc.GetSecret("DAOSTAKE_NODE_URL"); nodeURL != "" {
		cfg.NodeURL = nodeURL
	}
	if indexerURL := os.Getenv("DAOSTAKE_INDEXER_URL"); indexerURL != "" {
		cfg.IndexerURL = indexerURL
	}
	if token := misc.GetSecret("DAOSTAKE_INDEXER_TOKEN"); token != "" {
		cfg.IndexerToken = token
	}
	if prefix := os.Getenv("DAOSTAKE_SS58_PREFIX"); prefix != "" {
		if val, err := strconv.ParseUint(prefix, 10, 16); err == nil {
			cfg.SS58Prefix = uint16(val)
		}
	}
	if os.Getenv("DAOSTAKE_CHECK_METADATA_HASH") == "1" {
		cfg.CheckMetadataHash = true
	}
	setPalletIndexFromEnv(&cfg.Pallets.OcifStaking, "DAOSTAKE_PALLET_OCIF_STAKING")
	setPalletIndexFromEnv(&cfg.Pallets.Utility, "DAOSTAKE_PALLET_UTILITY")
	setPalletIndexFromEnv(&cfg.Pallets.Vesting, "DAOSTAKE_PALLET_VESTING")

	// parse headers from key:value,[key:value...] pairs
	cfg.NodeHeaders = map[string]string{}
	for _, header := range strings.Split(misc.GetSecret("DAOSTAKE_NODE_HEADERS"), ",") {
		parts := strings.SplitN(header, ":", 2) // Just split on first : - they can have :'s in value.
		if len(parts) == 2 {
			cfg.NodeHeaders[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
		}
	}
	return cfg
}

func setPalletIndexFromEnv(val *uint8, envName string) {
	if strVal := os.Getenv(envName); strVal != "" {
		if idx, err := strconv.ParseUint(strVal, 10, 8); err == nil {
			*val = uint8(idx)
		}
	}
}

func getDefaults(network string) NetworkConfig {
	cfg := NetworkConfig{
		Name:          network,
		TokenDecimals: 12,
		BlockTime:     12 * time.Second,
		BlocksPerEra:  7200,
		Pallets: PalletIndexes{
			OcifStaking: 71,
			Utility:     40,
			Vesting:     33,
		},
	}
	switch network {
	case "invarch":
		cfg.NodeURL = "wss://invarch-rpc.dwellir.com"
		cfg.SS58Prefix = 117
		cfg.TokenSymbol = "VARCH"
	case "tinkernet":
		cfg.NodeURL = "wss://tinkernet-rpc.dwellir.com"
		cfg.SS58Prefix = 117
		cfg.TokenSymbol = "TNKR"
	case "local":
		cfg.NodeURL = "ws://127.0.0.1:9944"
		cfg.IndexerURL = "http://127.0.0.1:4350/graphql"
		cfg.SS58Prefix = 42
		cfg.TokenSymbol = "UNIT"
		cfg.BlocksPerEra = 10
	}
	return cfg
}
