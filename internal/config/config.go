package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"reflect"
	"sync"

	"github.com/spf13/viper"
)

type Config struct {
	LogZapMode               string `mapstructure:"LOG_ZAP_MODE"`
	PrintConfigurationToLogs string `mapstructure:"PRINT_CONFIGURATION_TO_LOGS"`

	Network                string `mapstructure:"NETWORK"`
	EthereumNodeUrl        string `mapstructure:"ETHEREUM_NODE_URL"`
	ChainID                int64  `mapstructure:"CHAIN_ID"`
	TradingContractAddress string `mapstructure:"TRADING_CONTRACT_ADDRESS"`
	TradingContractVersion string `mapstructure:"TRADING_CONTRACT_VERSION"`
	VaultContractAddress   string `mapstructure:"VAULT_CONTRACT_ADDRESS"`
	PrivateKey             string `mapstructure:"PRIVATE_KEY" json:"-"`

	RPCPort              int `mapstructure:"RPC_PORT"`
	RPCRequestsPerSecond int `mapstructure:"RPC_REQUESTS_PER_SECOND"`
	ReadCacheTTLSeconds  int `mapstructure:"READ_CACHE_TTL_SECONDS"`

	SqlitePath string `mapstructure:"SQLITE_PATH"`
	BadgerPath string `mapstructure:"BADGER_PATH"`

	LogScanMaxChunkSize     uint64 `mapstructure:"LOG_SCAN_MAX_CHUNK_SIZE"`
	LogScanStartBlock       uint64 `mapstructure:"LOG_SCAN_START_BLOCK"`
	BackfillIntervalSeconds int    `mapstructure:"BACKFILL_INTERVAL_SECONDS"`

	NftMetadataProvider string `mapstructure:"NFT_METADATA_PROVIDER"`
	AlchemyApiUrl       string `mapstructure:"ALCHEMY_API_URL"`
	AlchemyApiKey       string `mapstructure:"ALCHEMY_API_KEY" json:"-"`
	MagicEdenApiUrl     string `mapstructure:"MAGIC_EDEN_API_URL"`
	MagicEdenApiKey     string `mapstructure:"MAGIC_EDEN_API_KEY" json:"-"`
	MagicEdenChain      string `mapstructure:"MAGIC_EDEN_CHAIN"`

	ShareBaseUrl       string `mapstructure:"SHARE_BASE_URL"`
	CorsAllowedOrigins string `mapstructure:"CORS_ALLOWED_ORIGINS"`
}

var lock = &sync.Mutex{}
var config *Config

var Get = get

func get() Config {
	lock.Lock()
	defer lock.Unlock()
	if config == nil {
		c := loadConfig()
		config = &c
	}
	return *config
}

func loadConfig() Config {
	viperAddConfigFile()
	viperAddEnv()
	viperSetDefaults()
	cfg := initializeCfg()
	debugConfig(cfg)
	return cfg
}

func viperAddConfigFile() {
	viper.AddConfigPath(".")
	viper.SetConfigName("config")
	viper.SetConfigType("env")
}

func viperAddEnv() {
	viper.AutomaticEnv()
	// This makes sure that all envs are binded even if they are not represented in config file (https://github.com/spf13/viper/issues/584)
	valueOfConfig := reflect.ValueOf(&Config{}).Elem()
	fieldsOfConfig := reflect.TypeOf(&Config{}).Elem()
	for i := 0; i < valueOfConfig.NumField(); i++ {
		field, _ := fieldsOfConfig.FieldByName(valueOfConfig.Type().Field(i).Name)
		mapStructureVal := field.Tag.Get("mapstructure")
		err := viper.BindEnv(mapStructureVal)
		if err != nil {
			panic(fmt.Sprintf("Error binding env val '%v': %v", mapStructureVal, err))
		}
	}
}

func viperSetDefaults() {
	viper.SetDefault("NETWORK", "monad-testnet")
	viper.SetDefault("TRADING_CONTRACT_VERSION", "v7")
	viper.SetDefault("RPC_PORT", 8080)
	viper.SetDefault("RPC_REQUESTS_PER_SECOND", 10)
	viper.SetDefault("READ_CACHE_TTL_SECONDS", 60)
	viper.SetDefault("SQLITE_PATH", "./db/sqlite/sqlite")
	viper.SetDefault("BADGER_PATH", "./db/badger")
	viper.SetDefault("LOG_SCAN_MAX_CHUNK_SIZE", 2000)
	viper.SetDefault("BACKFILL_INTERVAL_SECONDS", 300)
	viper.SetDefault("NFT_METADATA_PROVIDER", "alchemy")
	viper.SetDefault("MAGIC_EDEN_API_URL", "https://api-mainnet.magiceden.dev")
	viper.SetDefault("MAGIC_EDEN_CHAIN", "monad-testnet")
	viper.SetDefault("CORS_ALLOWED_ORIGINS", "*")
}

func initializeCfg() Config {
	var cfg Config
	// config.env is optional; the environment alone is enough.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			panic(fmt.Sprintf("fatal error reading config file: %v", err))
		}
	}

	if err := viper.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("error unmarshaling config: %v", err))
	}
	return cfg
}

func debugConfig(cfg Config) {
	if cfg.PrintConfigurationToLogs == "true" {
		b, err := json.Marshal(cfg)
		var result string
		if err != nil {
			result = "[FAILED TO CONVERT CONF TO STRING]"
		} else {
			result = string(b)
		}
		log.Printf("[APP CONFIGURATION]: %v\n", result)
	}
}
