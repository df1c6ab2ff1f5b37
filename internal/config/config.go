package config

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Redis    RedisConfig
	Chain    ChainConfig
	Drop     DropConfig
	Metadata MetadataConfig
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
}

type ChainConfig struct {
	ChainID         int64  `mapstructure:"chain_id"`
	ContractAddress string `mapstructure:"contract_address"`
	// RPCURL and RegistryAddress are only needed in registry_mode=chain.
	RPCURL          string `mapstructure:"rpc_url"`
	RegistryAddress string `mapstructure:"registry_address"`
	// OperatorKey signs registry transactions in chain mode.
	OperatorKey string `mapstructure:"operator_key"`
}

type DropConfig struct {
	PricePolicy    string `mapstructure:"price_policy"` // "exact" | "floor"
	FixedUnitPrice string `mapstructure:"fixed_unit_price"`
	MaxSupply      uint64 `mapstructure:"max_supply"`
	BatchLimit     uint64 `mapstructure:"batch_limit"`
	ReservedCap    uint64 `mapstructure:"reserved_cap"`
	EnabledAtStart bool   `mapstructure:"enabled_at_start"`
	AdminAddress   string `mapstructure:"admin_address"`
	RegistryMode   string `mapstructure:"registry_mode"` // "memory" | "chain"
	LedgerMode     string `mapstructure:"ledger_mode"`   // "memory" | "redis"
}

type MetadataConfig struct {
	BaseURI         string `mapstructure:"base_uri"`
	ReservedBaseURI string `mapstructure:"reserved_base_uri"`
}

func Load() (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("redis.addr", "redis:6379")
	v.SetDefault("drop.price_policy", "exact")
	v.SetDefault("drop.fixed_unit_price", "1000000")
	v.SetDefault("drop.max_supply", 10000)
	v.SetDefault("drop.batch_limit", 10)
	v.SetDefault("drop.reserved_cap", 250)
	v.SetDefault("drop.enabled_at_start", false)
	v.SetDefault("drop.registry_mode", "memory")
	v.SetDefault("drop.ledger_mode", "memory")

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")
	_ = v.ReadInConfig()

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Explicit env bindings
	bindings := map[string]string{
		"server.port":                "PORT",
		"redis.addr":                 "REDIS_ADDR",
		"redis.password":             "REDIS_PASSWORD",
		"chain.chain_id":             "CHAIN_ID",
		"chain.contract_address":     "VERIFYING_CONTRACT",
		"chain.rpc_url":              "RPC_URL",
		"chain.registry_address":     "REGISTRY_CONTRACT",
		"chain.operator_key":         "OPERATOR_KEY",
		"drop.price_policy":          "PRICE_POLICY",
		"drop.fixed_unit_price":      "FIXED_UNIT_PRICE",
		"drop.max_supply":            "MAX_SUPPLY",
		"drop.batch_limit":           "BATCH_LIMIT",
		"drop.reserved_cap":          "RESERVED_CAP",
		"drop.enabled_at_start":      "ENABLED_AT_START",
		"drop.admin_address":         "ADMIN_ADDRESS",
		"drop.registry_mode":         "REGISTRY_MODE",
		"drop.ledger_mode":           "LEDGER_MODE",
		"metadata.base_uri":          "METADATA_BASE_URI",
		"metadata.reserved_base_uri": "METADATA_RESERVED_BASE_URI",
	}
	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", env, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return cfg, cfg.validate()
}

func (c *Config) validate() error {
	type req struct {
		val  string
		name string
	}
	for _, r := range []req{
		{c.Chain.ContractAddress, "VERIFYING_CONTRACT"},
		{c.Drop.AdminAddress, "ADMIN_ADDRESS"},
		{c.Metadata.BaseURI, "METADATA_BASE_URI"},
	} {
		if r.val == "" {
			return fmt.Errorf("required config missing: %s", r.name)
		}
	}
	// HexToAddress maps malformed input to the zero address, so addresses are
	// validated here before anything derives one.
	for _, r := range []req{
		{c.Chain.ContractAddress, "VERIFYING_CONTRACT"},
		{c.Drop.AdminAddress, "ADMIN_ADDRESS"},
	} {
		if !common.IsHexAddress(r.val) {
			return fmt.Errorf("%s is not a valid address: %q", r.name, r.val)
		}
	}
	if c.Chain.ChainID == 0 {
		return fmt.Errorf("required config missing: CHAIN_ID")
	}
	switch c.Drop.PricePolicy {
	case "exact", "floor":
	default:
		return fmt.Errorf("PRICE_POLICY must be \"exact\" or \"floor\", got %q", c.Drop.PricePolicy)
	}
	switch c.Drop.RegistryMode {
	case "memory":
	case "chain":
		for _, r := range []req{
			{c.Chain.RPCURL, "RPC_URL"},
			{c.Chain.RegistryAddress, "REGISTRY_CONTRACT"},
			{c.Chain.OperatorKey, "OPERATOR_KEY"},
		} {
			if r.val == "" {
				return fmt.Errorf("required config missing in chain mode: %s", r.name)
			}
		}
		if !common.IsHexAddress(c.Chain.RegistryAddress) {
			return fmt.Errorf("REGISTRY_CONTRACT is not a valid address: %q", c.Chain.RegistryAddress)
		}
	default:
		return fmt.Errorf("REGISTRY_MODE must be \"memory\" or \"chain\", got %q", c.Drop.RegistryMode)
	}
	switch c.Drop.LedgerMode {
	case "memory", "redis":
	default:
		return fmt.Errorf("LEDGER_MODE must be \"memory\" or \"redis\", got %q", c.Drop.LedgerMode)
	}
	if c.Drop.BatchLimit == 0 {
		return fmt.Errorf("BATCH_LIMIT must be at least 1")
	}
	return nil
}
