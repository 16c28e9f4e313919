// Package config provides a reusable loader for the execution engine's
// configuration files and environment variables. It is versioned so that
// applications can depend on a stable API contract.
//
// Version: v0.2.0
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"synnergy-network/pkg/utils"
)

// Version is the semantic version of this configuration package.
const Version = "v0.2.0"

// Config represents the unified configuration for an engine process. It
// mirrors the structure of the YAML files under cmd/config.
type Config struct {
	Engine struct {
		ProtocolVersion   uint32 `mapstructure:"protocol_version" json:"protocol_version"`
		PaymentGasLimit   uint64 `mapstructure:"payment_gas_limit" json:"payment_gas_limit"`
		DefaultGasPrice   uint64 `mapstructure:"default_gas_price" json:"default_gas_price"`
		WasmCostTablePath string `mapstructure:"wasm_cost_table_path" json:"wasm_cost_table_path"`
		ListenAddr        string `mapstructure:"listen_addr" json:"listen_addr"`
		UseSystemContracts bool  `mapstructure:"use_system_contracts" json:"use_system_contracts"`
	} `mapstructure:"engine" json:"engine"`

	Wasm struct {
		MemoryPageLimit   uint32 `mapstructure:"memory_page_limit" json:"memory_page_limit"`
		StackHeightLimit  uint32 `mapstructure:"stack_height_limit" json:"stack_height_limit"`
	} `mapstructure:"wasm" json:"wasm"`

	Storage struct {
		DBPath string `mapstructure:"db_path" json:"db_path"`
		Prune  bool   `mapstructure:"prune" json:"prune"`
	} `mapstructure:"storage" json:"storage"`

	Logging struct {
		Level string `mapstructure:"level" json:"level"`
		File  string `mapstructure:"file" json:"file"`
	} `mapstructure:"logging" json:"logging"`
}

// AppConfig holds the configuration loaded via Load or LoadFromEnv.
var AppConfig Config

// Load reads configuration files and merges any environment specific
// overrides. The resulting configuration is stored in AppConfig and returned.
//
// The function uses the provided environment name to merge additional config
// files. If env is empty, only the default configuration is loaded.
func Load(env string) (*Config, error) {
	viper.SetConfigName("default")
	viper.AddConfigPath("cmd/config")
	viper.AddConfigPath("config")
	viper.SetConfigType("yaml")
	if err := viper.ReadInConfig(); err != nil {
		return nil, utils.Wrap(err, "load config")
	}

	if env != "" {
		viper.SetConfigName(env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, utils.Wrap(err, fmt.Sprintf("merge %s config", env))
		}
	}

	viper.SetEnvPrefix("SYNN")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv() // picks up SYNN_* overrides

	if err := viper.Unmarshal(&AppConfig); err != nil {
		return nil, utils.Wrap(err, "unmarshal config")
	}
	return &AppConfig, nil
}

// LoadFromEnv loads configuration using the SYNN_ENV environment variable.
func LoadFromEnv() (*Config, error) {
	return Load(utils.EnvOrDefault("SYNN_ENV", ""))
}
