package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Network describes one configured chain endpoint.
type Network struct {
	RPCURL   string `mapstructure:"rpc_url"`
	PriceURL string `mapstructure:"coingecko_url"`
}

// Config holds configuration values loaded from flags, env, or config file.
// The private key is carried only long enough to hand to the signer.
type Config struct {
	Network       string
	Networks      map[string]Network
	RPCOverride   string
	PrivateKey    string
	GasMultiplier float64
	Slippage      float64
	Deadline      time.Duration
	ScanBatch     uint64
	LogLevel      string
}

// Load merges config file, environment variables, and flags into Config.
// Precedence: flags over env (KEEPER_ prefix) over file.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("KEEPER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("network", "polygon")
	v.SetDefault("gas-multiplier", 1.0)
	v.SetDefault("slippage", 0.7)
	v.SetDefault("deadline", time.Hour)
	v.SetDefault("scan-batch", uint64(0))
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var networks map[string]Network
	if err := v.UnmarshalKey("networks", &networks); err != nil {
		return Config{}, fmt.Errorf("parse networks table: %w", err)
	}

	cfg := Config{
		Network:       v.GetString("network"),
		Networks:      networks,
		RPCOverride:   v.GetString("rpc"),
		PrivateKey:    v.GetString("private-key"),
		GasMultiplier: v.GetFloat64("gas-multiplier"),
		Slippage:      v.GetFloat64("slippage"),
		Deadline:      v.GetDuration("deadline"),
		ScanBatch:     v.GetUint64("scan-batch"),
		LogLevel:      v.GetString("log-level"),
	}

	return cfg, nil
}

// RPCURL resolves the chain endpoint: an explicit --rpc wins, otherwise the
// selected network's entry from the table.
func (c Config) RPCURL() (string, error) {
	if c.RPCOverride != "" {
		return c.RPCOverride, nil
	}
	network, ok := c.Networks[c.Network]
	if !ok || network.RPCURL == "" {
		return "", fmt.Errorf("no rpc url for network %q", c.Network)
	}
	return network.RPCURL, nil
}

// PriceEndpoints returns the network → CoinGecko endpoint table.
func (c Config) PriceEndpoints() map[string]string {
	out := make(map[string]string, len(c.Networks))
	for name, network := range c.Networks {
		if network.PriceURL != "" {
			out[name] = network.PriceURL
		}
	}
	return out
}
