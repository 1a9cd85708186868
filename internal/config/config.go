package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"liquiditySim/internal/model"
	"liquiditySim/internal/source"
)

// EnvPrefix prefixes every environment variable, e.g. LPSIM_PG_DSN.
const EnvPrefix = "LPSIM"

// PoolConfig describes the simulated pool.
type PoolConfig struct {
	Address        string
	Token0         string
	Token0Decimals int32
	Token1         string
	Token1Decimals int32
	FeeTier        string
	BaseToken      string
}

// Pool validates the configuration and builds the pool.
func (c PoolConfig) Pool() (model.Pool, error) {
	if c.Token0 == "" || c.Token1 == "" {
		return model.Pool{}, fmt.Errorf("token0 and token1 are required")
	}
	fee, err := decimal.NewFromString(c.FeeTier)
	if err != nil {
		return model.Pool{}, fmt.Errorf("fee tier %q: %w", c.FeeTier, err)
	}
	token0 := model.TokenUnit{Name: c.Token0, Decimals: c.Token0Decimals}
	token1 := model.TokenUnit{Name: c.Token1, Decimals: c.Token1Decimals}

	var base model.TokenUnit
	switch c.BaseToken {
	case "", c.Token0:
		base = token0
	case c.Token1:
		base = token1
	default:
		return model.Pool{}, fmt.Errorf("base token %s is not in the pool", c.BaseToken)
	}

	pool, err := model.NewPool(token0, token1, fee, base)
	if err != nil {
		return model.Pool{}, err
	}
	if c.Address != "" {
		addr, err := ParseAddress(c.Address)
		if err != nil {
			return model.Pool{}, err
		}
		pool = pool.WithAddress(addr)
	}
	return pool, nil
}

// ParseAddress validates a hex pool address.
func ParseAddress(input string) (common.Address, error) {
	input = strings.TrimSpace(input)
	if !common.IsHexAddress(input) {
		return common.Address{}, fmt.Errorf("invalid address %q", input)
	}
	return common.HexToAddress(input), nil
}

// newViper merges defaults, environment variables, flags and the config file.
// Without cfgFile a config.* in the working directory is read when present.
func newViper(cfgFile string, flags *pflag.FlagSet, defaults map[string]any) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("log-level", "info")
	v.SetDefault("token0-decimals", 18)
	v.SetDefault("token1-decimals", 18)
	v.SetDefault("fee-tier", "0.3")
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}
	return v, nil
}

func loadPool(v *viper.Viper) PoolConfig {
	return PoolConfig{
		Address:        v.GetString("pool-address"),
		Token0:         v.GetString("token0"),
		Token0Decimals: v.GetInt32("token0-decimals"),
		Token1:         v.GetString("token1"),
		Token1Decimals: v.GetInt32("token1-decimals"),
		FeeTier:        v.GetString("fee-tier"),
		BaseToken:      v.GetString("base-token"),
	}
}

func getDuration(v *viper.Viper, key string) (time.Duration, error) {
	raw := v.GetString(key)
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", key, raw)
	}
	return d, nil
}

// getStringMap reads a map from a config file section or from
// comma-separated key=value pairs given as a flag or environment variable.
func getStringMap(v *viper.Viper, key string) map[string]string {
	if !v.IsSet(key) {
		return map[string]string{}
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case map[string]string:
		return typed
	case map[string]interface{}:
		out := make(map[string]string, len(typed))
		for k, item := range typed {
			out[k] = fmt.Sprintf("%v", item)
		}
		return out
	case []string:
		return pairsToMap(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return pairsToMap(items)
	case string:
		return pairsToMap(strings.Split(typed, ","))
	default:
		return map[string]string{}
	}
}

func pairsToMap(pairs []string) map[string]string {
	out := make(map[string]string, len(pairs))
	for _, pair := range cleanStrings(pairs) {
		k, val, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		out[strings.TrimSpace(k)] = strings.TrimSpace(val)
	}
	return out
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}

// ParseTimestamp parses a timestamp value (unix seconds or a datetime) into
// unix seconds. An empty value means unset and yields 0.
func ParseTimestamp(input string) (uint64, error) {
	if strings.TrimSpace(input) == "" {
		return 0, nil
	}
	tm, err := source.ParseTime(input)
	if err != nil {
		return 0, err
	}
	if tm.Unix() < 0 {
		return 0, fmt.Errorf("timestamp %q is before 1970", input)
	}
	return uint64(tm.Unix()), nil
}
