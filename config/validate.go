package config

import (
	"fmt"
	"strings"
)

var validBackends = map[string]bool{
	"leveldb": true,
	"bolt":    true,
	"memory":  true,
}

func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config: nil config")
	}
	if strings.TrimSpace(cfg.RPCAddress) == "" {
		return fmt.Errorf("config: RPCAddress required")
	}
	if !validBackends[cfg.Backend] {
		return fmt.Errorf("config: Backend must be leveldb, bolt or memory; got %q", cfg.Backend)
	}
	if cfg.RPCRateLimit <= 0 {
		return fmt.Errorf("config: RPCRateLimit must be positive")
	}
	if cfg.RPCRateBurst < cfg.RPCRateLimit {
		return fmt.Errorf("config: RPCRateBurst below RPCRateLimit")
	}
	switch strings.ToLower(cfg.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: LogLevel must be debug, info, warn or error; got %q", cfg.LogLevel)
	}
	return nil
}
