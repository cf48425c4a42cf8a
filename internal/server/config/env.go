package config

import (
	"os"
	"strconv"
	"time"
)

// parseEnv overlays configuration from environment variables. A variable
// that is unset or fails to parse leaves the current value untouched.
//
// Recognized variables:
//
//	ADDRESS               HTTP bind address (":3000")
//	DATABASE_DSN          PostgreSQL DSN
//	SECRET                JWT HMAC secret
//	ACCESS_TOKEN_VALIDITY session lifetime ("30m")
//	COOKIE_SECURE         "true"/"false"
//	SWEEP_INTERVAL        recurrence check interval ("1m")
//	SWEEP_TIMEOUT         sweep runtime bound ("5m")
func parseEnv(config *Config) {
	if v := os.Getenv("ADDRESS"); v != "" {
		config.EndpointAddr = v
	}
	if v := os.Getenv("DATABASE_DSN"); v != "" {
		config.DatabaseDSN = v
	}
	if v := os.Getenv("SECRET"); v != "" {
		config.SecretKey = v
	}
	if v := os.Getenv("ACCESS_TOKEN_VALIDITY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.AccessTokenValidity = d
		}
	}
	if v := os.Getenv("COOKIE_SECURE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			config.CookieSecure = b
		}
	}
	if v := os.Getenv("SWEEP_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.SweepInterval = d
		}
	}
	if v := os.Getenv("SWEEP_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.SweepTimeout = d
		}
	}
}
