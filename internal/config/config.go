package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	HTTPAddr        string
	StoreBackend    string
	DBDSN           string
	JWTIssuer       string
	JWTSecret       string
	AdminJWTSecret  string
	JWTTTL          time.Duration
	InternalToken   string
	WebSocketOrigin string
	DemoStartingBal string
	FaucetEnabled   bool
	FaucetMax       string
	KafkaBrokers    []string
	KafkaTopic      string

	// Optional bootstrap admin, seeded on startup when both are set.
	AdminUsername     string
	AdminPasswordHash string
}

func Load() (Config, error) {
	var c Config
	var missing []string
	c.HTTPAddr = os.Getenv("HTTP_ADDR")
	if c.HTTPAddr == "" {
		missing = append(missing, "HTTP_ADDR")
	}
	c.StoreBackend = strings.ToLower(strings.TrimSpace(os.Getenv("STORE_BACKEND")))
	if c.StoreBackend == "" {
		c.StoreBackend = "memory"
	}
	if c.StoreBackend != "memory" && c.StoreBackend != "postgres" {
		return c, errors.New("invalid STORE_BACKEND: use memory or postgres")
	}
	c.DBDSN = os.Getenv("DB_DSN")
	if c.StoreBackend == "postgres" && c.DBDSN == "" {
		missing = append(missing, "DB_DSN")
	}
	c.JWTIssuer = os.Getenv("JWT_ISSUER")
	if c.JWTIssuer == "" {
		missing = append(missing, "JWT_ISSUER")
	}
	c.JWTSecret = os.Getenv("JWT_SECRET")
	if c.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	// Admin tokens are a separate capability: never signed with the user
	// secret.
	c.AdminJWTSecret = os.Getenv("ADMIN_JWT_SECRET")
	if c.AdminJWTSecret == "" {
		missing = append(missing, "ADMIN_JWT_SECRET")
	}
	jwtTTL := os.Getenv("JWT_TTL")
	if jwtTTL == "" {
		missing = append(missing, "JWT_TTL")
	} else {
		d, err := time.ParseDuration(jwtTTL)
		if err != nil {
			return c, err
		}
		c.JWTTTL = d
	}
	c.InternalToken = os.Getenv("INTERNAL_API_TOKEN")
	if c.InternalToken == "" {
		missing = append(missing, "INTERNAL_API_TOKEN")
	}
	c.WebSocketOrigin = os.Getenv("WS_ORIGIN")
	if c.WebSocketOrigin == "" {
		missing = append(missing, "WS_ORIGIN")
	}
	c.DemoStartingBal = os.Getenv("DEMO_STARTING_BALANCE")
	if c.DemoStartingBal == "" {
		c.DemoStartingBal = "10000"
	}
	faucetEnabled := os.Getenv("FAUCET_ENABLED")
	if faucetEnabled == "" {
		c.FaucetEnabled = true
	} else {
		b, err := strconv.ParseBool(faucetEnabled)
		if err != nil {
			return c, err
		}
		c.FaucetEnabled = b
	}
	max := os.Getenv("FAUCET_MAX")
	if max == "" {
		max = "100000"
	}
	c.FaucetMax = max
	if brokers := strings.TrimSpace(os.Getenv("KAFKA_BROKERS")); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				c.KafkaBrokers = append(c.KafkaBrokers, b)
			}
		}
	}
	c.KafkaTopic = os.Getenv("KAFKA_TOPIC")
	if c.KafkaTopic == "" {
		c.KafkaTopic = "ledger-events"
	}
	c.AdminUsername = strings.TrimSpace(os.Getenv("ADMIN_USERNAME"))
	c.AdminPasswordHash = os.Getenv("ADMIN_PASSWORD_HASH")
	if len(missing) > 0 {
		return c, errors.New("missing required env: " + strings.Join(missing, ","))
	}
	return c, nil
}
