package main

import (
	"fmt"
	"os"
	"time"

	"github.com/gaganworks/spark/sparksql"
)

// loadConfig builds the gateway config from environment variables.
// Required: SPARK_GATEWAY_URL, SPARK_CLUSTER, SPARK_USER,
// SPARK_PRIVATE_KEY_FILE, SPARK_PUBLIC_KEY_FILE.
func loadConfig() (sparksql.Config, error) {
	cfg := sparksql.Config{
		Endpoint: os.Getenv("SPARK_GATEWAY_URL"),
		Cluster:  os.Getenv("SPARK_CLUSTER"),
		User:     os.Getenv("SPARK_USER"),
	}
	if cfg.Endpoint == "" || cfg.Cluster == "" || cfg.User == "" {
		return cfg, fmt.Errorf("SPARK_GATEWAY_URL, SPARK_CLUSTER and SPARK_USER must be set")
	}

	privPath := os.Getenv("SPARK_PRIVATE_KEY_FILE")
	pubPath := os.Getenv("SPARK_PUBLIC_KEY_FILE")
	if privPath == "" || pubPath == "" {
		return cfg, fmt.Errorf("SPARK_PRIVATE_KEY_FILE and SPARK_PUBLIC_KEY_FILE must be set")
	}

	privKey, err := os.ReadFile(privPath)
	if err != nil {
		return cfg, fmt.Errorf("failed to read private key: %w", err)
	}
	pubKey, err := os.ReadFile(pubPath)
	if err != nil {
		return cfg, fmt.Errorf("failed to read public key: %w", err)
	}
	cfg.PrivateKey = privKey
	cfg.PublicKey = pubKey

	if raw := os.Getenv("SPARK_HTTP_TIMEOUT"); raw != "" {
		timeout, err := time.ParseDuration(raw)
		if err != nil {
			return cfg, fmt.Errorf("invalid SPARK_HTTP_TIMEOUT: %w", err)
		}
		cfg.HTTPTimeout = timeout
	}
	if raw := os.Getenv("SPARK_TOKEN_TTL"); raw != "" {
		ttl, err := time.ParseDuration(raw)
		if err != nil {
			return cfg, fmt.Errorf("invalid SPARK_TOKEN_TTL: %w", err)
		}
		cfg.ExpireAfter = ttl
	}
	return cfg, nil
}
