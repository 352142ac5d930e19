package auth

import (
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Audience is the gateway's expected JWT audience claim.
const Audience = "spark-gateway"

// TokenConfig holds info needed to mint a gateway token.
type TokenConfig struct {
	Cluster     string // e.g., analytics-prod
	User        string // e.g., etl_runner
	PrivateKey  []byte // PEM-encoded private key (PKCS8)
	PublicKey   []byte // PEM-encoded public key (used for fingerprint)
	ExpireAfter time.Duration
}

// GenerateJWT returns a token the gateway accepts for keypair auth. The
// issuer embeds the public-key fingerprint so the gateway can pick the
// registered key to verify against.
func GenerateJWT(cfg TokenConfig) (string, error) {
	privKey, err := parsePrivateKey(cfg.PrivateKey)
	if err != nil {
		return "", err
	}

	fp, err := fingerprint(cfg.PublicKey)
	if err != nil {
		return "", fmt.Errorf("fingerprint generation failed: %w", err)
	}

	cluster := normalizeCluster(cfg.Cluster)
	subject := fmt.Sprintf("%s/%s", cluster, cfg.User)
	issuer := fmt.Sprintf("%s.%s", subject, fp)

	expireAfter := cfg.ExpireAfter
	if expireAfter == 0 {
		expireAfter = time.Minute
	}

	now := time.Now().UTC()
	claims := jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   subject,
		Audience:  jwt.ClaimStrings{Audience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(expireAfter)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	signed, err := token.SignedString(privKey)
	if err != nil {
		return "", fmt.Errorf("JWT signing failed: %w", err)
	}
	return signed, nil
}

// parsePrivateKey parses a PEM-encoded PKCS#8 RSA key.
func parsePrivateKey(pemBytes []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, fmt.Errorf("invalid PEM format for private key")
	}
	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("not an RSA private key")
	}
	return rsaKey, nil
}

// fingerprint computes the SHA256 fingerprint of a PEM-encoded public key.
func fingerprint(pubPEM []byte) (string, error) {
	block, _ := pem.Decode(pubPEM)
	if block == nil {
		return "", fmt.Errorf("invalid PEM for public key")
	}
	hash := sha256.Sum256(block.Bytes)
	return "SHA256:" + base64.StdEncoding.EncodeToString(hash[:]), nil
}

// normalizeCluster lowercases the cluster name; the gateway registry is
// case-insensitive and stores lowercase.
func normalizeCluster(cluster string) string {
	return strings.ToLower(strings.TrimSpace(cluster))
}
