package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generateKeyPair(t *testing.T) (*rsa.PrivateKey, []byte, []byte) {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	privDER, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)
	privPEM := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privDER})

	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})
	return key, privPEM, pubPEM
}

func TestGenerateJWT(t *testing.T) {
	key, privPEM, pubPEM := generateKeyPair(t)

	signed, err := GenerateJWT(TokenConfig{
		Cluster:     "Analytics-Prod",
		User:        "etl_runner",
		PrivateKey:  privPEM,
		PublicKey:   pubPEM,
		ExpireAfter: 2 * time.Minute,
	})
	require.NoError(t, err)

	claims := jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(signed, &claims, func(*jwt.Token) (any, error) {
		return &key.PublicKey, nil
	})
	require.NoError(t, err)
	require.True(t, token.Valid)

	// Cluster names normalize to lowercase in the subject.
	assert.Equal(t, "analytics-prod/etl_runner", claims.Subject)
	assert.Equal(t, jwt.ClaimStrings{Audience}, claims.Audience)
	assert.True(t, strings.HasPrefix(claims.Issuer, claims.Subject+".SHA256:"))

	lifetime := claims.ExpiresAt.Sub(claims.IssuedAt.Time)
	assert.Equal(t, 2*time.Minute, lifetime)
}

func TestGenerateJWT_DefaultExpiry(t *testing.T) {
	_, privPEM, pubPEM := generateKeyPair(t)

	signed, err := GenerateJWT(TokenConfig{
		Cluster:    "analytics",
		User:       "u",
		PrivateKey: privPEM,
		PublicKey:  pubPEM,
	})
	require.NoError(t, err)

	claims := jwt.RegisteredClaims{}
	_, _, err = jwt.NewParser().ParseUnverified(signed, &claims)
	require.NoError(t, err)
	assert.Equal(t, time.Minute, claims.ExpiresAt.Sub(claims.IssuedAt.Time))
}

func TestGenerateJWT_RejectsBadKeys(t *testing.T) {
	_, _, pubPEM := generateKeyPair(t)

	_, err := GenerateJWT(TokenConfig{Cluster: "c", User: "u", PrivateKey: []byte("not pem"), PublicKey: pubPEM})
	require.Error(t, err)

	_, privPEM, _ := generateKeyPair(t)
	_, err = GenerateJWT(TokenConfig{Cluster: "c", User: "u", PrivateKey: privPEM, PublicKey: []byte("not pem")})
	require.Error(t, err)
}
