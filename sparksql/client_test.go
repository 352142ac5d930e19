package sparksql

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testKeyPair generates a throwaway RSA keypair in the PEM forms the
// gateway config expects.
func testKeyPair(t *testing.T) (privPEM, pubPEM []byte) {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	privDER, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)
	privPEM = pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privDER})

	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	pubPEM = pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})
	return privPEM, pubPEM
}

func testGateway(t *testing.T, serverURL string) *Gateway {
	t.Helper()

	privPEM, pubPEM := testKeyPair(t)
	gw, err := NewGateway(Config{
		Endpoint:    serverURL,
		Cluster:     "analytics",
		User:        "etl_runner",
		PrivateKey:  privPEM,
		PublicKey:   pubPEM,
		ExpireAfter: time.Minute,
		HTTPTimeout: 5 * time.Second,
	})
	require.NoError(t, err)
	return gw
}

func TestNewGateway_RequiresIdentity(t *testing.T) {
	_, err := NewGateway(Config{Endpoint: "http://gw"})
	require.Error(t, err)

	_, err = NewGateway(Config{Cluster: "c", User: "u"})
	require.Error(t, err)
}

func TestGatewayCall(t *testing.T) {
	var got invokeRequest
	var header http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header = r.Header.Clone()
		assert.Equal(t, "/api/v1/invoke", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(CallResult{Ref: "df-42"})
	}))
	defer server.Close()

	gw := testGateway(t, server.URL)
	result, err := gw.Call("session-1", "sql", []any{"SELECT 1"}, map[string]string{"tag": "adhoc"})
	require.NoError(t, err)
	assert.Equal(t, Ref("df-42"), result.Ref)

	assert.Equal(t, Ref("session-1"), got.Target)
	assert.Equal(t, "sql", got.Method)
	assert.Equal(t, []any{"SELECT 1"}, got.Args)
	assert.Equal(t, map[string]string{"tag": "adhoc"}, got.Options)

	assert.True(t, strings.HasPrefix(header.Get("Authorization"), "Bearer "))
	assert.Equal(t, "application/json", header.Get("Content-Type"))
	_, err = uuid.Parse(header.Get("X-Request-Id"))
	assert.NoError(t, err)
}

func TestGatewayCall_RemoteErrorPropagatesVerbatim(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(CallError{
			Code:     "42X01",
			Message:  "mismatched input 'SELEC'",
			SQLState: "42X01",
		})
	}))
	defer server.Close()

	gw := testGateway(t, server.URL)
	_, err := gw.Call("session-1", "sql", []any{"SELEC 1"}, nil)

	var callErr *CallError
	require.ErrorAs(t, err, &callErr)
	assert.Equal(t, "42X01", callErr.Code)
	assert.Equal(t, "mismatched input 'SELEC'", callErr.Message)
	assert.Equal(t, "42X01", callErr.SQLState)
}

func TestGatewayCall_UndecodableErrorBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer server.Close()

	gw := testGateway(t, server.URL)
	_, err := gw.Call("session-1", "sql", nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestGatewayParallelize(t *testing.T) {
	var body struct {
		Session Ref               `json:"session"`
		Rows    []json.RawMessage `json:"rows"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/collections", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		json.NewEncoder(w).Encode(CallResult{Ref: "rdd-9"})
	}))
	defer server.Close()

	named, err := NamedRow([]string{"a"}, []any{1})
	require.NoError(t, err)

	gw := testGateway(t, server.URL)
	ref, err := gw.Parallelize("session-1", []Row{named, NewRow(2, "x")})
	require.NoError(t, err)
	assert.Equal(t, Ref("rdd-9"), ref)

	assert.Equal(t, Ref("session-1"), body.Session)
	require.Len(t, body.Rows, 2)
	// Named rows travel as objects, positional rows as arrays.
	assert.JSONEq(t, `{"a":1}`, string(body.Rows[0]))
	assert.JSONEq(t, `[2,"x"]`, string(body.Rows[1]))
}

func TestGatewayParallelize_MissingHandleFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(CallResult{})
	}))
	defer server.Close()

	gw := testGateway(t, server.URL)
	_, err := gw.Parallelize("session-1", []Row{NewRow(1)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no collection handle")
}

func TestGatewayFirst(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/collections/first", r.URL.Path)
		w.Write([]byte(`{"row":{"name":"ada","id":1}}`))
	}))
	defer server.Close()

	gw := testGateway(t, server.URL)
	row, err := gw.First("rdd-9")
	require.NoError(t, err)
	require.True(t, row.Named())
	assert.ElementsMatch(t, []string{"name", "id"}, row.Names())
}

func TestConnect_OpensSession(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/sessions", r.URL.Path)
		json.NewEncoder(w).Encode(CallResult{Ref: "session-77"})
	}))
	defer server.Close()

	privPEM, pubPEM := testKeyPair(t)
	ctx, err := Connect(Config{
		Endpoint:   server.URL,
		Cluster:    "analytics",
		User:       "etl_runner",
		PrivateKey: privPEM,
		PublicKey:  pubPEM,
	})
	require.NoError(t, err)
	assert.Equal(t, Ref("session-77"), ctx.Ref())
}
