package sparksql

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/gaganworks/spark/internal/auth"
)

// Ref is an opaque reference to an object living in the engine's
// address space (a session, a DataFrame, a distributed collection).
// This layer never owns the referenced object; destruction is the
// engine's business.
type Ref string

// CallResult is the decoded outcome of one remote invocation: a handle
// to a new remote object, an inline scalar payload, or neither.
type CallResult struct {
	Ref   Ref             `json:"ref,omitempty"`
	Value json.RawMessage `json:"value,omitempty"`
}

// CallError is a failure raised by the engine, propagated verbatim.
type CallError struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	SQLState string `json:"sqlState,omitempty"`
}

func (e *CallError) Error() string {
	return fmt.Sprintf("engine error: %s (code %s)", e.Message, e.Code)
}

// Engine is the remote query-context runtime this binding forwards to.
// Call invokes a method on a remote object; Parallelize ships local
// rows into a remote distributed collection; First retrieves a
// collection's first record for schema sampling.
type Engine interface {
	Call(target Ref, method string, args []any, opts map[string]string) (*CallResult, error)
	Parallelize(session Ref, rows []Row) (Ref, error)
	First(collection Ref) (Row, error)
}

// Config holds config needed to reach the engine gateway.
type Config struct {
	Endpoint    string // gateway base URL, e.g. https://spark-gw.internal:7077
	Cluster     string
	User        string
	PrivateKey  []byte // PEM (PKCS8)
	PublicKey   []byte // PEM
	ExpireAfter time.Duration
	HTTPTimeout time.Duration
}

// Gateway is an HTTP client for the engine gateway's invocation API.
type Gateway struct {
	baseURL    string
	httpClient *http.Client
	config     Config
}

var _ Engine = (*Gateway)(nil)

// NewGateway initializes the gateway client with config and default
// timeout.
func NewGateway(cfg Config) (*Gateway, error) {
	if cfg.Endpoint == "" || cfg.Cluster == "" || cfg.User == "" {
		return nil, fmt.Errorf("endpoint, cluster and user are required")
	}

	timeout := cfg.HTTPTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &Gateway{
		baseURL:    fmt.Sprintf("%s/api/v1", cfg.Endpoint),
		httpClient: &http.Client{Timeout: timeout},
		config:     cfg,
	}, nil
}

func (g *Gateway) authToken() (string, error) {
	return auth.GenerateJWT(auth.TokenConfig{
		Cluster:     g.config.Cluster,
		User:        g.config.User,
		PrivateKey:  g.config.PrivateKey,
		PublicKey:   g.config.PublicKey,
		ExpireAfter: g.config.ExpireAfter,
	})
}

// invokeRequest is the wire form of one remote method invocation.
type invokeRequest struct {
	Target  Ref               `json:"target"`
	Method  string            `json:"method"`
	Args    []any             `json:"args,omitempty"`
	Options map[string]string `json:"options,omitempty"`
}

// Call invokes a single method on a remote object and decodes the
// result. Remote failures come back as *CallError, untranslated.
func (g *Gateway) Call(target Ref, method string, args []any, opts map[string]string) (*CallResult, error) {
	body := invokeRequest{Target: target, Method: method, Args: args, Options: opts}
	var result CallResult
	if err := g.post("/invoke", body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Parallelize ships local rows to the engine's collection runtime and
// returns the handle of the resulting distributed collection.
func (g *Gateway) Parallelize(session Ref, rows []Row) (Ref, error) {
	body := struct {
		Session Ref   `json:"session"`
		Rows    []Row `json:"rows"`
	}{Session: session, Rows: rows}

	var result CallResult
	if err := g.post("/collections", body, &result); err != nil {
		return "", err
	}
	if result.Ref == "" {
		return "", fmt.Errorf("gateway returned no collection handle")
	}
	return result.Ref, nil
}

// First retrieves the first record of a remote distributed collection.
func (g *Gateway) First(collection Ref) (Row, error) {
	body := struct {
		Collection Ref `json:"collection"`
	}{Collection: collection}

	var result struct {
		Row Row `json:"row"`
	}
	if err := g.post("/collections/first", body, &result); err != nil {
		return Row{}, err
	}
	return result.Row, nil
}

// OpenSession creates a fresh remote query context and returns its
// handle.
func (g *Gateway) OpenSession() (Ref, error) {
	var result CallResult
	if err := g.post("/sessions", struct{}{}, &result); err != nil {
		return "", err
	}
	if result.Ref == "" {
		return "", fmt.Errorf("gateway returned no session handle")
	}
	return result.Ref, nil
}

// post sends one JSON request and decodes the JSON response into out.
func (g *Gateway) post(path string, body, out any) error {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequest("POST", g.baseURL+path, bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}
	token, err := g.authToken()
	if err != nil {
		return fmt.Errorf("failed to generate auth token: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", uuid.New().String())

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	// Error payloads carry the engine's own code/message; propagate
	// them as-is.
	if resp.StatusCode != http.StatusOK {
		var callErr CallError
		if decodeErr := json.NewDecoder(resp.Body).Decode(&callErr); decodeErr != nil || callErr.Message == "" {
			return fmt.Errorf("gateway returned status %d", resp.StatusCode)
		}
		return &callErr
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// Connect opens a session on the gateway and binds a SQLContext to it.
func Connect(cfg Config) (*SQLContext, error) {
	gw, err := NewGateway(cfg)
	if err != nil {
		return nil, err
	}
	session, err := gw.OpenSession()
	if err != nil {
		return nil, err
	}
	return NewSQLContext(gw, session), nil
}
